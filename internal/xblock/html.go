package xblock

import (
	"context"

	"github.com/ubuntu/decorate"

	"github.com/openzim/openedx2zim/internal/htmlproc"
)

// HTML downloads an html xblock: the authored markup with all its referenced
// assets pulled into the block's directory.
type HTML struct {
	base

	content string
}

// Download fetches the block page, isolates the authored module markup and
// rewrites it for offline use.
func (h *HTML) Download(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not download html block %s", h.node.DisplayName)

	body, err := h.deps.Conn.GetPage(ctx, h.node.StudentViewURL)
	if err != nil {
		return err
	}
	doc, err := htmlproc.ParsePage(string(body))
	if err != nil {
		return err
	}

	module := doc.Find("div", "xmodule_HtmlBlock")
	if module == nil {
		module = doc.Find("div", "xmodule_HtmlModule")
	}
	if module == nil {
		h.deps.Log.Warn("No html module markup in block page", "id", h.node.ID)
		return nil
	}

	inner, err := module.InnerHTML()
	if err != nil {
		return err
	}
	h.content, err = h.deps.Processor.DownloadDependencies(ctx, inner, h.outputPath(), h.node.FolderName)
	return err
}

// Fragment returns the rewritten markup as-is, it needs no wrapping.
func (h *HTML) Fragment() (string, error) {
	return h.content, nil
}
