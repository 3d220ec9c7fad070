package xblock

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/ubuntu/decorate"

	"github.com/openzim/openedx2zim/internal/fileutils"
	"github.com/openzim/openedx2zim/internal/htmlproc"
	"github.com/openzim/openedx2zim/internal/templates"
)

// Discussion points at the archived forum when one is part of the archive.
type Discussion struct {
	base
}

// Download is a no-op: threads are captured with the forum, not per block.
func (d *Discussion) Download(ctx context.Context) error { return nil }

// Fragment links to the archived forum, or explains its absence.
func (d *Discussion) Fragment() (string, error) {
	data := templates.DiscussionData{}
	if d.deps.ForumPath != "" {
		data.ForumPath = d.embedRoot() + d.deps.ForumPath
	}
	return templates.Render("discussion.html", data)
}

// FreeText downloads a freetextresponse xblock as a static prompt with an
// ungraded response area.
type FreeText struct {
	base

	prompt string
}

// Download fetches the block page and keeps the prompt markup.
func (f *FreeText) Download(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not download free text block %s", f.node.DisplayName)

	body, err := f.deps.Conn.GetPage(ctx, f.node.StudentViewURL)
	if err != nil {
		return err
	}
	doc, err := htmlproc.ParsePage(string(body))
	if err != nil {
		return err
	}

	block := doc.Find("div", "freetextresponse")
	if block == nil {
		f.deps.Log.Warn("No free text markup in block page", "id", f.node.ID)
		return nil
	}
	prompt := block.Find("", "problem-prompt")
	if prompt == nil {
		prompt = block
	}

	inner, err := prompt.InnerHTML()
	if err != nil {
		return err
	}
	f.prompt, err = f.deps.Processor.DownloadDependencies(ctx, inner, f.outputPath(), f.node.FolderName)
	return err
}

// Fragment renders the prompt with a response area that is not graded.
func (f *FreeText) Fragment() (string, error) {
	return templates.Render("freetext.html", templates.FreeTextData{
		Prompt: template.HTML(f.prompt), // #nosec:G203 rewritten scraped markup
	})
}

// DragAndDropV2 captures a drag-and-drop exercise as a static snapshot: the
// exercise is shown but cannot be solved offline.
type DragAndDropV2 struct {
	base

	title    string
	question string
	imgPath  string
}

// Download pulls the exercise description and its background image from the
// mobile API payload.
func (d *DragAndDropV2) Download(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not download drag and drop block %s", d.node.DisplayName)

	var data struct {
		Title             string `json:"title"`
		ProblemText       string `json:"problem_text"`
		TargetImgExpanded string `json:"target_img_expanded_url"`
	}
	if len(d.node.StudentViewData) > 0 {
		if err := json.Unmarshal(d.node.StudentViewData, &data); err != nil {
			return fmt.Errorf("could not decode drag and drop data: %v", err)
		}
	}

	d.title = data.Title
	d.question = data.ProblemText
	if data.TargetImgExpanded == "" {
		return nil
	}

	filename := fileutils.HashedName(data.TargetImgExpanded)
	dest := filepath.Join(d.outputPath(), filename)
	src := d.deps.Conn.Instance().PrepareURL(data.TargetImgExpanded)
	if err := d.deps.Downloader.DownloadFile(ctx, src, dest); err != nil {
		d.deps.Log.Warn("Failed to download exercise background", "id", d.node.ID, "error", err)
		return nil
	}
	d.imgPath = d.node.FolderName + "/" + filename
	return nil
}

// Fragment renders the static snapshot.
func (d *DragAndDropV2) Fragment() (string, error) {
	return templates.Render("dragdrop.html", templates.DragDropData{
		Title:    d.title,
		Question: template.HTML(d.question), // #nosec:G203 rewritten scraped markup
		ImgPath:  d.imgPath,
	})
}

// Unavailable stands in for content that cannot work offline.
type Unavailable struct {
	base
	kind string
}

// Download is a no-op, there is nothing to fetch.
func (u *Unavailable) Download(ctx context.Context) error { return nil }

// Fragment renders the placeholder.
func (u *Unavailable) Fragment() (string, error) {
	return templates.Render("unavailable.html", templates.UnavailableData{Kind: u.kind})
}
