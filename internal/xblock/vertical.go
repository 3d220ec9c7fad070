package xblock

import (
	"context"
	"html/template"
	"path/filepath"

	"github.com/ubuntu/decorate"

	"github.com/openzim/openedx2zim/internal/htmlproc"
	"github.com/openzim/openedx2zim/internal/templates"
)

// Vertical is a unit page: it hosts the fragments of its leaf blocks and the
// page-level assets the instance serves with the unit.
type Vertical struct {
	base
	children []Extractor

	extraHeaders []template.HTML
	extraContent []template.HTML

	chapterTitle    string
	sequentialTitle string
}

func (v *Vertical) addChild(e Extractor) { v.children = append(v.children, e) }

// Download fetches the unit page and captures the stylesheets and scripts the
// instance injects around xblock content, rewritten to load from the archive.
func (v *Vertical) Download(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not download vertical %s", v.node.DisplayName)

	body, err := v.deps.Conn.GetPage(ctx, v.node.StudentViewURL)
	if err != nil {
		return err
	}
	doc, err := htmlproc.ParsePage(string(body))
	if err != nil {
		return err
	}

	assetsRef := v.node.RootURL + "instance_assets"

	head := doc.Find("head", "")
	for _, link := range head.FindAll("link", "") {
		if link.Attr("rel") != "stylesheet" {
			continue
		}
		processed, err := v.captureAsset(ctx, link, assetsRef)
		if err != nil {
			return err
		}
		v.extraHeaders = append(v.extraHeaders, template.HTML(processed)) // #nosec:G203 rewritten scraped markup
	}
	for _, script := range head.FindAll("script", "") {
		if !script.HasAttr("src") {
			continue
		}
		processed, err := v.captureAsset(ctx, script, assetsRef)
		if err != nil {
			return err
		}
		v.extraHeaders = append(v.extraHeaders, template.HTML(processed)) // #nosec:G203
	}

	// Scripts at the end of body wire up xmodule behaviour, keep them after the
	// content like the instance does.
	for _, script := range doc.Find("body", "").FindAll("script", "") {
		if !script.HasAttr("src") {
			continue
		}
		processed, err := v.captureAsset(ctx, script, assetsRef)
		if err != nil {
			return err
		}
		v.extraContent = append(v.extraContent, template.HTML(processed)) // #nosec:G203
	}
	return nil
}

// captureAsset downloads the asset a tag references into the shared instance
// assets directory and returns the tag pointing at the local copy.
func (v *Vertical) captureAsset(ctx context.Context, tag *htmlproc.Selection, assetsRef string) (string, error) {
	outer, err := tag.OuterHTML()
	if err != nil {
		return "", err
	}
	return v.deps.Processor.DownloadDependencies(ctx, outer, v.deps.InstanceAssetsDir, assetsRef)
}

// Render writes the unit page with its children's fragments and the
// previous/next unit navigation. prev and next are build-root-relative paths,
// empty at the course boundaries.
func (v *Vertical) Render(prev, next string) (err error) {
	defer decorate.OnError(&err, "could not render vertical %s", v.node.DisplayName)

	var contents []template.HTML
	for _, child := range v.children {
		frag, ok := child.(FragmentRenderer)
		if !ok {
			continue
		}
		rendered, err := frag.Fragment()
		if err != nil {
			return err
		}
		contents = append(contents, template.HTML(rendered)) // #nosec:G203
	}

	data := templates.VerticalData{
		Page:            v.page(v.node.DisplayName),
		Contents:        contents,
		ExtraHeaders:    v.extraHeaders,
		ExtraContent:    v.extraContent,
		ExtractedID:     v.node.ExtractedID(),
		ChapterTitle:    v.chapterTitle,
		SequentialTitle: v.sequentialTitle,
		PrevPath:        prev,
		NextPath:        next,
		RemoveSeqNav:    prev == "" && next == "",
	}
	return templates.RenderToFile(filepath.Join(v.outputPath(), "index.html"), "vertical.html", data)
}
