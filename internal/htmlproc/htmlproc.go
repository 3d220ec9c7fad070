// Package htmlproc rewrites scraped HTML so it works offline: referenced
// images, documents, stylesheets, scripts and media are downloaded next to the
// page and the markup is updated to point at the local copies.
package htmlproc

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/openzim/openedx2zim/internal/edx"
	"github.com/openzim/openedx2zim/internal/fileutils"
)

// docExtensions are the link targets downloaded into the archive regardless of
// where they point.
var docExtensions = map[string]bool{
	".doc": true, ".docx": true, ".pdf": true,
	".mp4": true, ".webm": true, ".mp3": true,
	".zip": true, ".txt": true, ".csv": true, ".r": true,
}

// Downloader fetches a remote file to a local path.
type Downloader interface {
	DownloadFile(ctx context.Context, url, dest string) error
	DownloadVideo(ctx context.Context, url, dest string) error
}

// VideoEmbed renders the player markup substituted for youtube iframes.
// folderName is the directory holding the downloaded video relative to the page.
type VideoEmbed func(folderName string) (string, error)

// Processor downloads the dependencies of HTML fragments and fixes their links.
type Processor struct {
	instance   edx.Instance
	downloader Downloader
	videoEmbed VideoEmbed

	log *slog.Logger
}

// New returns a Processor bound to an instance for resolving relative URLs.
func New(l *slog.Logger, instance edx.Instance, d Downloader, embed VideoEmbed) *Processor {
	return &Processor{instance: instance, downloader: d, videoEmbed: embed, log: l}
}

// DownloadDependencies processes an HTML fragment: every supported reference is
// downloaded into outputPath (named after the sha256 of its URL) and the
// corresponding attribute is rewritten to folderName-relative form. The
// rewritten fragment is returned. Fragments without any reference come back
// unchanged.
func (p *Processor) DownloadDependencies(ctx context.Context, content, outputPath, folderName string) (string, error) {
	nodes, err := parseFragment(content)
	if err != nil {
		return "", fmt.Errorf("could not parse HTML fragment: %v", err)
	}

	// Anchor the fragment under a synthetic parent so that top-level nodes can
	// be replaced in place.
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, node := range nodes {
		container.AppendChild(node)
	}

	changed := false
	walk(container, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.DataAtom {
		case atom.Img:
			changed = p.processImg(ctx, n, outputPath, folderName) || changed
		case atom.A:
			changed = p.processAnchor(ctx, n, outputPath, folderName) || changed
		case atom.Link:
			changed = p.processRef(ctx, n, "href", outputPath, folderName) || changed
		case atom.Script, atom.Source:
			changed = p.processRef(ctx, n, "src", outputPath, folderName) || changed
		case atom.Iframe:
			changed = p.processIframe(ctx, n, outputPath, folderName) || changed
		}
	})

	if !changed {
		return content, nil
	}
	return renderChildren(container)
}

func (p *Processor) processImg(ctx context.Context, n *html.Node, outputPath, folderName string) bool {
	src, ok := attr(n, "src")
	if !ok || src == "" {
		return false
	}

	filename := fileutils.HashedName(src)
	dest := filepath.Join(outputPath, filename)
	if !fileutils.Exists(dest) {
		if err := p.downloader.DownloadFile(ctx, p.instance.PrepareURL(src), dest); err != nil {
			p.log.Warn("Failed to download image", "src", src, "error", err)
		}
	}
	setAttr(n, "src", path.Join(folderName, filename))

	// Keep oversized course images within the page.
	if style, ok := attr(n, "style"); ok {
		setAttr(n, "style", style+" max-width:100%")
	} else {
		setAttr(n, "style", " max-width:100%")
	}
	return true
}

func (p *Processor) processAnchor(ctx context.Context, n *html.Node, outputPath, folderName string) bool {
	src, ok := attr(n, "href")
	if !ok || src == "" {
		return false
	}

	ext := fileutils.Ext(src)
	// Download when the extension matches, or when the link is relative.
	// Relative wiki links stay untouched as the wiki is archived separately.
	if !docExtensions[ext] && (isAbsolute(src) || strings.Contains(src, "wiki")) {
		return false
	}

	filename := fileutils.HashedName(src)
	dest := filepath.Join(outputPath, filename)
	if !fileutils.Exists(dest) {
		if err := p.downloader.DownloadFile(ctx, p.instance.PrepareURL(unquote(src)), dest); err != nil {
			p.log.Warn("Failed to download linked document", "href", src, "error", err)
		}
	}
	setAttr(n, "href", path.Join(folderName, filename))
	return true
}

func (p *Processor) processRef(ctx context.Context, n *html.Node, attrName, outputPath, folderName string) bool {
	src, ok := attr(n, attrName)
	if !ok || src == "" {
		return false
	}

	filename := fileutils.HashedName(src)
	dest := filepath.Join(outputPath, filename)
	if !fileutils.Exists(dest) {
		if err := p.downloader.DownloadFile(ctx, p.instance.PrepareURL(src), dest); err != nil {
			p.log.Warn("Failed to download asset", "src", src, "error", err)
		}
	}
	setAttr(n, attrName, path.Join(folderName, filename))
	return true
}

func (p *Processor) processIframe(ctx context.Context, n *html.Node, outputPath, folderName string) bool {
	src, ok := attr(n, "src")
	if !ok || src == "" {
		return false
	}

	switch {
	case strings.Contains(src, "youtube"):
		name := src[strings.LastIndex(src, "/")+1:]
		outDir := filepath.Join(outputPath, name)
		if err := os.MkdirAll(outDir, 0750); err != nil {
			p.log.Warn("Failed to create video directory", "dir", outDir, "error", err)
			return false
		}
		dest := filepath.Join(outDir, "video.mp4")
		if !fileutils.Exists(dest) {
			if err := p.downloader.DownloadVideo(ctx, src, dest); err != nil {
				p.log.Warn("Failed to download embedded video", "src", src, "error", err)
			}
		}

		embed, err := p.videoEmbed(name)
		if err != nil {
			p.log.Warn("Failed to render video embed", "src", src, "error", err)
			return false
		}
		if err := replaceWithFragment(n, embed); err != nil {
			p.log.Warn("Failed to splice video embed", "src", src, "error", err)
			return false
		}
		return true

	case strings.Contains(src, ".pdf"):
		filename := fileutils.HashedName(src)
		dest := filepath.Join(outputPath, filename)
		if !fileutils.Exists(dest) {
			if err := p.downloader.DownloadFile(ctx, p.instance.PrepareURL(unquote(src)), dest); err != nil {
				p.log.Warn("Failed to download embedded document", "src", src, "error", err)
			}
		}
		setAttr(n, "src", path.Join(folderName, filename))
		return true
	}

	return false
}

func isAbsolute(src string) bool {
	u, err := url.Parse(src)
	return err == nil && u.Host != ""
}

func unquote(src string) string {
	unquoted, err := url.QueryUnescape(src)
	if err != nil {
		return src
	}
	return unquoted
}

// parseFragment parses content as body content.
func parseFragment(content string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(strings.NewReader(content), body)
}

// renderChildren renders the children of container, leaving the synthetic
// container element itself out.
func renderChildren(container *html.Node) (string, error) {
	var sb strings.Builder
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("could not render HTML fragment: %v", err)
		}
	}
	return sb.String(), nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; {
		// Grab the next sibling first: fn may detach c from the tree.
		next := c.NextSibling
		walk(c, fn)
		c = next
	}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// replaceWithFragment swaps node for the parsed content of fragment.
func replaceWithFragment(n *html.Node, fragment string) error {
	parent := n.Parent
	if parent == nil {
		return fmt.Errorf("node has no parent")
	}

	nodes, err := parseFragment(fragment)
	if err != nil {
		return fmt.Errorf("could not parse replacement fragment: %v", err)
	}
	for _, repl := range nodes {
		parent.InsertBefore(repl, n)
	}
	parent.RemoveChild(n)
	return nil
}
