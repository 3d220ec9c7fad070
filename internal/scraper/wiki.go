package scraper

import (
	"context"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/ubuntu/decorate"

	"github.com/openzim/openedx2zim/internal/htmlproc"
	"github.com/openzim/openedx2zim/internal/templates"
)

// wikiCapture is the course wiki snapshot: the landing page and the pages it
// links to.
type wikiCapture struct {
	pages []wikiPage
}

// wikiPage is one captured wiki page, stored under wiki/<slug>/.
type wikiPage struct {
	slug     string
	title    string
	content  string
	children []templates.NavItem
}

// captureWiki snapshots the course wiki: the page behind the wiki tab and
// every wiki page it links to directly. Deeper pages are reachable online
// only; the links to them are kept as-is.
func (s *Scraper) captureWiki(ctx context.Context, href string) (err error) {
	defer decorate.OnError(&err, "could not capture wiki")

	s.log.Info("Getting wiki")
	capture := &wikiCapture{}

	root, children, err := s.captureWikiPage(ctx, href, "index")
	if err != nil {
		return err
	}
	capture.pages = append(capture.pages, *root)

	for _, childHref := range children {
		page, _, err := s.captureWikiPage(ctx, childHref, slug.Make(lastSegment(childHref)))
		if err != nil {
			s.log.Warn("Failed to capture wiki page", "href", childHref, "error", err)
			continue
		}
		capture.pages[0].children = append(capture.pages[0].children, templates.NavItem{
			Title: page.title,
			Path:  "wiki/" + page.slug,
		})
		capture.pages = append(capture.pages, *page)
	}

	s.wiki = capture
	return nil
}

// captureWikiPage fetches one wiki page and returns it along with the wiki
// links it carries.
func (s *Scraper) captureWikiPage(ctx context.Context, href, pageSlug string) (*wikiPage, []string, error) {
	body, err := s.conn.GetPage(ctx, s.instance.PrepareURL(href))
	if err != nil {
		return nil, nil, err
	}
	doc, err := htmlproc.ParsePage(string(body))
	if err != nil {
		return nil, nil, err
	}

	article := doc.Find("div", "wiki-article")
	if article == nil {
		article = doc.Find("article", "")
	}
	if article == nil {
		article = doc.Find("main", "")
	}

	var children []string
	seen := map[string]bool{}
	for _, link := range article.FindAll("a", "") {
		childHref := link.Attr("href")
		if !strings.Contains(childHref, "/wiki/") || childHref == href || seen[childHref] {
			continue
		}
		seen[childHref] = true
		children = append(children, childHref)
	}

	outer, err := article.OuterHTML()
	if err != nil {
		return nil, nil, err
	}
	outputPath := filepath.Join(s.buildDir, "wiki", pageSlug)
	if pageSlug == "index" {
		outputPath = filepath.Join(s.buildDir, "wiki")
	}
	content, err := s.processor.DownloadDependencies(ctx, outer, outputPath, "")
	if err != nil {
		return nil, nil, err
	}

	title := doc.Title()
	if title == "" {
		title = "Wiki"
	}
	return &wikiPage{slug: pageSlug, title: title, content: content}, children, nil
}

// renderWiki writes the captured wiki pages.
func (s *Scraper) renderWiki() error {
	for _, page := range s.wiki.pages {
		rootURL := "../../"
		dest := filepath.Join(s.buildDir, "wiki", page.slug, "index.html")
		if page.slug == "index" {
			rootURL = "../"
			dest = filepath.Join(s.buildDir, "wiki", "index.html")
		}

		data := templates.WikiPageData{
			Page:     s.page(page.title, rootURL),
			Content:  template.HTML(page.content), // #nosec:G203 rewritten scraped markup
			Children: page.children,
		}
		if err := templates.RenderToFile(dest, "wiki_page.html", data); err != nil {
			return err
		}
	}
	return nil
}
