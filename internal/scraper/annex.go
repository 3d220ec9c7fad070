package scraper

import (
	"context"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/ubuntu/decorate"

	"github.com/openzim/openedx2zim/internal/fileutils"
	"github.com/openzim/openedx2zim/internal/htmlproc"
	"github.com/openzim/openedx2zim/internal/templates"
)

// annexedPage is an extra course page captured from the top navigation.
type annexedPage struct {
	path    string
	title   string
	content string
}

// bookList is a PDF book collection captured from a book sidebar page.
type bookList struct {
	path  string
	title string
	books []templates.NavItem
}

// annex walks the course top navigation: tabs pointing at the content tree and
// the homepage are mapped onto archive pages, wiki and forum are captured when
// requested, and remaining tabs are snapshotted as standalone pages.
func (s *Scraper) annex(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not capture course annexes")

	s.log.Info("Getting course tabs")
	body, err := s.conn.GetPage(ctx, s.cfg.CourseURL)
	if err != nil {
		return err
	}
	doc, err := htmlproc.ParsePage(string(body))
	if err != nil {
		return err
	}

	tabsList := findTabsList(doc)
	if tabsList == nil {
		s.log.Warn("No course tabs found on the course page")
		return nil
	}

	for _, item := range tabsList.FindAll("li", "") {
		link := item.Find("a", "")
		href := link.Attr("href")
		if href == "" {
			continue
		}
		tabPath := lastSegment(href)
		name := strings.TrimSpace(strings.ReplaceAll(link.Text(), ", current location", ""))

		switch {
		case tabPath == "course" || strings.Contains(tabPath, "courseware"):
			s.tabs = append(s.tabs, templates.Tab{
				Name: name,
				Path: "course/" + s.courseEx.Node().FolderName + "/index.html",
			})
		case strings.Contains(tabPath, "info"):
			s.tabs = append(s.tabs, templates.Tab{Name: name, Path: "index.html"})
		case strings.Contains(tabPath, "edxnotes"), strings.Contains(tabPath, "progress"):
			// Account-bound pages, nothing to archive.
		case strings.Contains(tabPath, "wiki"):
			if !s.cfg.AddWiki {
				continue
			}
			if err := s.captureWiki(ctx, href); err != nil {
				s.log.Warn("Failed to capture wiki", "error", err)
				continue
			}
			s.tabs = append(s.tabs, templates.Tab{Name: name, Path: "wiki/index.html"})
		case strings.Contains(tabPath, "forum"):
			if !s.cfg.AddForum {
				continue
			}
			if err := s.captureForum(ctx); err != nil {
				s.log.Warn("Failed to capture forum", "error", err)
				continue
			}
			s.tabs = append(s.tabs, templates.Tab{Name: name, Path: "forum/index.html"})
			s.deps.ForumPath = "forum/index.html"
		default:
			if err := s.annexPage(ctx, name, tabPath, href); err != nil {
				s.log.Warn("Failed to capture extra page", "tab", tabPath, "error", err)
			}
		}
	}
	return nil
}

// findTabsList locates the top navigation list, whose markup differs between
// Open edX releases and themes.
func findTabsList(doc *htmlproc.Selection) *htmlproc.Selection {
	for _, candidate := range []struct{ tag, class string }{
		{"ol", "course-material"},
		{"ul", "course-material"},
		{"ul", "navbar-nav"},
		{"ol", "course-tabs"},
	} {
		if list := doc.Find(candidate.tag, candidate.class); list != nil {
			return list
		}
	}
	return nil
}

// annexPage snapshots one extra navigation tab: a content page when it carries
// a main content section, a book list when it carries a book sidebar.
func (s *Scraper) annexPage(ctx context.Context, name, tabPath, href string) error {
	outputPath := filepath.Join(s.buildDir, tabPath)

	body, err := s.conn.GetPage(ctx, s.instance.URL+href)
	if err != nil {
		return err
	}
	doc, err := htmlproc.ParsePage(string(body))
	if err != nil {
		return err
	}

	if section := doc.Find("section", "container"); section != nil {
		outer, err := section.OuterHTML()
		if err != nil {
			return err
		}
		content, err := s.processor.DownloadDependencies(ctx, outer, outputPath, "")
		if err != nil {
			return err
		}
		s.annexedPages = append(s.annexedPages, annexedPage{
			path:    tabPath,
			title:   doc.Title(),
			content: content,
		})
		s.tabs = append(s.tabs, templates.Tab{Name: name, Path: tabPath + "/index.html"})
		return nil
	}

	if sidebar := doc.Find("section", "book-sidebar"); sidebar != nil {
		books, err := s.captureBooks(ctx, sidebar, outputPath)
		if err != nil {
			return err
		}
		s.bookLists = append(s.bookLists, bookList{path: tabPath, title: name, books: books})
		s.tabs = append(s.tabs, templates.Tab{Name: name, Path: tabPath + "/index.html"})
		return nil
	}

	s.log.Warn("Unsupported extra content in top bar", "tab", tabPath)
	return nil
}

// captureBooks downloads the PDF books a book sidebar links to.
func (s *Scraper) captureBooks(ctx context.Context, sidebar *htmlproc.Selection, outputPath string) ([]templates.NavItem, error) {
	var books []templates.NavItem
	for _, link := range sidebar.FindAll("a", "") {
		href := link.Attr("href")
		if href == "" || !strings.Contains(strings.ToLower(href), ".pdf") {
			continue
		}

		filename := fileutils.HashedName(href)
		dest := filepath.Join(outputPath, filename)
		if err := s.downloader.DownloadFile(ctx, s.instance.PrepareURL(href), dest); err != nil {
			s.log.Warn("Failed to download book", "href", href, "error", err)
			continue
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = filename
		}
		books = append(books, templates.NavItem{Title: title, Path: filename})
	}
	return books, nil
}

// getHomepage captures the course homepage: the welcome message when the
// instance serves one, otherwise the info wrapper articles.
func (s *Scraper) getHomepage(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not capture course homepage")

	s.log.Info("Getting homepage")
	body, err := s.conn.GetPage(ctx, s.cfg.CourseURL)
	if err != nil {
		return err
	}
	doc, err := htmlproc.ParsePage(string(body))
	if err != nil {
		return err
	}

	homeDir := filepath.Join(s.buildDir, "home")

	articles := []*htmlproc.Selection{doc.Find("div", "welcome-message")}
	if articles[0] == nil {
		articles = doc.FindAll("div", "info-wrapper")
	}

	for _, article := range articles {
		if article == nil {
			continue
		}
		cleanHomepageArticle(article)
		article.SetAttr("class", "toggle-visibility-element article-content")

		outer, err := article.OuterHTML()
		if err != nil {
			return err
		}
		content, err := s.processor.DownloadDependencies(ctx, outer, homeDir, "home")
		if err != nil {
			return err
		}
		s.homepage = append(s.homepage, template.HTML(content)) // #nosec:G203 rewritten scraped markup
	}

	if len(s.homepage) == 0 {
		s.log.Info("Course has no homepage, the course index becomes the archive entry")
	}
	return nil
}

// cleanHomepageArticle strips the session-bound controls from a homepage
// article.
func cleanHomepageArticle(article *htmlproc.Selection) {
	article.Find("div", "dismiss-message").Remove()
	article.Find("a", "action-show-bookmarks").Remove()
	for _, button := range article.FindAll("button", "toggle-visibility-button") {
		button.Remove()
	}
}

// renderAnnex writes the captured annex pages: extra tabs, book lists, wiki
// and forum.
func (s *Scraper) renderAnnex() error {
	for _, page := range s.annexedPages {
		data := templates.SpecificPageData{
			Page:    s.page(page.title, "../"),
			Content: template.HTML(page.content), // #nosec:G203 rewritten scraped markup
		}
		dest := filepath.Join(s.buildDir, page.path, "index.html")
		if err := templates.RenderToFile(dest, "specific_page.html", data); err != nil {
			return err
		}
	}

	for _, list := range s.bookLists {
		data := templates.BookNavData{
			Page:  s.page(list.title, "../"),
			Books: list.books,
		}
		dest := filepath.Join(s.buildDir, list.path, "index.html")
		if err := templates.RenderToFile(dest, "booknav.html", data); err != nil {
			return err
		}
	}

	if s.wiki != nil {
		if err := s.renderWiki(); err != nil {
			return err
		}
	}
	if s.forum != nil {
		if err := s.renderForum(); err != nil {
			return err
		}
	}
	return nil
}

// lastSegment returns the last path element of href, ignoring a trailing slash.
func lastSegment(href string) string {
	href = strings.TrimSuffix(href, "/")
	return href[strings.LastIndex(href, "/")+1:]
}
