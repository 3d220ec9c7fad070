// Package scraper orchestrates a full scrape: authenticate against the
// instance, walk the course, download and rewrite every supported xblock,
// capture the course annexes and package the result into a ZIM archive.
package scraper

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ubuntu/decorate"
	"golang.org/x/sync/errgroup"

	"github.com/openzim/openedx2zim/internal/constants"
	"github.com/openzim/openedx2zim/internal/course"
	"github.com/openzim/openedx2zim/internal/edx"
	"github.com/openzim/openedx2zim/internal/htmlproc"
	"github.com/openzim/openedx2zim/internal/media"
	"github.com/openzim/openedx2zim/internal/optimcache"
	"github.com/openzim/openedx2zim/internal/templates"
	"github.com/openzim/openedx2zim/internal/xblock"
	"github.com/openzim/openedx2zim/internal/zim"
)

// faviconSource serves a favicon for any domain, used as the archive icon.
const faviconSource = "https://www.google.com/s2/favicons?domain="

// Scraper drives one course scrape from login to ZIM.
type Scraper struct {
	cfg Config

	instance   edx.Instance
	conn       *edx.Connection
	cache      *optimcache.Cache
	downloader *media.Downloader
	processor  *htmlproc.Processor

	buildDir          string
	instanceAssetsDir string

	courseID   string
	info       course.Info
	root       *course.Node
	deps       *xblock.Deps
	courseEx   *xblock.Course
	extractors []xblock.Extractor

	tabs         []templates.Tab
	annexedPages []annexedPage
	bookLists    []bookList
	wiki         *wikiCapture
	forum        *forumCapture
	homepage     []template.HTML

	now func() time.Time
	log *slog.Logger
}

type options struct {
	// Private members exported for tests.
	connOptions       []edx.Options
	downloaderOptions []media.Options
	now               func() time.Time
}

// Options represents an optional function to override Scraper default values.
type Options func(*options)

// New returns a Scraper for the given configuration. The configuration must
// already be sanitized. The build directory is created under cfg.TmpDir.
func New(l *slog.Logger, cfg Config, args ...Options) (s *Scraper, err error) {
	defer decorate.OnError(&err, "could not set up scraper")

	opts := options{now: time.Now}
	for _, opt := range args {
		opt(&opts)
	}

	catalog, err := edx.LoadCatalog(cfg.InstanceCatalog)
	if err != nil {
		return nil, err
	}
	instance, err := catalog.ForCourseURL(cfg.CourseURL)
	if err != nil {
		return nil, err
	}

	if cfg.TmpDir != "" {
		if err := os.MkdirAll(cfg.TmpDir, 0750); err != nil {
			return nil, fmt.Errorf("could not create tmp directory: %v", err)
		}
	}
	buildDir, err := os.MkdirTemp(cfg.TmpDir, constants.CmdName)
	if err != nil {
		return nil, fmt.Errorf("could not create build directory: %v", err)
	}

	conn, err := edx.New(l, instance, cfg.Email, cfg.Password, opts.connOptions...)
	if err != nil {
		return nil, err
	}

	var cache *optimcache.Cache
	if cfg.OptimizationCache != "" {
		if cache, err = optimcache.New(l, cfg.OptimizationCache, cfg.UseAnyOptimizedVersion); err != nil {
			return nil, err
		}
	}

	// A nil *Cache must stay a nil interface for the downloader.
	var cacheIface media.OptimizationCache
	if cache != nil {
		cacheIface = cache
	}
	downloader := media.New(l, cfg.VideoFormat, cfg.LowQuality, cacheIface, opts.downloaderOptions...)

	videoEmbed := func(folderName string) (string, error) {
		return templates.Render("video.html", templates.VideoData{
			Format:     cfg.VideoFormat,
			FolderName: folderName,
		})
	}
	processor := htmlproc.New(l, instance, downloader, videoEmbed)

	s = &Scraper{
		cfg:               cfg,
		instance:          instance,
		conn:              conn,
		cache:             cache,
		downloader:        downloader,
		processor:         processor,
		buildDir:          buildDir,
		instanceAssetsDir: filepath.Join(buildDir, "instance_assets"),
		now:               opts.now,
		log:               l,
	}
	return s, nil
}

// rtlLanguages are the script directions the archive pages honor.
var rtlLanguages = map[string]bool{
	"ar": true, "arc": true, "dv": true, "fa": true, "ha": true,
	"he": true, "ks": true, "ku": true, "ps": true, "ur": true, "yi": true,
}

func isRTL(lang string) bool {
	base, _, _ := strings.Cut(lang, "-")
	return rtlLanguages[strings.ToLower(base)]
}

// BuildDir returns the directory the archive content is assembled in.
func (s *Scraper) BuildDir() string {
	return s.buildDir
}

// Run performs the scrape end to end.
func (s *Scraper) Run(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "scraping %s failed", s.cfg.CourseURL)

	s.log.Info("Starting scrape", "course", s.cfg.CourseURL, "instance", s.instance.URL)

	if err := media.CheckBinaries(s.cfg.NoZim); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.CheckCredentials(ctx); err != nil {
			return err
		}
	}

	if err := s.conn.Login(ctx); err != nil {
		return err
	}
	if err := s.prepareCourseData(ctx); err != nil {
		return err
	}
	if err := s.parseXblocks(); err != nil {
		return err
	}
	if err := s.annex(ctx); err != nil {
		return err
	}
	if err := s.getContent(ctx); err != nil {
		return err
	}
	if err := s.render(); err != nil {
		return err
	}

	if !s.cfg.NoZim {
		if err := s.buildZim(ctx); err != nil {
			return err
		}
		if !s.cfg.KeepBuildDir {
			s.log.Info("Removing build directory", "dir", s.buildDir)
			if err := os.RemoveAll(s.buildDir); err != nil {
				s.log.Warn("Failed to remove build directory", "dir", s.buildDir, "error", err)
			}
		}
	}

	s.log.Info("Scrape finished", "course", s.info.Name)
	return nil
}

// prepareCourseData resolves the course ID and fetches the course info and
// block structure.
func (s *Scraper) prepareCourseData(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not prepare course data")

	if s.courseID, err = course.ExtractID(s.cfg.CourseURL, s.instance); err != nil {
		return err
	}

	s.log.Info("Getting course info", "course_id", s.courseID)
	if s.info, err = course.FetchInfo(ctx, s.conn, s.courseID); err != nil {
		return err
	}

	s.log.Info("Getting course xblocks")
	blocks, err := course.FetchBlocks(ctx, s.conn, s.courseID)
	if err != nil {
		return err
	}
	s.root, _, err = course.BuildTree(blocks)
	return err
}

// parseXblocks maps the course tree onto extractors.
func (s *Scraper) parseXblocks() (err error) {
	defer decorate.OnError(&err, "could not parse course xblocks")

	s.deps = &xblock.Deps{
		Conn:              s.conn,
		Processor:         s.processor,
		Downloader:        s.downloader,
		BuildDir:          s.buildDir,
		InstanceAssetsDir: s.instanceAssetsDir,
		VideoFormat:       s.cfg.VideoFormat,
		IgnoreMissing:     s.cfg.IgnoreMissingXblocks,
		RTL:               isRTL(s.cfg.Lang),
		Log:               s.log,
	}
	s.courseEx, s.extractors, err = xblock.NewTree(s.deps, s.root)
	return err
}

// getContent downloads everything going into the archive: the favicon, the
// course homepage and the content of every xblock, with a bounded worker pool.
func (s *Scraper) getContent(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not download course content")

	faviconPath := filepath.Join(s.buildDir, constants.FaviconName)
	if err := s.downloader.DownloadFile(ctx, faviconSource+s.instance.URL, faviconPath); err != nil {
		s.log.Warn("Failed to download favicon", "error", err)
	}

	if err := s.getHomepage(ctx); err != nil {
		return err
	}

	s.log.Info("Getting content for supported xblocks", "count", len(s.extractors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.MaxConcurrentDownloads)
	for _, extractor := range s.extractors {
		g.Go(func() error {
			return extractor.Download(gctx)
		})
	}
	return g.Wait()
}

// render writes every page of the archive and its static assets.
func (s *Scraper) render() (err error) {
	defer decorate.OnError(&err, "could not render archive")

	s.deps.Tabs = s.tabs
	if err := s.courseEx.Render(); err != nil {
		return err
	}
	if err := s.renderAnnex(); err != nil {
		return err
	}

	if len(s.homepage) > 0 {
		data := templates.HomeData{
			Page:     s.page(s.info.Name, "./"),
			Messages: s.homepage,
		}
		if err := templates.RenderToFile(filepath.Join(s.buildDir, "index.html"), "home.html", data); err != nil {
			return err
		}
	}

	return templates.CopyStatic(s.buildDir)
}

// buildZim packages the build directory.
func (s *Scraper) buildZim(ctx context.Context) error {
	meta := zim.NewMetadata(s.cfg.Name, s.cfg.Publisher, s.cfg.TagList())
	meta.Title = orDefault(s.cfg.Title, s.info.Name)
	meta.Description = orDefault(s.cfg.Description, s.info.ShortDescription)
	meta.Creator = orDefault(s.cfg.Creator, orDefault(s.info.Org, constants.DefaultCreator))
	meta.Homepage = "index.html"
	if len(s.homepage) == 0 {
		meta.Homepage = "course/" + s.courseEx.Node().FolderName + "/index.html"
	}

	lang, err := zim.ISO3Lang(s.cfg.Lang)
	if err != nil {
		return err
	}
	meta.Language = lang

	fname := zim.FileName(s.cfg.Name, s.cfg.ZimFile, s.now())
	s.log.Info("Building ZIM file", "file", fname)
	return zim.Build(ctx, meta, s.buildDir, s.cfg.OutputDir, fname, s.cfg.NoFullTextIndex)
}

func (s *Scraper) page(title, rootURL string) templates.Page {
	return templates.Page{
		Title:   title,
		RootURL: rootURL,
		Tabs:    s.tabs,
		RTL:     isRTL(s.cfg.Lang),
	}
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
