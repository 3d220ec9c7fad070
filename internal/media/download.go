// Package media downloads course assets and post-processes them: videos are
// re-encoded to the target format, images are optimized, and results can be
// served from and fed back into an S3 optimization cache.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openzim/openedx2zim/internal/fileutils"
	"github.com/openzim/openedx2zim/internal/optimcache"
)

// OptimizationCache serves optimized assets by key and accepts new ones.
type OptimizationCache interface {
	Download(ctx context.Context, key, fpath, meta string) bool
	Upload(ctx context.Context, key, fpath, meta string) bool
}

// Downloader fetches assets and runs them through the optimization pipeline.
type Downloader struct {
	videoFormat string
	lowQuality  bool
	cache       OptimizationCache

	client *http.Client

	log *slog.Logger
}

type options struct {
	// Private members exported for tests.
	client *http.Client
}

// Options represents an optional function to override Downloader default values.
type Options func(*options)

// New returns a Downloader. cache may be nil when no optimization cache is configured.
func New(l *slog.Logger, videoFormat string, lowQuality bool, cache OptimizationCache, args ...Options) *Downloader {
	opts := options{client: &http.Client{Timeout: 10 * time.Minute}}
	for _, opt := range args {
		opt(&opts)
	}

	return &Downloader{
		videoFormat: videoFormat,
		lowQuality:  lowQuality,
		cache:       cache,
		client:      opts.client,
		log:         l,
	}
}

// DownloadFile runs the full asset pipeline for url into fpath: cache lookup,
// download (direct or youtube), optimization, and cache upload.
func (d *Downloader) DownloadFile(ctx context.Context, url, fpath string) error {
	isYoutube := strings.Contains(url, "youtube")
	meta, filetype := d.metaFromURL(ctx, url)

	var key string
	if d.cache != nil {
		key = optimcache.KeyFor(url, fpath, d.lowQuality)
		if d.cache.Download(ctx, key, fpath, meta) {
			return nil
		}
	}

	var downloaded string
	var err error
	if isYoutube {
		err = d.DownloadVideo(ctx, url, fpath)
		downloaded = fpath
	} else {
		downloaded, err = d.downloadFromURL(ctx, url, fpath, filetype)
	}
	if err != nil {
		return fmt.Errorf("could not download %s: %w", url, err)
	}

	optimized, err := d.OptimizeFile(ctx, downloaded, fpath)
	if err != nil {
		d.moveInPlace(downloaded, fpath)
		return fmt.Errorf("could not optimize %s: %w", fpath, err)
	}
	if d.cache != nil && optimized {
		d.cache.Upload(ctx, key, fpath, meta)
	}

	d.moveInPlace(downloaded, fpath)
	return nil
}

// downloadFromURL saves url to disk. When the detected filetype disagrees with
// the target extension, the payload lands in a sidecar path carrying the real
// extension so that the optimizer can convert it into fpath.
func (d *Downloader) downloadFromURL(ctx context.Context, url, fpath, filetype string) (string, error) {
	downloadPath := fpath
	targetExt := strings.TrimPrefix(fileutils.Ext(fpath), ".")
	if filetype != "" && targetExt != filetype && !(filetype == "jpg" && targetExt == "jpeg") {
		downloadPath = fpath + ".orig." + filetype
	}

	if err := d.saveLargeFile(ctx, url, downloadPath); err != nil {
		_ = os.Remove(downloadPath)
		return "", err
	}
	return downloadPath, nil
}

func (d *Downloader) saveLargeFile(ctx context.Context, url, dest string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %v", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("could not create target directory: %v", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("could not create %s: %v", dest, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("could not write %s: %v", dest, err)
	}
	return nil
}

// headRetries bounds the attempts of the version probe. An asset with no
// version marker cannot be served from the optimization cache, so transient
// failures are worth retrying.
const headRetries = 5

// metaFromURL returns the upstream version marker (ETag, falling back to
// Last-Modified) and the filetype hinted by the Content-Type header.
func (d *Downloader) metaFromURL(ctx context.Context, url string) (meta, filetype string) {
	var resp *http.Response
	for attempt := 0; attempt < headRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return "", ""
		}
		if resp, err = d.client.Do(req); err == nil {
			break
		}
		resp = nil
		d.log.Debug("HEAD request failed", "url", url, "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			return "", ""
		}
	}
	if resp == nil {
		d.log.Warn("Could not probe asset version, cache disabled for this asset", "url", url)
		return "", ""
	}
	resp.Body.Close()

	meta = strings.Trim(resp.Header.Get("ETag"), `"`)
	if meta == "" {
		meta = resp.Header.Get("Last-Modified")
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	for _, t := range []string{"png", "jpeg", "gif", "mp4", "webm"} {
		if strings.Contains(contentType, t) {
			filetype = t
			break
		}
	}
	if filetype == "" && strings.Contains(contentType, "jpg") {
		filetype = "jpeg"
	}
	return meta, filetype
}

// moveInPlace ensures the final artifact sits at fpath when the download landed
// in a sidecar path and optimization did not produce fpath itself.
func (d *Downloader) moveInPlace(downloaded, fpath string) {
	if downloaded == fpath || downloaded == "" || fileutils.Exists(fpath) {
		return
	}
	if err := os.Rename(downloaded, fpath); err != nil {
		d.log.Warn("Failed to move downloaded file in place", "from", downloaded, "to", fpath, "error", err)
	}
}
