package htmlproc_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzim/openedx2zim/internal/edx"
	"github.com/openzim/openedx2zim/internal/fileutils"
	"github.com/openzim/openedx2zim/internal/htmlproc"
)

// recordingDownloader records download requests and creates the target files.
type recordingDownloader struct {
	files  []string
	videos []string
	fail   bool
}

func (d *recordingDownloader) DownloadFile(ctx context.Context, url, dest string) error {
	if d.fail {
		return fmt.Errorf("download refused")
	}
	d.files = append(d.files, url)
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("asset"), 0600)
}

func (d *recordingDownloader) DownloadVideo(ctx context.Context, url, dest string) error {
	if d.fail {
		return fmt.Errorf("download refused")
	}
	d.videos = append(d.videos, url)
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("video"), 0600)
}

func newTestProcessor(t *testing.T, d htmlproc.Downloader) *htmlproc.Processor {
	t.Helper()

	instance := edx.Instance{URL: "https://mooc.example.org"}
	embed := func(folderName string) (string, error) {
		return `<video src="` + folderName + `/video.mp4"></video>`, nil
	}
	return htmlproc.New(slog.Default(), instance, d, embed)
}

func TestDownloadDependencies(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content string

		wantDownloads int
		wantVideos    int
		wantContains  []string
		wantUnchanged bool
	}{
		"Image is downloaded and rewritten": {
			content:       `<p><img src="/static/diagram.png"></p>`,
			wantDownloads: 1,
			wantContains:  []string{"assets/" + fileutils.HashedName("/static/diagram.png"), "max-width:100%"},
		},
		"Document link is downloaded": {
			content:       `<a href="/static/handout.pdf">handout</a>`,
			wantDownloads: 1,
			wantContains:  []string{"assets/" + fileutils.HashedName("/static/handout.pdf")},
		},
		"External page link is kept": {
			content:       `<a href="https://example.org/page">page</a>`,
			wantContains:  []string{`href="https://example.org/page"`},
			wantUnchanged: true,
		},
		"Wiki link is kept": {
			content:       `<a href="/wiki/some-page">wiki</a>`,
			wantContains:  []string{`href="/wiki/some-page"`},
			wantUnchanged: true,
		},
		"Stylesheet and script are downloaded": {
			content:       `<link href="/static/a.css" rel="stylesheet"><script src="/static/b.js"></script>`,
			wantDownloads: 2,
			wantContains: []string{
				"assets/" + fileutils.HashedName("/static/a.css"),
				"assets/" + fileutils.HashedName("/static/b.js"),
			},
		},
		"Youtube iframe becomes a local player": {
			content:      `<div><iframe src="https://www.youtube.com/embed/abc123"></iframe></div>`,
			wantVideos:   1,
			wantContains: []string{`<video src="abc123/video.mp4">`},
		},
		"PDF iframe is downloaded and rewritten": {
			content:       `<iframe src="/static/book.pdf"></iframe>`,
			wantDownloads: 1,
			wantContains:  []string{"assets/" + fileutils.HashedName("/static/book.pdf")},
		},

		"Content without references is unchanged": {
			content:       `<p>Just text</p>`,
			wantUnchanged: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			downloader := &recordingDownloader{}
			processor := newTestProcessor(t, downloader)
			outputPath := t.TempDir()

			got, err := processor.DownloadDependencies(context.Background(), tc.content, outputPath, "assets")
			require.NoError(t, err, "DownloadDependencies should not have failed")

			if tc.wantUnchanged {
				assert.Equal(t, tc.content, got, "Untouched content should come back byte for byte")
			}
			assert.Len(t, downloader.files, tc.wantDownloads, "Unexpected number of file downloads")
			assert.Len(t, downloader.videos, tc.wantVideos, "Unexpected number of video downloads")
			for _, want := range tc.wantContains {
				assert.Contains(t, got, want, "Rewritten content should reference the local copy")
			}
		})
	}
}

func TestDownloadDependenciesResolvesInstanceURLs(t *testing.T) {
	t.Parallel()

	downloader := &recordingDownloader{}
	processor := newTestProcessor(t, downloader)

	_, err := processor.DownloadDependencies(context.Background(),
		`<img src="/static/a.png"><img src="//cdn.example.org/b.png">`, t.TempDir(), "assets")
	require.NoError(t, err, "DownloadDependencies should not have failed")

	require.Len(t, downloader.files, 2, "Both images should be downloaded")
	assert.Equal(t, "https://mooc.example.org/static/a.png", downloader.files[0], "Relative URL should be rooted at the instance")
	assert.Equal(t, "http://cdn.example.org/b.png", downloader.files[1], "Scheme-less URL should get a scheme")
}

func TestDownloadDependenciesSkipsExistingAssets(t *testing.T) {
	t.Parallel()

	downloader := &recordingDownloader{}
	processor := newTestProcessor(t, downloader)
	outputPath := t.TempDir()

	content := `<img src="/static/a.png">`
	_, err := processor.DownloadDependencies(context.Background(), content, outputPath, "assets")
	require.NoError(t, err, "First pass should not have failed")
	_, err = processor.DownloadDependencies(context.Background(), content, outputPath, "assets")
	require.NoError(t, err, "Second pass should not have failed")

	assert.Len(t, downloader.files, 1, "Asset already on disk should not be downloaded again")
}

func TestDownloadDependenciesToleratesFailedDownloads(t *testing.T) {
	t.Parallel()

	downloader := &recordingDownloader{fail: true}
	processor := newTestProcessor(t, downloader)

	got, err := processor.DownloadDependencies(context.Background(),
		`<img src="/static/a.png">`, t.TempDir(), "assets")
	require.NoError(t, err, "Failed downloads should not abort the rewrite")
	assert.True(t, strings.Contains(got, fileutils.HashedName("/static/a.png")),
		"Reference should still point at the local name")
}
