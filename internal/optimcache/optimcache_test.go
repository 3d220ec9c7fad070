package optimcache_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzim/openedx2zim/internal/optimcache"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cacheURL string

		wantErr bool
	}{
		"Complete URL": {
			cacheURL: "https://s3.example.org/?keyId=key&secretAccessKey=secret&bucketName=bucket",
		},
		"Plain http endpoint": {
			cacheURL: "http://localhost:9000/?keyId=key&secretAccessKey=secret&bucketName=bucket",
		},

		"Missing key ID": {
			cacheURL: "https://s3.example.org/?secretAccessKey=secret&bucketName=bucket",
			wantErr:  true,
		},
		"Missing secret": {
			cacheURL: "https://s3.example.org/?keyId=key&bucketName=bucket",
			wantErr:  true,
		},
		"Missing bucket": {
			cacheURL: "https://s3.example.org/?keyId=key&secretAccessKey=secret",
			wantErr:  true,
		},
		"Unparseable URL": {
			cacheURL: "://nope",
			wantErr:  true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cache, err := optimcache.New(slog.Default(), tc.cacheURL, false)
			if tc.wantErr {
				require.Error(t, err, "New should have failed")
				return
			}
			require.NoError(t, err, "New should not have failed")
			assert.NotNil(t, cache, "New should return a cache")
		})
	}
}

func TestKeyFor(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		srcURL     string
		fpath      string
		lowQuality bool

		want string
	}{
		"Image uses the default quality": {
			srcURL: "https://mooc.example.org/static/pic.png",
			fpath:  "/build/pic.png",
			want:   "png/mooc.example.org/static%2Fpic.png/default",
		},
		"Jpg keeps its own extension coordinate": {
			srcURL: "https://mooc.example.org/static/pic.jpg",
			fpath:  "/build/pic.jpg",
			want:   "jpg/mooc.example.org/static%2Fpic.jpg/default",
		},
		"Video defaults to high quality": {
			srcURL: "https://cdn.example.org/v/clip.mp4",
			fpath:  "/build/video.mp4",
			want:   "mp4/cdn.example.org/v%2Fclip.mp4/high",
		},
		"Low quality flag moves videos to low": {
			srcURL:     "https://cdn.example.org/v/clip.mp4",
			fpath:      "/build/video.mp4",
			lowQuality: true,
			want:       "mp4/cdn.example.org/v%2Fclip.mp4/low",
		},
		"Low quality flag does not affect images": {
			srcURL:     "https://mooc.example.org/static/pic.png",
			fpath:      "/build/pic.png",
			lowQuality: true,
			want:       "png/mooc.example.org/static%2Fpic.png/default",
		},
		"Query string survives in the key": {
			srcURL: "https://mooc.example.org/static/pic.png?size=large",
			fpath:  "/build/pic.png",
			want:   "png/mooc.example.org/static%2Fpic.png%3Fsize%3Dlarge/default",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, optimcache.KeyFor(tc.srcURL, tc.fpath, tc.lowQuality), "Cache key should match")
		})
	}
}
