// Package optimcache implements the S3-backed optimization cache. Optimized
// assets are stored remotely keyed by their source URL so that reruns of the
// scraper skip the expensive download and re-encode steps.
package optimcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ubuntu/decorate"

	"github.com/openzim/openedx2zim/internal/constants"
	"github.com/openzim/openedx2zim/internal/fileutils"
)

const (
	metaVersion   = "version"
	metaOptimizer = "optimizer-version"
)

// Cache is a connection to an S3-compatible optimization cache bucket.
type Cache struct {
	client *minio.Client
	bucket string

	// useAnyVersion disables optimizer version matching on lookups.
	useAnyVersion bool

	log *slog.Logger
}

// New parses an S3 URL with credentials of the form
// https://endpoint/?keyId=...&secretAccessKey=...&bucketName=... and returns a
// connected Cache.
func New(l *slog.Logger, cacheURL string, useAnyVersion bool) (c *Cache, err error) {
	defer decorate.OnError(&err, "could not set up optimization cache")

	u, err := url.Parse(cacheURL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %v", err)
	}

	query := u.Query()
	keyID := query.Get("keyId")
	secret := query.Get("secretAccessKey")
	bucket := query.Get("bucketName")
	if keyID == "" || secret == "" || bucket == "" {
		return nil, fmt.Errorf("cache URL must carry keyId, secretAccessKey and bucketName")
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(keyID, secret, ""),
		Secure: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("could not create S3 client: %v", err)
	}

	return &Cache{client: client, bucket: bucket, useAnyVersion: useAnyVersion, log: l}, nil
}

// CheckCredentials verifies the credentials can read the bucket.
func (c *Cache) CheckCredentials(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("S3 credential check failed for bucket %s: %w", c.bucket, err)
	}
	if !exists {
		return fmt.Errorf("S3 bucket %s does not exist", c.bucket)
	}
	return nil
}

// KeyFor builds the cache key of a source URL:
// {ext}/{netloc}/{url-encoded remainder}/{quality}. Videos have their quality
// coordinate set by the low-quality flag; other assets use a fixed quality.
func KeyFor(srcURL, fpath string, lowQuality bool) string {
	ext := strings.TrimPrefix(fileutils.Ext(fpath), ".")

	quality := "default"
	if isVideo(ext) {
		quality = "high"
		if lowQuality {
			quality = "low"
		}
	}

	u, err := url.Parse(srcURL)
	if err != nil {
		return fmt.Sprintf("%s/%s/%s", ext, url.QueryEscape(srcURL), quality)
	}
	prefix := fmt.Sprintf("%s://%s/", u.Scheme, u.Host)
	safeURL := fmt.Sprintf("%s/%s", u.Host, url.QueryEscape(strings.TrimPrefix(u.String(), prefix)))
	return fmt.Sprintf("%s/%s/%s", ext, safeURL, quality)
}

// Download fetches key into fpath if a matching object exists. meta is the
// upstream version marker (ETag or Last-Modified of the source). Reports
// whether the file was served from the cache.
func (c *Cache) Download(ctx context.Context, key, fpath, meta string) bool {
	if meta == "" {
		return false
	}

	obj, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return false
	}
	if obj.UserMetadata[textprotoKey(metaVersion)] != meta {
		return false
	}
	if !c.useAnyVersion {
		filetype := filetypeFor(fpath)
		if obj.UserMetadata[textprotoKey(metaOptimizer)] != constants.OptimizerVersions[filetype] {
			return false
		}
	}

	if err := c.client.FGetObject(ctx, c.bucket, key, fpath, minio.GetObjectOptions{}); err != nil {
		c.log.Error("Failed to download from cache", "key", key, "error", err)
		return false
	}
	c.log.Info("Downloaded from cache", "file", fpath, "key", key)
	return true
}

// Upload stores fpath under key with version metadata. Reports whether the
// upload succeeded.
func (c *Cache) Upload(ctx context.Context, key, fpath, meta string) bool {
	filetype := filetypeFor(fpath)
	if meta == "" || filetype == "" {
		return false
	}

	_, err := c.client.FPutObject(ctx, c.bucket, key, fpath, minio.PutObjectOptions{
		UserMetadata: map[string]string{
			metaVersion:   meta,
			metaOptimizer: constants.OptimizerVersions[filetype],
		},
	})
	if err != nil {
		c.log.Error("Failed to upload to cache", "key", key, "error", err)
		return false
	}
	c.log.Info("Uploaded to cache", "file", fpath, "key", key)
	return true
}

// filetypeFor maps a file path to the optimizer family name, folding jpg into jpeg.
func filetypeFor(fpath string) string {
	ext := strings.TrimPrefix(fileutils.Ext(fpath), ".")
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}

func isVideo(ext string) bool {
	for _, v := range constants.VideoFormats {
		if ext == v {
			return true
		}
	}
	return false
}

// textprotoKey matches the canonical form minio uses for user metadata keys.
func textprotoKey(key string) string {
	return textproto.CanonicalMIMEHeaderKey(key)
}
