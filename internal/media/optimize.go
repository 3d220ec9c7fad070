package media

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openzim/openedx2zim/internal/cmdutils"
	"github.com/openzim/openedx2zim/internal/constants"
	"github.com/openzim/openedx2zim/internal/fileutils"
)

// RequiredBinaries returns the external tools the pipeline shells out to.
// zimwriterfs is only needed when a ZIM file is actually produced.
func RequiredBinaries(noZim bool) []string {
	bins := []string{"jpegoptim", "pngquant", "advdef", "gifsicle", "ffmpeg"}
	if !noZim {
		bins = append(bins, "zimwriterfs")
	}
	return bins
}

// CheckBinaries verifies all required external tools are installed.
func CheckBinaries(noZim bool) error {
	var missing []string
	for _, bin := range RequiredBinaries(noZim) {
		if !cmdutils.BinaryPresent(bin) {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
	}
	return nil
}

// OptimizeFile post-processes a downloaded file into dst. Videos are re-encoded
// when needed, images are run through the lossless/lossy optimizers. Reports
// whether the file was actually optimized.
func (d *Downloader) OptimizeFile(ctx context.Context, src, dst string) (bool, error) {
	ext := strings.TrimPrefix(fileutils.Ext(src), ".")
	for _, v := range constants.VideoFormats {
		if ext == v {
			return d.convertVideo(ctx, src, dst)
		}
	}
	for _, i := range constants.ImageFormats {
		if ext == i {
			return d.optimizeImage(ctx, src, dst)
		}
	}
	return false, nil
}

// convertVideo re-encodes src into dst with the configured preset when the
// container does not match the target format or low quality is requested.
func (d *Downloader) convertVideo(ctx context.Context, src, dst string) (bool, error) {
	ext := strings.TrimPrefix(fileutils.Ext(src), ".")
	if ext == d.videoFormat && !d.lowQuality {
		return false, nil
	}

	tmp := dst + ".reencode." + d.videoFormat
	args := []string{"-y", "-i", src}
	args = append(args, PresetArgs(d.videoFormat)...)
	args = append(args, tmp)

	_, stderr, err := cmdutils.Run(ctx, "ffmpeg", args...)
	if err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("ffmpeg re-encode failed: %v: %s", err, stderr)
	}

	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		d.log.Warn("Failed to remove pre-encode source", "file", src, "error", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return false, fmt.Errorf("could not move re-encoded video in place: %v", err)
	}
	return true, nil
}

// optimizeImage shrinks an image in place with the tool matching its type, then
// moves it to dst.
func (d *Downloader) optimizeImage(ctx context.Context, src, dst string) (optimized bool, err error) {
	switch fileutils.Ext(src) {
	case ".jpg", ".jpeg":
		_, _, err := cmdutils.RunWithTimeout(ctx, 10*time.Second, "jpegoptim", "--strip-all", "-m50", src)
		optimized = err == nil
	case ".png":
		_, _, quantErr := cmdutils.RunWithTimeout(ctx, 10*time.Second, "pngquant", "--nofs", "--force", "--ext=.png", src)
		if quantErr != nil {
			d.log.Warn("pngquant failed", "file", src, "error", quantErr)
		}
		_, _, advErr := cmdutils.RunWithTimeout(ctx, 50*time.Second, "advdef", "-q", "-z", "-4", "-i", "5", src)
		if advErr != nil {
			d.log.Warn("advdef failed", "file", src, "error", advErr)
		}
		optimized = quantErr == nil || advErr == nil
	case ".gif":
		_, _, err := cmdutils.RunWithTimeout(ctx, 10*time.Second, "gifsicle", "--batch", "-O3", "-i", src)
		optimized = err == nil
	}

	if src != dst {
		if err := os.Rename(src, dst); err != nil {
			return false, fmt.Errorf("could not move optimized image in place: %v", err)
		}
	}
	return optimized, nil
}
