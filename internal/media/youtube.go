package media

import (
	"context"
	"fmt"

	"github.com/openzim/openedx2zim/internal/cmdutils"
)

// DownloadVideo fetches a hosted video (typically youtube) into fpath in the
// configured target format, via yt-dlp.
func (d *Downloader) DownloadVideo(ctx context.Context, url, fpath string) error {
	audExt, vidExt := "m4a", "mp4"
	if d.videoFormat == "webm" {
		audExt, vidExt = "webm", "webm"
	}

	format := fmt.Sprintf("best[ext=%s]/bestvideo[ext=%s]+bestaudio[ext=%s]/best", vidExt, vidExt, audExt)
	_, stderr, err := cmdutils.Run(ctx, "yt-dlp",
		"--output", fpath,
		"--format", format,
		"--retries", "20",
		"--fragment-retries", "50",
		url,
	)
	if err != nil {
		return fmt.Errorf("yt-dlp failed for %s: %v: %s", url, err, stderr)
	}
	return nil
}
