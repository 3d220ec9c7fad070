package xblock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ubuntu/decorate"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/openzim/openedx2zim/internal/fileutils"
	"github.com/openzim/openedx2zim/internal/htmlproc"
	"github.com/openzim/openedx2zim/internal/media"
	"github.com/openzim/openedx2zim/internal/templates"
)

// videoSources is the preference order of the encodings the mobile API exposes.
var videoSources = []string{"fallback", "mobile_high", "mobile_low", "youtube"}

// Video downloads a video xblock: the video stream in the target format plus
// its subtitle tracks.
type Video struct {
	base

	subs        []templates.Sub
	unavailable bool
}

type encodedVideo struct {
	URL string `json:"url"`
}

// Download picks the best encoding the instance offers, fetches it into the
// block's directory and converts the transcripts to WebVTT.
func (v *Video) Download(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not download video %s", v.node.DisplayName)

	var data struct {
		EncodedVideos map[string]encodedVideo `json:"encoded_videos"`
		Transcripts   map[string]string       `json:"transcripts"`
	}
	if len(v.node.StudentViewData) > 0 {
		if err := json.Unmarshal(v.node.StudentViewData, &data); err != nil {
			return fmt.Errorf("could not decode video data: %v", err)
		}
	}

	var videoURL string
	for _, source := range videoSources {
		if encoded, ok := data.EncodedVideos[source]; ok && encoded.URL != "" {
			videoURL = encoded.URL
			break
		}
	}
	if videoURL == "" {
		v.deps.Log.Warn("Video has no downloadable encoding", "id", v.node.ID)
		v.unavailable = true
		return nil
	}

	dest := filepath.Join(v.outputPath(), "video."+v.deps.VideoFormat)
	if err := v.deps.Downloader.DownloadFile(ctx, v.deps.Conn.Instance().PrepareURL(videoURL), dest); err != nil {
		return err
	}

	for code, transcriptURL := range data.Transcripts {
		if err := v.downloadSubtitle(ctx, code, transcriptURL); err != nil {
			v.deps.Log.Warn("Failed to download subtitle", "id", v.node.ID, "lang", code, "error", err)
			continue
		}
		v.subs = append(v.subs, templates.Sub{Code: code, Name: langName(code)})
	}
	return nil
}

func (v *Video) downloadSubtitle(ctx context.Context, code, transcriptURL string) error {
	body, err := v.deps.Conn.GetPage(ctx, transcriptURL)
	if err != nil {
		return err
	}
	converted, err := media.NormalizeSubtitle(string(body))
	if err != nil {
		return err
	}
	dest := filepath.Join(v.outputPath(), code+".vtt")
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}
	return fileutils.AtomicWrite(dest, []byte(converted))
}

// Fragment renders the offline player, or the unavailable placeholder when no
// encoding could be fetched.
func (v *Video) Fragment() (string, error) {
	if v.unavailable {
		return templates.Render("unavailable.html", templates.UnavailableData{Kind: "video"})
	}
	return templates.Render("video.html", templates.VideoData{
		Format:     v.deps.VideoFormat,
		FolderName: v.node.FolderName,
		Subs:       v.subs,
		Title:      v.node.DisplayName,
	})
}

// Libcast downloads a libcast-hosted video xblock: the stream URL and subtitle
// tracks sit in the rendered page instead of the mobile API payload.
type Libcast struct {
	base

	subs        []templates.Sub
	unavailable bool
}

// Download scrapes the block page for the video source and its tracks.
func (l *Libcast) Download(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not download libcast video %s", l.node.DisplayName)

	body, err := l.deps.Conn.GetPage(ctx, l.node.StudentViewURL)
	if err != nil {
		return err
	}
	doc, err := htmlproc.ParsePage(string(body))
	if err != nil {
		return err
	}

	video := doc.Find("video", "")
	if video == nil {
		l.deps.Log.Warn("Libcast block has no video element", "id", l.node.ID)
		l.unavailable = true
		return nil
	}
	videoURL := video.Attr("src")
	if videoURL == "" {
		videoURL = video.Find("source", "").Attr("src")
	}
	if videoURL == "" {
		l.unavailable = true
		return nil
	}

	dest := filepath.Join(l.outputPath(), "video."+l.deps.VideoFormat)
	if err := l.deps.Downloader.DownloadFile(ctx, l.deps.Conn.Instance().PrepareURL(videoURL), dest); err != nil {
		return err
	}

	for _, track := range video.FindAll("track", "") {
		src := track.Attr("src")
		code := track.Attr("srclang")
		if src == "" || code == "" {
			continue
		}
		sub := Video{base: l.base}
		if err := sub.downloadSubtitle(ctx, code, src); err != nil {
			l.deps.Log.Warn("Failed to download subtitle", "id", l.node.ID, "lang", code, "error", err)
			continue
		}
		l.subs = append(l.subs, templates.Sub{Code: code, Name: langName(code)})
	}
	return nil
}

// Fragment renders the same offline player as the video xblock.
func (l *Libcast) Fragment() (string, error) {
	if l.unavailable {
		return templates.Render("unavailable.html", templates.UnavailableData{Kind: "video"})
	}
	return templates.Render("video.html", templates.VideoData{
		Format:     l.deps.VideoFormat,
		FolderName: l.node.FolderName,
		Subs:       l.subs,
		Title:      l.node.DisplayName,
	})
}

// langName resolves a language code to its self-described name for the track
// label, falling back to the code itself.
func langName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return code
}
