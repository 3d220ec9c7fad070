package media

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	srtTimeRe    = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}),(\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}),(\d{3})`)
	srtCounterRe = regexp.MustCompile(`(?m)^0$`)
)

// IsWebVTT reports whether the subtitle payload already is WebVTT.
func IsWebVTT(content string) bool {
	firstLine, _, _ := strings.Cut(strings.TrimLeft(content, "\uFEFF\n\r "), "\n")
	return strings.Contains(strings.ToLower(firstLine), "webvtt")
}

// NormalizeSubtitle cleans a subtitle payload the way the instance serves it:
// HTML entities are unescaped and a leading zero cue counter is bumped to one.
// SRT payloads are converted to WebVTT.
func NormalizeSubtitle(content string) (string, error) {
	content = html.UnescapeString(content)
	content = srtCounterRe.ReplaceAllString(content, "1")

	if IsWebVTT(content) {
		return content, nil
	}
	return srtToVTT(content)
}

// srtToVTT converts SRT cues to WebVTT: a header is prepended and comma
// millisecond separators become dots.
func srtToVTT(content string) (string, error) {
	if !srtTimeRe.MatchString(content) {
		return "", fmt.Errorf("subtitle content is neither WebVTT nor SRT")
	}

	converted := srtTimeRe.ReplaceAllString(content, "$1.$2 --> $3.$4")
	return "WEBVTT\n\n" + strings.TrimLeft(converted, "\n\r"), nil
}
