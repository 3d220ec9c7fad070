// Package zim assembles the final ZIM archive from a build directory by
// driving the zimwriterfs binary.
package zim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ubuntu/decorate"
	"golang.org/x/text/language"

	"github.com/openzim/openedx2zim/internal/cmdutils"
	"github.com/openzim/openedx2zim/internal/constants"
)

// Metadata is the ZIM metadata written into the archive header.
type Metadata struct {
	Name        string
	Title       string
	Description string
	Creator     string
	Publisher   string
	Language    string // ISO-639-3
	Tags        []string
	Homepage    string
	Favicon     string
	Scraper     string
}

// NewMetadata returns Metadata pre-filled with the scraper identity and the
// openedx category tags.
func NewMetadata(name, publisher string, tags []string) Metadata {
	return Metadata{
		Name:      name,
		Publisher: publisher,
		Tags:      append(tags, "_category:openedx", "openedx"),
		Favicon:   constants.FaviconName,
		Scraper:   constants.ScraperName,
	}
}

// ISO3Lang converts an ISO-639-1 language code to the ISO-639-3 code ZIM
// metadata requires.
func ISO3Lang(code string) (string, error) {
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language code %q: %v", code, err)
	}
	base, _ := tag.Base()
	return base.ISO3(), nil
}

// FileName resolves the output file name. A custom fname may carry a {period}
// placeholder; the default is {name}_{period}.zim. The period is the current
// year and month.
func FileName(name, fname string, now time.Time) string {
	period := now.Format("2006-01")
	if fname == "" {
		fname = strings.ReplaceAll(name, " ", "-") + "_{period}.zim"
	}
	return strings.ReplaceAll(fname, "{period}", period)
}

// Args returns the zimwriterfs invocation for the metadata.
func (m Metadata) Args(buildDir, outPath string, noFullTextIndex bool) []string {
	args := []string{
		"--welcome=" + m.Homepage,
		"--favicon=" + m.Favicon,
		"--language=" + m.Language,
		"--title=" + m.Title,
		"--description=" + m.Description,
		"--creator=" + m.Creator,
		"--publisher=" + m.Publisher,
		"--name=" + m.Name,
		"--tags=" + strings.Join(m.Tags, ";"),
		"--scraper=" + m.Scraper,
	}
	if noFullTextIndex {
		args = append(args, "--withoutFTIndex")
	}
	return append(args, buildDir, outPath)
}

// Build packages buildDir into outputDir/fname.
func Build(ctx context.Context, m Metadata, buildDir, outputDir, fname string, noFullTextIndex bool) (err error) {
	defer decorate.OnError(&err, "could not build ZIM file")

	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return fmt.Errorf("could not create output directory: %v", err)
	}

	outPath := filepath.Join(outputDir, fname)
	_, stderr, err := cmdutils.Run(ctx, "zimwriterfs", m.Args(buildDir, outPath, noFullTextIndex)...)
	if err != nil {
		return fmt.Errorf("zimwriterfs failed: %v: %s", err, stderr)
	}
	return nil
}
