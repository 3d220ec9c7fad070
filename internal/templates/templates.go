// Package templates renders the HTML pages of the archive from embedded
// templates, mirroring the page structure of an Open edX course.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/russross/blackfriday/v2"

	"github.com/openzim/openedx2zim/internal/fileutils"
)

//go:embed html/*.html
var files embed.FS

//go:embed static
var static embed.FS

var tmpl = template.Must(
	template.New("").Funcs(template.FuncMap{
		"slugify":       slug.Make,
		"markdown":      Markdown,
		"firstWords":    FirstWords,
		"cleanTop":      CleanTop,
		"removeNewline": RemoveNewline,
	}).ParseFS(files, "html/*.html"),
)

// Render executes the named template and returns the result.
func Render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("could not render template %s: %v", name, err)
	}
	return sb.String(), nil
}

// RenderToFile executes the named template into the given file, creating parent
// directories as needed.
func RenderToFile(path, name string, data any) error {
	page, err := Render(name, data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("could not create directory for %s: %v", path, err)
	}
	if err := fileutils.AtomicWrite(path, []byte(page)); err != nil {
		return fmt.Errorf("could not write %s: %v", path, err)
	}
	return nil
}

// CopyStatic writes the embedded static assets (styles, viewer scripts) into
// dir/static.
func CopyStatic(dir string) error {
	entries, err := static.ReadDir("static")
	if err != nil {
		return fmt.Errorf("could not list static assets: %v", err)
	}
	target := filepath.Join(dir, "static")
	if err := os.MkdirAll(target, 0750); err != nil {
		return fmt.Errorf("could not create %s: %v", target, err)
	}
	for _, entry := range entries {
		data, err := static.ReadFile("static/" + entry.Name())
		if err != nil {
			return fmt.Errorf("could not read static asset %s: %v", entry.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(target, entry.Name()), data, 0640); err != nil {
			return fmt.Errorf("could not write static asset %s: %v", entry.Name(), err)
		}
	}
	return nil
}

// Markdown renders a markdown snippet as inline HTML, with paragraph tags
// stripped and newlines turned into breaks.
func Markdown(text string) template.HTML {
	rendered := strings.TrimSpace(string(blackfriday.Run([]byte(text))))
	rendered = strings.TrimPrefix(rendered, "<p>")
	rendered = strings.TrimSuffix(rendered, "</p>")
	return template.HTML(strings.ReplaceAll(rendered, "\n", "<br>")) // #nosec:G203
}

// FirstWords returns the first five words of text.
func FirstWords(text string) string {
	words := strings.Fields(text)
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}

// CleanTop drops the last element of a slash path.
func CleanTop(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// RemoveNewline strips newlines from text.
func RemoveNewline(text string) string {
	return strings.ReplaceAll(text, "\n", "")
}
