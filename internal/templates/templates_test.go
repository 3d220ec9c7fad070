package templates_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzim/openedx2zim/internal/templates"
)

func TestMarkdown(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		text string

		want string
	}{
		"Emphasis":             {text: "some *emphasized* words", want: "some <em>emphasized</em> words"},
		"Link":                 {text: "[here](https://example.org)", want: `<a href="https://example.org">here</a>`},
		"Plain text":           {text: "plain", want: "plain"},
		"Newlines become tags": {text: "one\ntwo", want: "one<br>two"},
		"Empty":                {text: "", want: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, string(templates.Markdown(tc.text)), "Rendered markdown should match")
		})
	}
}

func TestFirstWords(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		text string

		want string
	}{
		"Long text is truncated": {text: "one two three four five six seven", want: "one two three four five"},
		"Short text is kept":     {text: "just a few", want: "just a few"},
		"Whitespace is folded":   {text: "  spaced \n out  ", want: "spaced out"},
		"Empty":                  {text: "", want: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, templates.FirstWords(tc.text), "Truncated text should match")
		})
	}
}

func TestCleanTop(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		path string

		want string
	}{
		"Nested path":    {path: "course/week-1/lesson-1", want: "course/week-1"},
		"Single element": {path: "course", want: ""},
		"Empty":          {path: "", want: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, templates.CleanTop(tc.path), "Parent path should match")
		})
	}
}

func TestRemoveNewline(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "onetwo", templates.RemoveNewline("one\ntwo"), "Newlines should be stripped")
	assert.Equal(t, "plain", templates.RemoveNewline("plain"), "Text without newlines should be unchanged")
}

func TestRender(t *testing.T) {
	t.Parallel()

	page, err := templates.Render("unavailable.html", templates.UnavailableData{Kind: "grademebutton"})
	require.NoError(t, err, "Render should not have failed")
	assert.Contains(t, page, "grademebutton", "Rendered page should carry the data")

	_, err = templates.Render("no-such-template.html", nil)
	require.Error(t, err, "Render should fail on unknown templates")
}

func TestRenderToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "index.html")
	err := templates.RenderToFile(path, "unavailable.html", templates.UnavailableData{Kind: "lti"})
	require.NoError(t, err, "RenderToFile should not have failed")

	content, err := os.ReadFile(path)
	require.NoError(t, err, "Rendered file should exist")
	assert.Contains(t, string(content), "lti", "Rendered file should carry the data")

	err = templates.RenderToFile(path, "unavailable.html", templates.UnavailableData{Kind: "video"})
	require.NoError(t, err, "Re-rendering over an existing file should not fail")

	content, err = os.ReadFile(path)
	require.NoError(t, err, "Rendered file should still exist")
	assert.Contains(t, string(content), "video", "Rendered file should carry the new data")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err, "Target directory should be readable")
	require.Len(t, entries, 1, "Rendering should not leave intermediate files behind")
}

func TestCopyStatic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, templates.CopyStatic(dir), "CopyStatic should not have failed")

	entries, err := os.ReadDir(filepath.Join(dir, "static"))
	require.NoError(t, err, "Static directory should exist")
	assert.NotEmpty(t, entries, "Static assets should be copied")

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "styles.css", "Stylesheet should be among the static assets")
}
