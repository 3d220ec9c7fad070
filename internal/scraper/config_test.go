package scraper_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzim/openedx2zim/internal/scraper"
)

func validConfig() scraper.Config {
	return scraper.Config{
		CourseURL: "https://courses.edx.org/courses/course-v1:edX+DemoX+Demo/course/",
		Email:     "user@example.org",
		Password:  "hunter2",
		Name:      "demo-course",
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		modify func(*scraper.Config)

		wantVideoFormat string
		wantLang        string
		wantOutputDir   string
		wantPublisher   string
		wantErr         bool
	}{
		"Minimal config gets defaults": {
			modify:          func(c *scraper.Config) {},
			wantVideoFormat: "mp4",
			wantLang:        "en",
			wantOutputDir:   "output",
			wantPublisher:   "Kiwix",
		},
		"Explicit values are kept": {
			modify: func(c *scraper.Config) {
				c.VideoFormat = "webm"
				c.Lang = "fr"
				c.OutputDir = "/out"
				c.Publisher = "me"
			},
			wantVideoFormat: "webm",
			wantLang:        "fr",
			wantOutputDir:   "/out",
			wantPublisher:   "me",
		},

		"Missing course URL": {modify: func(c *scraper.Config) { c.CourseURL = "" }, wantErr: true},
		"Missing email":      {modify: func(c *scraper.Config) { c.Email = "" }, wantErr: true},
		"Missing password":   {modify: func(c *scraper.Config) { c.Password = "" }, wantErr: true},
		"Missing name":       {modify: func(c *scraper.Config) { c.Name = "" }, wantErr: true},
		"Blank name":         {modify: func(c *scraper.Config) { c.Name = "   " }, wantErr: true},
		"Bad video format":   {modify: func(c *scraper.Config) { c.VideoFormat = "avi" }, wantErr: true},
		"Bad language":       {modify: func(c *scraper.Config) { c.Lang = "not a language" }, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			config := validConfig()
			tc.modify(&config)

			err := config.Sanitize(slog.Default())
			if tc.wantErr {
				require.ErrorIs(t, err, scraper.ErrInvalidConfig, "Sanitize should have failed with ErrInvalidConfig")
				return
			}
			require.NoError(t, err, "Sanitize should not have failed")

			assert.Equal(t, tc.wantVideoFormat, config.VideoFormat, "Video format should match")
			assert.Equal(t, tc.wantLang, config.Lang, "Language should match")
			assert.Equal(t, tc.wantOutputDir, config.OutputDir, "Output directory should match")
			assert.Equal(t, tc.wantPublisher, config.Publisher, "Publisher should match")
		})
	}
}

func TestTagList(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		tags string

		want []string
	}{
		"Comma separated":      {tags: "mooc,edx", want: []string{"mooc", "edx"}},
		"Spaces are trimmed":   {tags: " mooc , edx ", want: []string{"mooc", "edx"}},
		"Empty items dropped":  {tags: "mooc,,edx,", want: []string{"mooc", "edx"}},
		"Empty string is none": {tags: "", want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			config := scraper.Config{Tags: tc.tags}
			assert.Equal(t, tc.want, config.TagList(), "Tag list should match")
		})
	}
}
