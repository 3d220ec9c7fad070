package scraper

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/openzim/openedx2zim/internal/constants"
)

// ErrInvalidConfig is returned when the configuration cannot produce a scrape.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything a scrape needs, from credentials to ZIM metadata.
type Config struct {
	CourseURL string `mapstructure:"course-url"`
	Email     string `mapstructure:"email"`
	Password  string `mapstructure:"password"`

	Name        string `mapstructure:"name"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Creator     string `mapstructure:"creator"`
	Publisher   string `mapstructure:"publisher"`
	Tags        string `mapstructure:"tags"`
	Lang        string `mapstructure:"lang"`

	VideoFormat string `mapstructure:"video-format"`
	LowQuality  bool   `mapstructure:"low-quality"`

	IgnoreMissingXblocks bool `mapstructure:"ignore-missing-xblocks"`
	AddWiki              bool `mapstructure:"add-wiki"`
	AddForum             bool `mapstructure:"add-forum"`

	OutputDir       string `mapstructure:"output"`
	TmpDir          string `mapstructure:"tmp-dir"`
	ZimFile         string `mapstructure:"zim-file"`
	NoFullTextIndex bool   `mapstructure:"no-fulltext-index"`
	NoZim           bool   `mapstructure:"no-zim"`
	KeepBuildDir    bool   `mapstructure:"keep"`

	InstanceCatalog        string `mapstructure:"instance-catalog"`
	OptimizationCache      string `mapstructure:"optimization-cache"`
	UseAnyOptimizedVersion bool   `mapstructure:"use-any-optimized-version"`
}

// Sanitize validates the configuration and fills in defaults, warning about
// values it adjusts.
func (c *Config) Sanitize(l *slog.Logger) error {
	for field, value := range map[string]string{
		"course-url": c.CourseURL,
		"email":      c.Email,
		"password":   c.Password,
		"name":       c.Name,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s must be set", ErrInvalidConfig, field)
		}
	}

	if c.VideoFormat == "" {
		c.VideoFormat = constants.DefaultVideoFormat
	}
	validFormat := false
	for _, format := range constants.VideoFormats {
		if c.VideoFormat == format {
			validFormat = true
			break
		}
	}
	if !validFormat {
		return fmt.Errorf("%w: video format %q not supported, use one of %s",
			ErrInvalidConfig, c.VideoFormat, strings.Join(constants.VideoFormats, ", "))
	}

	if c.Lang == "" {
		c.Lang = constants.DefaultLang
	}
	if _, err := language.Parse(c.Lang); err != nil {
		return fmt.Errorf("%w: language %q is not a valid code: %v", ErrInvalidConfig, c.Lang, err)
	}

	if c.OutputDir == "" {
		l.Debug("No output directory set, using default", "dir", constants.DefaultOutputDir)
		c.OutputDir = constants.DefaultOutputDir
	}
	if c.Publisher == "" {
		c.Publisher = constants.DefaultPublisher
	}

	if c.UseAnyOptimizedVersion && c.OptimizationCache == "" {
		l.Warn("use-any-optimized-version has no effect without an optimization cache")
	}

	return nil
}

// TagList splits the comma separated tags flag into clean tags.
func (c *Config) TagList() []string {
	var tags []string
	for _, tag := range strings.Split(c.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
