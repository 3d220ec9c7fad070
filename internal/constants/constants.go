// Package constants is responsible for defining the constants used in the application.
package constants

import (
	"fmt"
	"log/slog"
)

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "openedx2zim"

	// DefaultCreator is the ZIM creator used when neither the flag nor the course provides one.
	DefaultCreator = "edX"

	// DefaultPublisher is the ZIM publisher used when the flag is not set.
	DefaultPublisher = "Kiwix"

	// DefaultLang is the content language used when the flag is not set.
	DefaultLang = "en"

	// DefaultVideoFormat is the target container for course videos.
	DefaultVideoFormat = "mp4"

	// DefaultOutputDir is the folder receiving the built ZIM file.
	DefaultOutputDir = "output"

	// FaviconName is the file name of the favicon inside the build directory.
	FaviconName = "favicon.png"

	// MaxConcurrentDownloads bounds the asset download pool.
	MaxConcurrentDownloads = 10

	// DefaultLogLevel is the default log level for the application.
	DefaultLogLevel = slog.LevelWarn
)

var (
	// ScraperName identifies this scraper in ZIM metadata.
	ScraperName = fmt.Sprintf("%s %s", CmdName, Version)

	// VideoFormats are the file extensions treated as videos by the optimization pipeline.
	VideoFormats = []string{"mp4", "webm"}

	// ImageFormats are the file extensions treated as images by the optimization pipeline.
	ImageFormats = []string{"jpg", "jpeg", "png", "gif"}

	// OptimizerVersions records the optimizer generation per file type. Cached objects
	// carry this in their metadata so a cache entry optimized with an older toolchain
	// is not reused unless explicitly allowed.
	OptimizerVersions = map[string]string{
		"jpeg": "jpegoptim 1.4.6",
		"png":  "pngquant 2.12.2 + advancecomp 2.1",
		"gif":  "gifsicle 1.92",
		"mp4":  "ffmpeg 4.2",
		"webm": "ffmpeg 4.2",
	}
)
