// Package app provides the openedx2zim command line application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openzim/openedx2zim/internal/cli"
	"github.com/openzim/openedx2zim/internal/constants"
	"github.com/openzim/openedx2zim/internal/scraper"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	cancel context.CancelFunc

	ready chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	Debug     bool
	JSONLogs  bool

	Scraper scraper.Config `mapstructure:",squash"`
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}

	a.cmd = &cobra.Command{
		Use:           constants.CmdName + " --course-url URL --email EMAIL --password PASSWORD --name NAME",
		Short:         "Make ZIM files from Open edX MOOCs",
		Long:          "Scrape a course from an Open edX instance and package it into a ZIM file for offline use.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			a.setVerbosity()
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to decode configuration into struct: %w", err)
			}

			a.setVerbosity()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd
	conf := &app.config.Scraper

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.Debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	cmd.Flags().StringVar(&conf.CourseURL, "course-url", "", "URL of the course to scrape")
	cmd.Flags().StringVar(&conf.Email, "email", "", "email of the instance account to scrape with")
	cmd.Flags().StringVar(&conf.Password, "password", "", "password of the instance account")

	cmd.Flags().StringVar(&conf.Name, "name", "", "ZIM name, used as file name base unless --zim-file is set")
	cmd.Flags().StringVar(&conf.Title, "title", "", "ZIM title, defaults to the course name")
	cmd.Flags().StringVar(&conf.Description, "description", "", "ZIM description, defaults to the course short description")
	cmd.Flags().StringVar(&conf.Creator, "creator", "", "ZIM creator, defaults to the course organization")
	cmd.Flags().StringVar(&conf.Publisher, "publisher", constants.DefaultPublisher, "ZIM publisher")
	cmd.Flags().StringVar(&conf.Tags, "tags", "", "comma separated list of ZIM tags")
	cmd.Flags().StringVar(&conf.Lang, "lang", constants.DefaultLang, "ISO-639-1 language code of the course content")

	cmd.Flags().StringVar(&conf.VideoFormat, "video-format", constants.DefaultVideoFormat, "format to download and re-encode videos in (mp4 or webm)")
	cmd.Flags().BoolVar(&conf.LowQuality, "low-quality", false, "re-encode videos with a lower quality preset")

	cmd.Flags().BoolVar(&conf.IgnoreMissingXblocks, "ignore-missing-xblocks", false, "replace unsupported xblocks with a placeholder instead of failing")
	cmd.Flags().BoolVar(&conf.AddWiki, "add-wiki", false, "capture the course wiki into the archive")
	cmd.Flags().BoolVar(&conf.AddForum, "add-forum", false, "capture the course discussions into the archive")

	cmd.Flags().StringVar(&conf.OutputDir, "output", constants.DefaultOutputDir, "directory to write the ZIM file in")
	cmd.Flags().StringVar(&conf.TmpDir, "tmp-dir", "", "directory to build the archive in, system temp dir when unset")
	cmd.Flags().StringVar(&conf.ZimFile, "zim-file", "", "ZIM file name, {period} is replaced with the current year and month")
	cmd.Flags().BoolVar(&conf.NoFullTextIndex, "no-fulltext-index", false, "do not index the content for full text search")
	cmd.Flags().BoolVar(&conf.NoZim, "no-zim", false, "build the site folder without packaging it into a ZIM")
	cmd.Flags().BoolVar(&conf.KeepBuildDir, "keep", false, "keep the build directory after packaging")

	cmd.Flags().StringVar(&conf.InstanceCatalog, "instance-catalog", "", "TOML file with extra Open edX instance definitions")
	cmd.Flags().StringVar(&conf.OptimizationCache, "optimization-cache", "", "S3 URL with credentials to the optimization cache")
	cmd.Flags().BoolVar(&conf.UseAnyOptimizedVersion, "use-any-optimized-version", false, "use cached assets optimized with any optimizer version")

	if err := cmd.MarkFlagFilename("instance-catalog"); err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark instance-catalog flag as filename: %v", err))
	}
	if err := cmd.MarkFlagDirname("output"); err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark output flag as dirname: %v", err))
	}
}

func (a *App) setVerbosity() {
	if a.config.Debug {
		cli.SetSlog(2, a.config.JSONLogs)
		return
	}
	cli.SetSlog(a.config.Verbosity, a.config.JSONLogs)
}

// Run executes the command and associated process, returning an error if any.
func (a *App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit stops the running scrape.
func (a *App) Quit() {
	a.WaitReady()
	if a.cancel != nil {
		a.cancel()
	}
}

// WaitReady waits for the scrape to have started.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run() (err error) {
	l := slog.Default()

	if err := a.config.Scraper.Sanitize(l); err != nil {
		close(a.ready)
		return err
	}

	s, err := scraper.New(l, a.config.Scraper)
	if err != nil {
		close(a.ready)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	defer cancel()
	close(a.ready)

	return s.Run(ctx)
}
