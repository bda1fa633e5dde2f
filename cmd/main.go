package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xhad/inkwell/internal/models"
	"github.com/xhad/inkwell/internal/types"
	cfgPkg "github.com/xhad/inkwell/pkg/config"
	"github.com/xhad/inkwell/pkg/logging"
	"github.com/xhad/inkwell/pkg/store"
	"github.com/xhad/inkwell/pkg/uploader"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "inkwell",
		Short:        "Relocate editor images and persist entries",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	rootCmd.AddCommand(saveCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(tagCmd())
	rootCmd.AddCommand(serveCmd())

	return rootCmd
}

// app is what every subcommand needs once the config is loaded.
type app struct {
	config *cfgPkg.Config
	logger *logrus.Logger
}

// loadApp reads the config. Commands that touch both the image host and the
// record store ask for full validation; the rest rely on the constructors.
func loadApp(validate bool) (*app, error) {
	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); validate && len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return nil, fmt.Errorf("invalid configuration (%d problem(s))", len(errs))
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	return &app{config: cfg, logger: logger}, nil
}

func (a *app) store(ctx context.Context) (types.RecordStore, error) {
	s, err := store.New(ctx, a.config, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize record store: %w", err)
	}
	return s, nil
}

func (a *app) uploader() (types.Uploader, error) {
	up, err := uploader.NewWithConfig(uploader.UploaderConfig{
		Endpoint:     a.config.Uploader.Endpoint,
		CloudName:    a.config.Uploader.CloudName,
		UploadPreset: a.config.Uploader.UploadPreset,
		Folder:       a.config.Uploader.Folder,
		RateLimit:    a.config.Uploader.RateLimit,
		Timeout:      a.config.Uploader.Timeout,
		Logger:       a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize uploader: %w", err)
	}
	return up, nil
}

func printNotification(w io.Writer, n models.Notification) {
	switch n.Level {
	case models.LevelError:
		color.New(color.FgRed).Fprintf(w, "✗ %s\n", n.Message)
	case models.LevelWarn:
		color.New(color.FgYellow).Fprintf(w, "! %s\n", n.Message)
	default:
		color.New(color.FgGreen).Fprintf(w, "✓ %s\n", n.Message)
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
