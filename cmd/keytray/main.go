package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bnema/keytray/internal/app"
	"github.com/bnema/keytray/internal/config"
	"github.com/bnema/keytray/internal/notify"
	"github.com/bnema/keytray/internal/render"
	"github.com/bnema/keytray/internal/x11"
)

type rootOptions struct {
	configPath string
	logLevel   string
	display    string
	show       bool
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("keytray failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "keytray",
		Short:         "Keyboard-driven system tray for X11",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log_level (trace, debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.display, "display", "", "X display to connect to (default $DISPLAY)")
	cmd.Flags().BoolVar(&opts.show, "show", false, "show the window on startup")

	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Str("path", path).Msg("loaded configuration")
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, opts *rootOptions) error {
	conn, err := x11.Connect(opts.display)
	if err != nil {
		return err
	}
	defer conn.Close()

	fonts := render.NewFonts(cfg.UI.Font.Path, render.DefaultFontDirs()...)
	appOpts := app.Options{
		Conn:       conn,
		Keyboard:   conn,
		Config:     cfg,
		NewContext: render.NewFactory(conn.XUtil(), fonts),
	}

	if cfg.Notifications.Enabled {
		notifier, err := notify.Connect(cfg.Notifications.AppName, cfg.Notifications.Icon)
		if err != nil {
			log.Warn().Err(err).Msg("notifications disabled")
		} else {
			defer notifier.Close()
			appOpts.Notifier = notifier
		}
	}

	a, err := app.New(appOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to release tray icons")
		}
	}()

	if opts.show {
		if _, err := a.Execute(config.Command{Kind: config.ShowWindow}); err != nil {
			return err
		}
	}

	log.Info().Uint32("window", uint32(a.Window().ID())).Msg("keytray started")
	return a.Run(ctx)
}
