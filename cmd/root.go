package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bavix/presence/internal/config"
	"github.com/bavix/presence/internal/logging"
	verpkg "github.com/bavix/presence/internal/version"
)

var (
	cfgFile   string //nolint:gochecknoglobals // cobra command flag
	logLevel  string //nolint:gochecknoglobals // cobra command flag
	logFormat string //nolint:gochecknoglobals // cobra command flag
)

type cfgKey struct{}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "presence",
		Short:         "Online devices overview for OpenWrt routers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath
			}

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			level, format := cfg.Log.Level, cfg.Log.Format
			if cmd.Flags().Changed("log-level") {
				level = logLevel
			}

			if cmd.Flags().Changed("log-format") {
				format = logFormat
			}

			base := logging.Base(cfg.AppName, level, format)
			ctx := context.WithValue(base.WithContext(cmd.Context()), cfgKey{}, cfg)
			cmd.SetContext(ctx)

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to config file (default: "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format: json, console")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSnapshotCmd())
	rootCmd.AddCommand(newLabelCmd())
	rootCmd.AddCommand(newIconCmd())
	rootCmd.AddCommand(newCheckCmd())

	rootCmd.Version = verpkg.Get().String()
	rootCmd.SetVersionTemplate("presence " + verpkg.Get().String() + "\n")

	return rootCmd
}

// configFrom returns the configuration loaded by the root command.
func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(cfgKey{}).(*config.Config); ok {
		return cfg
	}

	return config.Default()
}

func ExecuteContext(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
