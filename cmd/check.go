package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bavix/presence/internal/config"
	customerrors "github.com/bavix/presence/internal/errors"
)

const minPartsForInterface = 2

var errInterfaceNotFound = errors.New("interface not found")

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check system status and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := zerolog.Ctx(ctx)
			cfg := configFrom(ctx)

			log.Info().Str("config", cfg.Path).Str("mode", cfg.Sources.Mode).Msg("checking system status")

			if err := checkSystemTools(ctx, cfg); err != nil {
				return err
			}

			if err := checkBridge(ctx, cfg.Sources.Bridge); err != nil {
				log.Err(err).Msg("network interfaces check failed")

				return err
			}

			checkPaths(ctx, cfg)

			snap := buildComponents(ctx, cfg).reconciler.Reconcile(ctx)
			if len(snap.FailedFeeds) > 0 {
				log.Warn().Strs("feeds", snap.FailedFeeds).Msg("some feeds are unavailable")
			}

			log.Info().Int("devices", len(snap.Devices)).Msg("system check completed successfully")

			return nil
		},
	}

	return cmd
}

func checkSystemTools(ctx context.Context, cfg *config.Config) error {
	log := zerolog.Ctx(ctx)

	tools := []string{"ip"}
	if cfg.Sources.Mode == config.ModeUbus {
		tools = append(tools, "ubus")
	}

	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			log.Err(err).Str("tool", tool).Msg("required tool not found")

			return customerrors.ErrRequiredToolNotFoundWithTool(tool)
		}

		log.Debug().Str("tool", tool).Msg("tool found")
	}

	return nil
}

func checkBridge(ctx context.Context, bridge string) error {
	log := zerolog.Ctx(ctx)

	out, err := exec.CommandContext(ctx, "ip", "link", "show").CombinedOutput()
	if err != nil {
		log.Err(err).Msg("failed to list network interfaces")

		return err
	}

	for line := range strings.SplitSeq(string(out), "\n") {
		parts := strings.Fields(line)
		if len(parts) < minPartsForInterface {
			continue
		}

		name, _, _ := strings.Cut(strings.TrimSuffix(parts[1], ":"), "@")
		if name == bridge {
			log.Info().Str("iface", bridge).Msg("interface exists")

			return nil
		}
	}

	return fmt.Errorf("%w: %s", errInterfaceNotFound, bridge)
}

func checkPaths(ctx context.Context, cfg *config.Config) {
	log := zerolog.Ctx(ctx)

	if _, err := os.Stat(filepath.Dir(cfg.Annotations.Path)); err != nil {
		log.Warn().Err(err).Str("path", cfg.Annotations.Path).Msg("annotations directory missing, edits will fail")
	} else {
		log.Info().Str("path", cfg.Annotations.Path).Msg("annotations directory found")
	}

	if cfg.Sources.Mode == config.ModeLocal {
		if _, err := os.Stat(cfg.Sources.LeasesPath); err != nil {
			log.Warn().Err(err).Str("path", cfg.Sources.LeasesPath).Msg("lease file not readable")
		}
	}

	if _, err := os.Stat(cfg.Sources.UCIPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.Sources.UCIPath).Msg("dhcp config not readable, lease durations unknown")
	}

	if _, err := os.Stat(cfg.Icons.Dir); err != nil {
		log.Warn().Err(err).Str("path", cfg.Icons.Dir).Msg("icon directory missing")
	}
}
