package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bavix/presence/internal/annotations"
	"github.com/bavix/presence/internal/icons"
	"github.com/bavix/presence/internal/macaddr"
)

func newIconCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "icon",
		Short: "Manage custom device icons",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List selectable icons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			catalog := icons.New(cfg.Icons.Dir, cfg.Icons.Prefix)

			out := cmd.OutOrStdout()
			for _, p := range catalog.List(ctx) {
				fmt.Fprintln(out, p)
			}

			fmt.Fprintf(out, "%s (default)\n", catalog.Default())

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <mac> <icon-path>",
		Short: "Set a custom icon for a device",
		Args:  cobra.ExactArgs(labelSetArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)

			mac, err := macaddr.Normalize(args[0])
			if err != nil {
				return err
			}

			if err := icons.New(cfg.Icons.Dir, cfg.Icons.Prefix).Validate(ctx, args[1]); err != nil {
				return err
			}

			if err := annotations.New(cfg.Annotations.Path).SetIcon(ctx, mac, args[1]); err != nil {
				return err
			}

			zerolog.Ctx(ctx).Info().Str("mac", mac).Str("icon", args[1]).Msg("icon set")

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <mac>",
		Short: "Restore the default icon of a device",
		Args:  cobra.ExactArgs(labelClearArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mac, err := macaddr.Normalize(args[0])
			if err != nil {
				return err
			}

			if err := annotations.New(configFrom(ctx).Annotations.Path).ClearIcon(ctx, mac); err != nil {
				return err
			}

			zerolog.Ctx(ctx).Info().Str("mac", mac).Msg("icon cleared")

			return nil
		},
	})

	return cmd
}
