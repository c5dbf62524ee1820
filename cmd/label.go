package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bavix/presence/internal/annotations"
	"github.com/bavix/presence/internal/macaddr"
)

const (
	labelSetArgs   = 2
	labelClearArgs = 1
)

func newLabelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Manage custom device labels",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <mac> <label>",
		Short: "Set a custom label for a device",
		Args:  cobra.ExactArgs(labelSetArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mac, err := macaddr.Normalize(args[0])
			if err != nil {
				return err
			}

			store := annotations.New(configFrom(ctx).Annotations.Path)
			if err := store.SetLabel(ctx, mac, args[1]); err != nil {
				return err
			}

			zerolog.Ctx(ctx).Info().Str("mac", mac).Str("label", args[1]).Msg("label set")

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <mac>",
		Short: "Remove the custom label of a device",
		Args:  cobra.ExactArgs(labelClearArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mac, err := macaddr.Normalize(args[0])
			if err != nil {
				return err
			}

			store := annotations.New(configFrom(ctx).Annotations.Path)
			if err := store.ClearLabel(ctx, mac); err != nil {
				return err
			}

			zerolog.Ctx(ctx).Info().Str("mac", mac).Msg("label cleared")

			return nil
		},
	})

	return cmd
}
