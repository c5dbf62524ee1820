package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bavix/presence/internal/httpapi"
	"github.com/bavix/presence/internal/metrics"
	"github.com/bavix/presence/internal/mqttpub"
	"github.com/bavix/presence/internal/presence"
	"github.com/bavix/presence/internal/version"
	"github.com/bavix/presence/internal/watch"
)

func newRunCmd() *cobra.Command { //nolint:cyclop,funlen
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve the online devices API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := zerolog.Ctx(ctx)
			cfg := configFrom(ctx)

			log.Info().
				Str("version", version.Get().Version).
				Str("build_time", version.Get().BuildTime).
				Str("config", cfg.Path).
				Msg("presence starting")

			metrics.RegisterCollectors()
			metrics.SetService(cfg.AppName)
			metrics.BindService()
			metrics.StartRPSTicker()

			c := buildComponents(ctx, cfg)
			devices := presence.NewCoalescer(c.reconciler)
			hub := httpapi.NewHub()

			var publisher *mqttpub.Publisher

			if cfg.MQTT.Enabled {
				client, err := mqttpub.Dial(ctx, mqttpub.ClientConfig{
					Broker:      cfg.MQTT.Broker,
					ClientID:    cfg.MQTT.ClientID,
					Username:    cfg.MQTT.Username,
					Password:    cfg.MQTT.Password,
					StatusTopic: cfg.MQTT.Topic + "/status",
				})
				if err != nil {
					return err
				}

				publisher = mqttpub.NewPublisher(client, devices, cfg.MQTT.Topic, cfg.MQTT.Interval)
				go publisher.Run(ctx)
			}

			notify := func(reason string) {
				hub.Notify(reason)

				if publisher != nil {
					publisher.Notify()
				}
			}

			if !cfg.Watch.Disabled {
				w, err := watch.New(cfg.Watch.Debounce)
				if err != nil {
					return err
				}

				w.OnChange(func() {
					c.icons.Invalidate()
					notify("files")
				})

				if err := w.Watch(ctx, c.watchedFiles()); err != nil {
					return err
				}
			}

			if !cfg.HTTP.Disabled {
				api := httpapi.NewAPIHandler(httpapi.Deps{
					Devices:        devices,
					Annotations:    c.store,
					Icons:          c.icons,
					Flusher:        c.neighbors,
					Disconnector:   c.disconnector,
					MaxRequestSize: cfg.HTTP.MaxRequestSize,
					Notify:         notify,
				})

				if err := httpapi.NewServer(cfg.HTTP, api, hub).Start(ctx); err != nil {
					return err
				}
			}

			metrics.SetReady(true)
			defer metrics.SetReady(false)

			<-ctx.Done()

			log.Info().Msg("presence stopped")

			return nil
		},
	}

	return cmd
}
