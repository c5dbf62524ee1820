package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/bavix/presence/internal/annotations"
	"github.com/bavix/presence/internal/config"
	"github.com/bavix/presence/internal/dhcp"
	"github.com/bavix/presence/internal/feeds"
	"github.com/bavix/presence/internal/httpapi"
	"github.com/bavix/presence/internal/icons"
	"github.com/bavix/presence/internal/presence"
)

// components is everything a command may need, built from one config.
type components struct {
	cfg          *config.Config
	store        *annotations.Store
	icons        *icons.Catalog
	neighbors    *feeds.IPNeighbors
	disconnector httpapi.Disconnector
	reconciler   *presence.Reconciler
}

func buildComponents(ctx context.Context, cfg *config.Config) *components {
	log := zerolog.Ctx(ctx)

	runner := feeds.NewExecRunner(cfg.Sources.Timeout)
	ubus := feeds.NewUbus(runner)
	radios := feeds.NewUbusWireless(ubus)
	neighbors := feeds.NewIPNeighbors(runner, cfg.Sources.Bridge)
	durations := feeds.UCIDurations{Path: cfg.Sources.UCIPath, Network: cfg.Sources.Network}
	store := annotations.New(cfg.Annotations.Path)

	src := presence.Sources{
		Wireless:    radios,
		Neighbors:   neighbors,
		Annotations: store,
	}

	switch cfg.Sources.Mode {
	case config.ModeLocal:
		leaseFile := dhcp.NewLeaseFile(cfg.Sources.LeasesPath)
		src.Hints = feeds.NewLocalHints(leaseFile, runner, cfg.Sources.Bridge, feeds.NewPTRResolver(cfg.Sources.DNSServer))
		src.Leases = feeds.NewFileLeases(leaseFile, durations)
	default:
		src.Hints = feeds.NewUbusHints(ubus)
		src.Leases = feeds.NewUbusLeases(ubus, durations)
	}

	var disconnector httpapi.Disconnector = feeds.NewHostapdDisconnector(ubus, radios)
	if _, err := os.Stat(feeds.IwprivPath); err == nil {
		disconnector = feeds.NewIwprivDisconnector(runner, feeds.DefaultIwprivDev)
	}

	log.Debug().
		Str("mode", cfg.Sources.Mode).
		Str("bridge", cfg.Sources.Bridge).
		Str("annotations", cfg.Annotations.Path).
		Msg("sources configured")

	return &components{
		cfg:          cfg,
		store:        store,
		icons:        icons.New(cfg.Icons.Dir, cfg.Icons.Prefix),
		neighbors:    neighbors,
		disconnector: disconnector,
		reconciler:   presence.NewReconciler(src, presence.WithFeedTimeout(cfg.Sources.Timeout)),
	}
}

// watchedFiles are the on-disk inputs whose changes should refresh dashboards.
func (c *components) watchedFiles() []string {
	files := []string{c.cfg.Annotations.Path, c.cfg.Sources.UCIPath}
	if c.cfg.Sources.Mode == config.ModeLocal {
		files = append(files, c.cfg.Sources.LeasesPath)
	}

	return files
}
