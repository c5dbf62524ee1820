package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bavix/presence/internal/annotations"
	customerrors "github.com/bavix/presence/internal/errors"
	"github.com/bavix/presence/internal/leasetime"
	"github.com/bavix/presence/internal/metrics"
	"github.com/bavix/presence/internal/wireless"
)

// Feed names used in logs and metrics.
const (
	FeedWireless  = "wireless"
	FeedNeighbors = "neighbors"
	FeedHints     = "hints"
	FeedLeases    = "leases"
)

// Sources wires the feeds into a Reconciler. Any nil feed is treated as empty.
type Sources struct {
	Wireless    WirelessSource
	Neighbors   NeighborSource
	Hints       HintSource
	Leases      LeaseSource
	Annotations AnnotationSource
}

// Snapshot is the outcome of one pass.
type Snapshot struct {
	Devices     []DeviceRecord       `json:"devices"`
	Annotations annotations.Snapshot `json:"-"`
	ShowAll     bool                 `json:"showAllUsers"`
	// FailedFeeds lists feeds that fell back to empty during this pass.
	FailedFeeds []string  `json:"failedFeeds,omitempty"`
	TakenAt     time.Time `json:"takenAt"`
}

// Reconciler gathers every feed concurrently and merges them.
type Reconciler struct {
	src         Sources
	feedTimeout time.Duration
	now         func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithFeedTimeout bounds each feed fetch. Zero leaves fetches to their own deadlines.
func WithFeedTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.feedTimeout = d }
}

// WithClock overrides time.Now for TakenAt.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a reconciler over src.
func NewReconciler(src Sources, opts ...Option) *Reconciler {
	r := &Reconciler{src: src, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

type gathered struct {
	networks  []wireless.Network
	neighbors []string
	hints     HostHints
	table     leasetime.Table
	notes     annotations.Snapshot
	failed    []string
}

// Reconcile runs one pass. It never fails: an unavailable feed contributes nothing.
func (r *Reconciler) Reconcile(ctx context.Context) Snapshot {
	start := time.Now()
	log := zerolog.Ctx(ctx)

	g := r.gather(ctx)

	online, warnings := OnlineDurations(g.table)
	for _, w := range warnings {
		log.Debug().Err(w).Msg("lease duration ignored")
	}

	devices := Reconcile(Inputs{
		Networks:     g.networks,
		Neighbors:    g.neighbors,
		Hints:        g.hints,
		Online:       online,
		Annotations:  g.notes,
		IncludeWired: g.notes.ShowAll(),
	})

	wifi, wired := Counts(devices)
	metrics.ObservePass(time.Since(start), wifi, wired)

	log.Debug().
		Int("wifi", wifi).
		Int("wired", wired).
		Strs("failed_feeds", g.failed).
		Dur("took", time.Since(start)).
		Msg("reconciliation pass complete")

	return Snapshot{
		Devices:     devices,
		Annotations: g.notes,
		ShowAll:     g.notes.ShowAll(),
		FailedFeeds: g.failed,
		TakenAt:     r.now(),
	}
}

func (r *Reconciler) gather(ctx context.Context) gathered {
	var (
		out    gathered
		failed = make([]bool, 4) //nolint:mnd // one slot per feed
		names  = []string{FeedWireless, FeedNeighbors, FeedHints, FeedLeases}
	)

	out.notes = annotations.EmptySnapshot()

	// Branches never return an error: a broken feed degrades to empty on its own.
	var eg errgroup.Group

	eg.Go(func() error {
		var err error

		out.networks, err = fetch(ctx, r, FeedWireless, r.src.Wireless != nil, func(c context.Context) ([]wireless.Network, error) {
			return r.src.Wireless.WirelessNetworks(c)
		})
		failed[0] = err != nil

		return nil
	})

	eg.Go(func() error {
		var err error

		out.neighbors, err = fetch(ctx, r, FeedNeighbors, r.src.Neighbors != nil, func(c context.Context) ([]string, error) {
			return r.src.Neighbors.Neighbors(c)
		})
		failed[1] = err != nil

		return nil
	})

	eg.Go(func() error {
		var err error

		out.hints, err = fetch(ctx, r, FeedHints, r.src.Hints != nil, func(c context.Context) (HostHints, error) {
			return r.src.Hints.HostHints(c)
		})
		failed[2] = err != nil

		return nil
	})

	eg.Go(func() error {
		var err error

		out.table, err = fetch(ctx, r, FeedLeases, r.src.Leases != nil, func(c context.Context) (leasetime.Table, error) {
			return r.src.Leases.LeaseTable(c)
		})
		failed[3] = err != nil

		return nil
	})

	if r.src.Annotations != nil {
		eg.Go(func() error {
			out.notes = r.src.Annotations.Load(ctx)

			return nil
		})
	}

	_ = eg.Wait()

	for i, f := range failed {
		if f {
			out.failed = append(out.failed, names[i])
		}
	}

	return out
}

// fetch runs one feed with the configured timeout, converting errors and
// panics into the zero value.
func fetch[T any](
	ctx context.Context,
	r *Reconciler,
	name string,
	configured bool,
	fn func(context.Context) (T, error),
) (result T, err error) {
	var zero T

	if !configured {
		return zero, nil
	}

	log := zerolog.Ctx(ctx)

	defer func() {
		if p := recover(); p != nil {
			err = customerrors.ErrFeedUnavailableWithName(name, fmt.Errorf("panic: %v", p)) //nolint:err113
			result = zero

			log.Error().Err(err).Str("feed", name).Msg("feed panicked, using empty result")
			metrics.IncFeedFailure(name)
		}
	}()

	fctx := ctx

	if r.feedTimeout > 0 {
		var cancel context.CancelFunc

		fctx, cancel = context.WithTimeout(ctx, r.feedTimeout)
		defer cancel()
	}

	v, ferr := fn(fctx)
	if ferr != nil {
		err = customerrors.ErrFeedUnavailableWithName(name, ferr)

		log.Warn().Err(err).Str("feed", name).Msg("feed unavailable, using empty result")
		metrics.IncFeedFailure(name)

		return zero, err
	}

	return v, nil
}
