package presence

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/bavix/presence/internal/metrics"
)

const passKey = "pass"

// Coalescer shares one in-flight pass between concurrent refreshes.
type Coalescer struct {
	r  *Reconciler
	sf singleflight.Group
}

// NewCoalescer wraps r.
func NewCoalescer(r *Reconciler) *Coalescer {
	return &Coalescer{r: r}
}

// Reconcile joins a pass already running or starts a new one. The pass runs
// detached from any single caller's cancellation.
func (c *Coalescer) Reconcile(ctx context.Context) Snapshot {
	ch := c.sf.DoChan(passKey, func() (any, error) {
		return c.r.Reconcile(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.RecordCoalesced()
		}

		snap, _ := res.Val.(Snapshot)

		return snap
	case <-ctx.Done():
		return Snapshot{}
	}
}
