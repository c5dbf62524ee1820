//nolint:gochecknoglobals // prometheus metrics and global state
package metrics

import (
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const defaultService = "presence"

var (
	ReconcileTotal = promauto.NewCounterVec(
		prom.CounterOpts{
			Name: "presence_reconcile_passes_total",
			Help: "Reconciliation passes executed (Counter).",
		},
		[]string{"service"},
	)
	ReconcileDuration = promauto.NewHistogramVec(prom.HistogramOpts{
		Name:    "presence_reconcile_duration_seconds",
		Help:    "Wall time of a reconciliation pass including feed fetches (Histogram).",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"service"})
	FeedFailuresTotal = promauto.NewCounterVec(
		prom.CounterOpts{
			Name: "presence_feed_failures_total",
			Help: "Feed fetches that failed and were replaced by an empty default (Counter). Labels: service, feed.",
		},
		[]string{"service", "feed"},
	)
	DevicesGauge = promauto.NewGaugeVec(
		prom.GaugeOpts{
			Name: "presence_devices",
			Help: "Devices in the last reconciled list by connection type (Gauge).",
		},
		[]string{"service", "connection"},
	)
	AnnotationWritesTotal = promauto.NewCounterVec(
		prom.CounterOpts{
			Name: "presence_annotation_writes_total",
			Help: "Annotation store writes by operation and outcome (Counter). outcome=success|error.",
		},
		[]string{"service", "op", "outcome"},
	)
	RefreshCoalescedTotal = promauto.NewCounterVec(
		prom.CounterOpts{
			Name: "presence_refresh_coalesced_total",
			Help: "Refresh requests served by a pass already in flight (Counter).",
		},
		[]string{"service"},
	)
	IconCacheTotal = promauto.NewCounterVec(
		prom.CounterOpts{
			Name: "presence_icon_catalog_lookups_total",
			Help: "Icon catalog lookups by result (Counter). result=hit|miss.",
		},
		[]string{"service", "result"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prom.CounterOpts{
			Name: "http_server_requests_total",
			Help: "HTTP requests handled (Counter). Labels: service, method, route, status.",
		},
		[]string{"service", "method", "route", "status"},
	)
	ReadyGauge = promauto.NewGaugeVec(
		prom.GaugeOpts{
			Name: "service_ready",
			Help: "Service readiness: 1=ready, 0=not ready (Gauge).",
		},
		[]string{"service"},
	)
)

var readyFlag int32 //nolint:gochecknoglobals // service ready flag

var serviceName atomic.Value //nolint:gochecknoglobals // service name // string

// SetService sets the service label value (default: presence).
func SetService(name string) { serviceName.Store(name) }

func Service() string {
	if v := serviceName.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}

	return defaultService
}

// RegisterCollectors registers default Go and process collectors. Repeated
// calls are no-ops.
func RegisterCollectors() {
	registerDefault(collectors.NewGoCollector())
	registerDefault(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

func registerDefault(c prom.Collector) {
	if err := prom.Register(c); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			return
		}
	}
}

var M struct { //nolint:gochecknoglobals // metrics cache
	service           string
	Reconcile         prom.Counter
	ReconcileDuration prom.Observer
	Coalesced         prom.Counter
	IconHits          prom.Counter
	IconMisses        prom.Counter
}

// BindService caches label-bound children for the hot paths.
func BindService() {
	s := Service()
	M.service = s
	M.Reconcile = ReconcileTotal.WithLabelValues(s)
	M.ReconcileDuration = ReconcileDuration.WithLabelValues(s)
	M.Coalesced = RefreshCoalescedTotal.WithLabelValues(s)
	M.IconHits = IconCacheTotal.WithLabelValues(s, "hit")
	M.IconMisses = IconCacheTotal.WithLabelValues(s, "miss")
}

func boundService() string { return M.service }

// ObservePass records one finished reconciliation pass.
func ObservePass(d time.Duration, wifi, wired int) {
	s := Service()

	if M.Reconcile != nil && s == boundService() {
		M.Reconcile.Inc()
		M.ReconcileDuration.Observe(d.Seconds())
	} else {
		ReconcileTotal.WithLabelValues(s).Inc()
		ReconcileDuration.WithLabelValues(s).Observe(d.Seconds())
	}

	DevicesGauge.WithLabelValues(s, "wifi").Set(float64(wifi))
	DevicesGauge.WithLabelValues(s, "wired").Set(float64(wired))

	recordPass()
}

// IncFeedFailure counts a feed replaced by its empty default.
func IncFeedFailure(feed string) {
	if feed == "" {
		feed = "unknown"
	}

	FeedFailuresTotal.WithLabelValues(Service(), feed).Inc()
}

// RecordAnnotationWrite counts an annotation store mutation.
func RecordAnnotationWrite(op string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}

	AnnotationWritesTotal.WithLabelValues(Service(), op, outcome).Inc()
}

// RecordCoalesced counts a refresh that joined a pass already in flight.
func RecordCoalesced() {
	if M.Coalesced != nil && Service() == boundService() {
		M.Coalesced.Inc()
	} else {
		RefreshCoalescedTotal.WithLabelValues(Service()).Inc()
	}

	recordShared()
}

// RecordIconLookup counts icon catalog cache hits and misses.
func RecordIconLookup(hit bool) {
	if M.IconHits != nil && Service() == boundService() {
		if hit {
			M.IconHits.Inc()
		} else {
			M.IconMisses.Inc()
		}

		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	IconCacheTotal.WithLabelValues(Service(), result).Inc()
}

// Simple in-memory per-second ring of refresh traffic (per process).
const rpsWindow = 60

var (
	rpsPasses  [rpsWindow]uint64
	rpsShared  [rpsWindow]uint64
	rpsIndex   int64 // atomic
	rpsTickSet int32
)

// StartRPSTicker starts a background ticker that advances the ring each second.
func StartRPSTicker() {
	if !atomic.CompareAndSwapInt32(&rpsTickSet, 0, 1) {
		return
	}

	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()

		for range t.C {
			i := int(atomic.AddInt64(&rpsIndex, 1) % rpsWindow)
			atomic.StoreUint64(&rpsPasses[i], 0)
			atomic.StoreUint64(&rpsShared[i], 0)
		}
	}()
}

func recordPass() {
	i := int(atomic.LoadInt64(&rpsIndex) % rpsWindow)
	atomic.AddUint64(&rpsPasses[i], 1)
}

func recordShared() {
	i := int(atomic.LoadInt64(&rpsIndex) % rpsWindow)
	atomic.AddUint64(&rpsShared[i], 1)
}

func snapshotRPS() (uint64, uint64) {
	var passes, shared uint64
	for i := range rpsWindow {
		passes += atomic.LoadUint64(&rpsPasses[i])
		shared += atomic.LoadUint64(&rpsShared[i])
	}

	return passes, shared
}

// RecordHTTP increments HTTP requests with OTEL-style labels.
func RecordHTTP(method, route string, status int) {
	HTTPRequestsTotal.WithLabelValues(Service(), method, route, strconv.Itoa(status)).Inc()
}

// SetReady sets readiness and updates the gauge.
func SetReady(v bool) {
	if v {
		atomic.StoreInt32(&readyFlag, 1)
		ReadyGauge.WithLabelValues(Service()).Set(1)
	} else {
		atomic.StoreInt32(&readyFlag, 0)
		ReadyGauge.WithLabelValues(Service()).Set(0)
	}
}

// IsReady returns current readiness flag.
func IsReady() bool { return atomic.LoadInt32(&readyFlag) == 1 }

// Stats is a lightweight analytics snapshot for the dashboard.
type Stats struct {
	ReconcilePassesTotal  float64            `json:"reconcile_passes_total"`
	ReconcileAvgSeconds   float64            `json:"reconcile_avg_seconds"`
	FeedFailuresTotal     map[string]float64 `json:"feed_failures_total"`
	DevicesWifi           float64            `json:"devices_wifi"`
	DevicesWired          float64            `json:"devices_wired"`
	AnnotationWritesTotal float64            `json:"annotation_writes_total"`
	AnnotationWriteErrors float64            `json:"annotation_write_errors"`
	ServiceReady          float64            `json:"service_ready"`
	PassRPS               float64            `json:"pass_rps"`
	RefreshRPS            float64            `json:"refresh_rps"`
	CoalesceRate          float64            `json:"coalesce_rate"`
}

// GatherStats collects basic stats from the default registry for a given service label.
//
//nolint:gocyclo // metric families are matched by name
func GatherStats(service string) (Stats, error) { //nolint:gocognit,cyclop,funlen
	mfs, err := prom.DefaultGatherer.Gather()
	if err != nil {
		return Stats{}, err
	}

	var (
		passSum, passCount float64
		s                  = Stats{FeedFailuresTotal: map[string]float64{}}
	)

	withService := func(m *dto.Metric) bool {
		return labelValue(m, "service") == service
	}

	for _, mf := range mfs {
		switch mf.GetName() {
		case "presence_reconcile_passes_total":
			for _, m := range mf.GetMetric() {
				if withService(m) {
					s.ReconcilePassesTotal += m.GetCounter().GetValue()
				}
			}
		case "presence_reconcile_duration_seconds":
			for _, m := range mf.GetMetric() {
				if withService(m) {
					h := m.GetHistogram()
					passSum += h.GetSampleSum()
					passCount += float64(h.GetSampleCount())
				}
			}
		case "presence_feed_failures_total":
			for _, m := range mf.GetMetric() {
				if withService(m) {
					s.FeedFailuresTotal[labelValue(m, "feed")] += m.GetCounter().GetValue()
				}
			}
		case "presence_devices":
			for _, m := range mf.GetMetric() {
				if !withService(m) {
					continue
				}

				switch labelValue(m, "connection") {
				case "wifi":
					s.DevicesWifi = m.GetGauge().GetValue()
				case "wired":
					s.DevicesWired = m.GetGauge().GetValue()
				}
			}
		case "presence_annotation_writes_total":
			for _, m := range mf.GetMetric() {
				if withService(m) {
					v := m.GetCounter().GetValue()

					s.AnnotationWritesTotal += v
					if labelValue(m, "outcome") == "error" {
						s.AnnotationWriteErrors += v
					}
				}
			}
		case "service_ready":
			for _, m := range mf.GetMetric() {
				if withService(m) {
					s.ServiceReady = m.GetGauge().GetValue()
				}
			}
		}
	}

	if passCount > 0 {
		s.ReconcileAvgSeconds = passSum / passCount
	}

	passes, shared := snapshotRPS()
	s.PassRPS = float64(passes) / float64(rpsWindow)
	s.RefreshRPS = float64(passes+shared) / float64(rpsWindow)

	if passes+shared > 0 {
		s.CoalesceRate = float64(shared) / float64(passes+shared)
	}

	return s, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}

	return ""
}
