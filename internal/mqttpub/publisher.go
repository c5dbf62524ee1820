package mqttpub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bavix/presence/internal/presence"
)

const (
	DefaultInterval = 30 * time.Second
	devicesSuffix   = "devices"
	publishTimeout  = 5 * time.Second
)

// SnapshotSource produces the current device list.
type SnapshotSource interface {
	Reconcile(ctx context.Context) presence.Snapshot
}

// Message is the retained payload on <topic>/devices.
type Message struct {
	TakenAt     time.Time               `json:"takenAt"`
	ShowAll     bool                    `json:"showAllUsers"`
	Wifi        int                     `json:"wifi"`
	Wired       int                     `json:"wired"`
	FailedFeeds []string                `json:"failedFeeds,omitempty"`
	Devices     []presence.DeviceRecord `json:"devices"`
}

// NewMessage flattens a snapshot for publishing.
func NewMessage(s presence.Snapshot) Message {
	wifi, wired := presence.Counts(s.Devices)

	devices := s.Devices
	if devices == nil {
		devices = []presence.DeviceRecord{}
	}

	return Message{
		TakenAt:     s.TakenAt,
		ShowAll:     s.ShowAll,
		Wifi:        wifi,
		Wired:       wired,
		FailedFeeds: s.FailedFeeds,
		Devices:     devices,
	}
}

// Publisher periodically publishes snapshots.
type Publisher struct {
	transport Transport
	source    SnapshotSource
	topic     string
	interval  time.Duration
	kick      chan struct{}
}

// NewPublisher publishes to <topic>/devices every interval.
func NewPublisher(transport Transport, source SnapshotSource, topic string, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Publisher{
		transport: transport,
		source:    source,
		topic:     DevicesTopic(topic),
		interval:  interval,
		kick:      make(chan struct{}, 1),
	}
}

// DevicesTopic joins the base topic with the devices suffix.
func DevicesTopic(base string) string {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return devicesSuffix
	}

	return base + "/" + devicesSuffix
}

// Topic returns the topic snapshots go to.
func (p *Publisher) Topic() string { return p.topic }

// Notify requests an out-of-schedule publish. Extra requests while one is
// pending are dropped.
func (p *Publisher) Notify() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run publishes once immediately, then on every tick or Notify, until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("topic", p.topic).Dur("interval", p.interval).Msg("mqtt publisher started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.PublishOnce(ctx); err != nil {
			logger.Warn().Err(err).Str("topic", p.topic).Msg("snapshot publish failed")
		}

		select {
		case <-ctx.Done():
			p.transport.Close()
			logger.Info().Msg("mqtt publisher stopped")

			return
		case <-ticker.C:
		case <-p.kick:
		}
	}
}

// PublishOnce reconciles and publishes a single retained snapshot.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	payload, err := json.Marshal(NewMessage(p.source.Reconcile(ctx)))
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.transport.Publish(ctx, p.topic, true, payload)
}
