// Package mqttpub mirrors the online device list to an MQTT broker.
package mqttpub

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	customerrors "github.com/bavix/presence/internal/errors"
)

const (
	qos            = 1
	disconnectWait = 250
	keepAlive      = 60 * time.Second
	pingTimeout    = 10 * time.Second
	connectTimeout = 10 * time.Second

	statusOnline  = "online"
	statusOffline = "offline"
)

// Transport publishes payloads to a broker.
type Transport interface {
	Publish(ctx context.Context, topic string, retained bool, payload []byte) error
	Close()
}

// ClientConfig holds MQTT client configuration.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// StatusTopic receives a retained "online" on connect and "offline" as
	// the broker-side last will. Empty disables it.
	StatusTopic string
}

// Client is a Transport backed by paho.
type Client struct {
	client mqtt.Client
}

// Dial connects to the broker. Reconnects are handled by paho afterwards.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	logger := zerolog.Ctx(ctx)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(pingTimeout)
	opts.SetConnectTimeout(connectTimeout)

	if cfg.StatusTopic != "" {
		opts.SetWill(cfg.StatusTopic, statusOffline, qos, true)
	}

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("mqtt connected")

		if cfg.StatusTopic != "" {
			c.Publish(cfg.StatusTopic, qos, true, statusOnline)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)

	if err := await(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return &Client{client: client}, nil
}

func (c *Client) Publish(ctx context.Context, topic string, retained bool, payload []byte) error {
	if !c.client.IsConnected() {
		return customerrors.ErrPublisherNotConnected
	}

	return await(ctx, c.client.Publish(topic, qos, retained, payload))
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(disconnectWait)
}

func await(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
