package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	yaml "github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	DefaultPath = "/etc/presence/config.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PRESENCE_"

	ModeUbus  = "ubus"
	ModeLocal = "local"

	defaultAppName          = "presence"
	defaultHTTPListen       = "127.0.0.1:47824"
	defaultHTTPReadTimeout  = 30 * time.Second
	defaultHTTPWriteTimeout = 30 * time.Second
	defaultHTTPIdleTimeout  = 120 * time.Second
	defaultMaxHeaderBytes   = 1024 * 1024 // 1MB
	defaultMaxRequestSize   = 64 * 1024
	defaultFeedTimeout      = 5 * time.Second
	defaultRateLimitRPS     = 5
	defaultRateLimitBurst   = 10
	defaultWatchDebounce    = 200 * time.Millisecond
	defaultMQTTInterval     = 30 * time.Second
	defaultMQTTTopic        = "presence"
	defaultMQTTClientID     = "presence"
)

var (
	errUnknownSourceMode        = errors.New("sources.mode must be ubus or local")
	errAddressMustBeHostPort    = errors.New("address must be host:port or :port")
	errTimeoutMustBeNonNegative = errors.New("timeouts must be non-negative")
	errRateLimitMustBeNonNeg    = errors.New("rate limit must be non-negative")
	errAnnotationsPathEmpty     = errors.New("annotations.path cannot be empty")
	errMQTTBrokerRequired       = errors.New("mqtt.broker is required when mqtt is enabled")
	errMQTTBrokerScheme         = errors.New("mqtt.broker scheme must be tcp, ssl, ws, wss or mqtt")
	errMQTTTopicInvalid         = errors.New("mqtt.topic cannot contain wildcards")
	errUnknownLogFormat         = errors.New("log.format must be json or console")
	errInvalidEnvOverride       = errors.New("invalid environment override")
	errMQTTIntervalNotPositive  = errors.New("mqtt.interval must be positive")
)

// LogConfig defines logging configuration.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// RateLimitConfig bounds mutating API calls per client.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps,omitempty"`
	Burst int     `yaml:"burst,omitempty"`
}

// HTTPConfig defines the dashboard API server settings.
type HTTPConfig struct {
	Disabled       bool            `yaml:"disabled,omitempty"`
	Listen         string          `yaml:"listen,omitempty"`
	ReadTimeout    time.Duration   `yaml:"read_timeout,omitempty"`
	WriteTimeout   time.Duration   `yaml:"write_timeout,omitempty"`
	IdleTimeout    time.Duration   `yaml:"idle_timeout,omitempty"`
	MaxHeaderBytes int             `yaml:"max_header_bytes,omitempty"`
	MaxRequestSize int64           `yaml:"max_request_size,omitempty"`
	CORSOrigins    []string        `yaml:"cors_origins,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// SourcesConfig selects where device data comes from.
type SourcesConfig struct {
	// Mode is ubus (luci-rpc and iwinfo over ubus) or local (lease file and PTR lookups).
	Mode       string        `yaml:"mode,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	Network    string        `yaml:"network,omitempty"`
	Bridge     string        `yaml:"bridge,omitempty"`
	LeasesPath string        `yaml:"leases_path,omitempty"`
	UCIPath    string        `yaml:"uci_path,omitempty"`
	DNSServer  string        `yaml:"dns_server,omitempty"`
}

// AnnotationsConfig locates the per-device label and icon document.
type AnnotationsConfig struct {
	Path string `yaml:"path,omitempty"`
}

// IconsConfig locates the icon catalog.
type IconsConfig struct {
	Dir    string `yaml:"dir,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// WatchConfig controls file watching of the annotation and lease files.
type WatchConfig struct {
	Disabled bool          `yaml:"disabled,omitempty"`
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// MQTTConfig controls snapshot publishing.
type MQTTConfig struct {
	Enabled  bool          `yaml:"enabled,omitempty"`
	Broker   string        `yaml:"broker,omitempty"`
	ClientID string        `yaml:"client_id,omitempty"`
	Username string        `yaml:"username,omitempty"`
	Password string        `yaml:"password,omitempty"`
	Topic    string        `yaml:"topic,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Config is the main application configuration.
type Config struct {
	AppName     string            `yaml:"app_name,omitempty"`
	Log         LogConfig         `yaml:"log,omitempty"`
	HTTP        HTTPConfig        `yaml:"http,omitempty"`
	Sources     SourcesConfig     `yaml:"sources,omitempty"`
	Annotations AnnotationsConfig `yaml:"annotations,omitempty"`
	Icons       IconsConfig       `yaml:"icons,omitempty"`
	Watch       WatchConfig       `yaml:"watch,omitempty"`
	MQTT        MQTTConfig        `yaml:"mqtt,omitempty"`
	Path        string            `yaml:"-"`
}

// Load reads the YAML file at path, applies PRESENCE_* overrides and
// defaults, then validates. A missing file yields defaults.
//
// Overrides come from the process environment first, then from a .env file
// next to the config file.
func Load(path string) (*Config, error) {
	var cfg Config

	b, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	cfg.Path = path

	dotenv, err := godotenv.Read(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if err := cfg.applyEnv(envLookup(dotenv)); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{Path: DefaultPath}
	cfg.applyDefaults()

	return cfg
}

func envLookup(dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}

		v, ok := dotenv[key]

		return v, ok
	}
}

//nolint:cyclop,funlen
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}

		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s: %w", errInvalidEnvOverride, EnvPrefix, key, err)
		}

		*dst = b

		return nil
	}

	duration := func(key string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}

		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s: %w", errInvalidEnvOverride, EnvPrefix, key, err)
		}

		*dst = d

		return nil
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("HTTP_LISTEN", &c.HTTP.Listen)
	str("SOURCES_MODE", &c.Sources.Mode)
	str("SOURCES_NETWORK", &c.Sources.Network)
	str("SOURCES_BRIDGE", &c.Sources.Bridge)
	str("SOURCES_DNS_SERVER", &c.Sources.DNSServer)
	str("ANNOTATIONS_PATH", &c.Annotations.Path)
	str("ICONS_DIR", &c.Icons.Dir)
	str("MQTT_BROKER", &c.MQTT.Broker)
	str("MQTT_CLIENT_ID", &c.MQTT.ClientID)
	str("MQTT_USERNAME", &c.MQTT.Username)
	str("MQTT_PASSWORD", &c.MQTT.Password)
	str("MQTT_TOPIC", &c.MQTT.Topic)

	if err := boolean("MQTT_ENABLED", &c.MQTT.Enabled); err != nil {
		return err
	}

	if err := duration("SOURCES_TIMEOUT", &c.Sources.Timeout); err != nil {
		return err
	}

	return duration("MQTT_INTERVAL", &c.MQTT.Interval)
}

//nolint:cyclop,funlen
func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = defaultAppName
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.HTTP.Listen == "" {
		c.HTTP.Listen = defaultHTTPListen
	}

	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = defaultHTTPReadTimeout
	}

	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = defaultHTTPWriteTimeout
	}

	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = defaultHTTPIdleTimeout
	}

	if c.HTTP.MaxHeaderBytes == 0 {
		c.HTTP.MaxHeaderBytes = defaultMaxHeaderBytes
	}

	if c.HTTP.MaxRequestSize == 0 {
		c.HTTP.MaxRequestSize = defaultMaxRequestSize
	}

	if c.HTTP.RateLimit.RPS == 0 {
		c.HTTP.RateLimit.RPS = defaultRateLimitRPS
	}

	if c.HTTP.RateLimit.Burst == 0 {
		c.HTTP.RateLimit.Burst = defaultRateLimitBurst
	}

	if c.Sources.Mode == "" {
		c.Sources.Mode = ModeUbus
	}

	if c.Sources.Timeout == 0 {
		c.Sources.Timeout = defaultFeedTimeout
	}

	if c.Sources.Network == "" {
		c.Sources.Network = "lan"
	}

	if c.Sources.Bridge == "" {
		c.Sources.Bridge = "br-lan"
	}

	if c.Sources.LeasesPath == "" {
		c.Sources.LeasesPath = "/tmp/dhcp.leases"
	}

	if c.Sources.UCIPath == "" {
		c.Sources.UCIPath = "/etc/config/dhcp"
	}

	if c.Sources.DNSServer == "" {
		c.Sources.DNSServer = "127.0.0.1:53"
	}

	if c.Annotations.Path == "" {
		c.Annotations.Path = "/etc/overview.json"
	}

	if c.Icons.Dir == "" {
		c.Icons.Dir = "/www/luci-static/resources/icons/device"
	}

	if c.Icons.Prefix == "" {
		c.Icons.Prefix = "/luci-static/resources/icons/device"
	}

	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = defaultWatchDebounce
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = defaultMQTTClientID
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = defaultMQTTTopic
	}

	if c.MQTT.Interval == 0 {
		c.MQTT.Interval = defaultMQTTInterval
	}
}

// Validate checks the configuration for errors.
//
//nolint:cyclop
func (c *Config) Validate() error {
	if !slices.Contains([]string{"json", "console"}, c.Log.Format) {
		return fmt.Errorf("%w: %q", errUnknownLogFormat, c.Log.Format)
	}

	if !c.HTTP.Disabled {
		if err := validateAddr(c.HTTP.Listen); err != nil {
			return fmt.Errorf("invalid http.listen: %w", err)
		}
	}

	if c.HTTP.ReadTimeout < 0 || c.HTTP.WriteTimeout < 0 || c.HTTP.IdleTimeout < 0 || c.Sources.Timeout < 0 {
		return errTimeoutMustBeNonNegative
	}

	if c.HTTP.RateLimit.RPS < 0 || c.HTTP.RateLimit.Burst < 0 {
		return errRateLimitMustBeNonNeg
	}

	if c.Sources.Mode != ModeUbus && c.Sources.Mode != ModeLocal {
		return fmt.Errorf("%w: %q", errUnknownSourceMode, c.Sources.Mode)
	}

	if c.Sources.Mode == ModeLocal {
		if err := validateAddr(c.Sources.DNSServer); err != nil {
			return fmt.Errorf("invalid sources.dns_server: %w", err)
		}
	}

	if strings.TrimSpace(c.Annotations.Path) == "" {
		return errAnnotationsPathEmpty
	}

	if c.MQTT.Enabled {
		return c.MQTT.validate()
	}

	return nil
}

func (m MQTTConfig) validate() error {
	if m.Broker == "" {
		return errMQTTBrokerRequired
	}

	u, err := url.Parse(m.Broker)
	if err != nil {
		return fmt.Errorf("invalid mqtt.broker: %w", err)
	}

	if !slices.Contains([]string{"tcp", "ssl", "ws", "wss", "mqtt", "mqtts"}, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("%w: %q", errMQTTBrokerScheme, m.Broker)
	}

	if strings.ContainsAny(m.Topic, "+#") {
		return fmt.Errorf("%w: %q", errMQTTTopicInvalid, m.Topic)
	}

	if m.Interval <= 0 {
		return errMQTTIntervalNotPositive
	}

	return nil
}

func validateAddr(addr string) error {
	if !strings.Contains(addr, ":") {
		return errAddressMustBeHostPort
	}

	_, _, err := net.SplitHostPort(addr)

	return err
}
