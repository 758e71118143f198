package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/tradingiq/koscom-client/types"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultStreamURL      = "wss://newmobile.koscom.co.kr"
	DefaultRESTURL        = "https://checkapi.koscom.co.kr"
	DefaultReconnectDelay = time.Second
	DefaultRESTTimeout    = 10 * time.Second
)

type Config struct {
	Credentials     CredentialsConfig    `yaml:"credentials"`
	Stream          StreamConfig         `yaml:"stream"`
	REST            RESTConfig           `yaml:"rest"`
	TranslationFile string               `yaml:"translation_file"`
	Subscriptions   []SubscriptionConfig `yaml:"subscriptions"`
}

type CredentialsConfig struct {
	UserID  string `yaml:"user_id"`
	UserKey string `yaml:"user_key"`
}

type StreamConfig struct {
	URL              string        `yaml:"url"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	QueueSize        int           `yaml:"queue_size"`
	Fields           []string      `yaml:"fields"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SubscriptionConfig struct {
	Market string `yaml:"market"`
	Type   string `yaml:"type"`
	Ticker string `yaml:"ticker"`
}

// Load reads, defaults and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg, err := parseUnvalidated(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func parseUnvalidated(data []byte) (*Config, error) {
	// Seeded before decoding so an explicit reconnect_delay of 0s survives.
	cfg := Config{Stream: StreamConfig{ReconnectDelay: DefaultReconnectDelay}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Stream.URL == "" {
		c.Stream.URL = DefaultStreamURL
	}
	if c.REST.BaseURL == "" {
		c.REST.BaseURL = DefaultRESTURL
	}
	if c.REST.Timeout == 0 {
		c.REST.Timeout = DefaultRESTTimeout
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs error

	if c.Credentials.UserID == "" {
		errs = multierr.Append(errs, fmt.Errorf("credentials.user_id cannot be empty"))
	}
	if c.Credentials.UserKey == "" {
		errs = multierr.Append(errs, fmt.Errorf("credentials.user_key cannot be empty"))
	}

	errs = multierr.Append(errs, validateURL("stream.url", c.Stream.URL, "ws", "wss"))
	errs = multierr.Append(errs, validateURL("rest.base_url", c.REST.BaseURL, "http", "https"))

	if c.Stream.ReconnectDelay < 0 {
		errs = multierr.Append(errs, fmt.Errorf("stream.reconnect_delay cannot be negative"))
	}
	if c.Stream.ReadTimeout < 0 {
		errs = multierr.Append(errs, fmt.Errorf("stream.read_timeout cannot be negative"))
	}
	if c.Stream.PingInterval < 0 {
		errs = multierr.Append(errs, fmt.Errorf("stream.ping_interval cannot be negative"))
	}
	if c.Stream.QueueSize < 0 {
		errs = multierr.Append(errs, fmt.Errorf("stream.queue_size cannot be negative"))
	}

	if c.TranslationFile == "" {
		errs = multierr.Append(errs, fmt.Errorf("translation_file cannot be empty"))
	}

	if len(c.Subscriptions) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("at least one subscription must be configured"))
	}
	for i, sub := range c.Subscriptions {
		if _, err := sub.Key(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %d: %w", i, err))
		}
	}

	return errs
}

func validateURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s %q must be an absolute %v URL", name, raw, schemes)
}

func (s SubscriptionConfig) Key() (types.SubscriptionKey, error) {
	market, err := types.ParseMarketType(s.Market)
	if err != nil {
		return types.SubscriptionKey{}, err
	}
	sub, err := types.ParseSubType(s.Type)
	if err != nil {
		return types.SubscriptionKey{}, err
	}
	key := types.NewSubscriptionKey(market, sub, s.Ticker)
	if err := key.Validate(); err != nil {
		return types.SubscriptionKey{}, err
	}
	return key, nil
}

func (c *Config) SubscriptionKeys() ([]types.SubscriptionKey, error) {
	keys := make([]types.SubscriptionKey, 0, len(c.Subscriptions))
	for i, sub := range c.Subscriptions {
		key, err := sub.Key()
		if err != nil {
			return nil, fmt.Errorf("subscription %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (c *Config) Creds() types.Credentials {
	return types.Credentials{UserID: c.Credentials.UserID, UserKey: c.Credentials.UserKey}
}
