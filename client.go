// Package koscom wires the CHECK streaming session and REST client together
// from a single configuration.
package koscom

import (
	"context"
	"fmt"
	"time"

	"github.com/tradingiq/koscom-client/config"
	"github.com/tradingiq/koscom-client/interfaces"
	"github.com/tradingiq/koscom-client/rest"
	"github.com/tradingiq/koscom-client/translate"
	"github.com/tradingiq/koscom-client/websocket"

	"go.uber.org/zap"
)

type Client struct {
	cfg      *config.Config
	logger   *zap.Logger
	table    *translate.Table
	registry *websocket.Registry
	session  *websocket.Session
	rest     *rest.Client
	calendar *rest.TradingCalendar

	sessionOpts []websocket.SessionOption
}

type Option func(*Client)

// WithTranslationTable skips loading cfg.TranslationFile.
func WithTranslationTable(table *translate.Table) Option {
	return func(c *Client) {
		c.table = table
	}
}

// WithSessionOptions appends options applied after the configured ones.
func WithSessionOptions(opts ...websocket.SessionOption) Option {
	return func(c *Client) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(c)
	}

	if c.table == nil {
		table, err := translate.Load(cfg.TranslationFile)
		if err != nil {
			return nil, err
		}
		c.table = table
	}

	keys, err := cfg.SubscriptionKeys()
	if err != nil {
		return nil, err
	}

	var registryOpts []websocket.RegistryOption
	if len(cfg.Stream.Fields) > 0 {
		registryOpts = append(registryOpts, websocket.WithFields(cfg.Stream.Fields...))
	}
	c.registry, err = websocket.NewRegistry(cfg.Creds(), keys, registryOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build subscription registry: %w", err)
	}

	sessionOpts := append([]websocket.SessionOption{
		websocket.WithURL(cfg.Stream.URL),
		websocket.WithReconnectDelay(cfg.Stream.ReconnectDelay),
		websocket.WithReadTimeout(cfg.Stream.ReadTimeout),
		websocket.WithHandshakeTimeout(cfg.Stream.HandshakeTimeout),
		websocket.WithPingInterval(cfg.Stream.PingInterval),
	}, c.sessionOpts...)

	c.session, err = websocket.NewSession(c.registry, c.table, logger.Named("stream"), sessionOpts...)
	if err != nil {
		return nil, err
	}

	c.rest = rest.NewClient(cfg.Creds(), c.table, logger.Named("rest"),
		rest.WithBaseURL(cfg.REST.BaseURL),
		rest.WithTimeout(cfg.REST.Timeout),
	)

	c.calendar = rest.NewTradingCalendar()

	logger.Info("KOSCOM client ready",
		zap.Int("subscriptions", c.registry.Len()),
		zap.Int("translations", c.table.Len()),
	)
	return c, nil
}

// Stream runs the streaming session until ctx is cancelled. With a
// configured queue size the subscriber is called from a separate goroutine
// and ticks are dropped when it falls behind.
func (c *Client) Stream(ctx context.Context, subscriber interfaces.TickSubscriber) error {
	if subscriber == nil {
		return websocket.ErrNilSubscriber
	}
	if c.cfg.Stream.QueueSize > 0 {
		queued := websocket.NewQueuedSubscriber(subscriber, c.cfg.Stream.QueueSize, c.logger.Named("queue"))
		defer func() {
			queued.Close()
			if dropped := queued.Dropped(); dropped > 0 {
				c.logger.Warn("Subscriber queue dropped ticks", zap.Uint64("dropped", dropped))
			}
		}()
		subscriber = queued
	}

	if now := time.Now(); !c.calendar.IsOpen(now) {
		c.logger.Info("KRX regular session is closed, ticks may be sparse",
			zap.Time("lastTradingDay", c.calendar.LastTradingDay(now)),
		)
	}

	return c.session.Run(ctx, subscriber)
}

func (c *Client) Session() *websocket.Session {
	return c.session
}

func (c *Client) Registry() *websocket.Registry {
	return c.registry
}

func (c *Client) REST() *rest.Client {
	return c.rest
}

func (c *Client) Calendar() *rest.TradingCalendar {
	return c.calendar
}

func (c *Client) Table() *translate.Table {
	return c.table
}

var _ interfaces.StreamClient = (*websocket.Session)(nil)
