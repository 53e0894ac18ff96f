// Package events publishes lifecycle events to NATS JetStream. Publishing is
// best-effort: a publish failure is logged and surfaced but the lifecycle
// mutation it follows has already committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// NATSPublisher implements EventPublisher on NATS JetStream
type NATSPublisher struct {
	mu      sync.RWMutex
	conn    *nats.Conn
	js      jetstream.JetStream
	config  *config.EventsConfig
	logger  interfaces.Logger
	metrics interfaces.Metrics
	closed  bool
}

// NewNATSPublisher connects to NATS and ensures the lifecycle event stream
// exists before returning.
func NewNATSPublisher(cfg *config.EventsConfig, logger interfaces.Logger, metrics interfaces.Metrics) (*NATSPublisher, error) {
	if cfg == nil {
		cfg = config.NewEventsConfig()
	}

	p := &NATSPublisher{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *NATSPublisher) connect() error {
	opts := []nats.Option{
		nats.MaxReconnects(p.config.MaxReconnect),
		nats.ReconnectWait(p.config.ReconnectWait),
		nats.Timeout(p.config.Timeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				p.logger.Warn("NATS disconnected", map[string]interface{}{"error": err.Error()})
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.logger.Info("NATS reconnected", map[string]interface{}{"url": nc.ConnectedUrl()})
		}),
	}
	if p.config.Username != "" && p.config.Password != "" {
		opts = append(opts, nats.UserInfo(p.config.Username, p.config.Password))
	}
	if p.config.Token != "" {
		opts = append(opts, nats.Token(p.config.Token))
	}

	conn, err := nats.Connect(joinURLs(p.config.URLs), opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to initialize JetStream: %w", err)
	}
	p.js = js

	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      p.config.StreamName,
		Subjects:  []string{p.config.SubjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		Discard:   jetstream.DiscardOld,
		MaxAge:    p.config.MaxAge,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to ensure event stream: %w", err)
	}

	p.logger.Info("connected to NATS event stream", map[string]interface{}{
		"stream":  p.config.StreamName,
		"subject": p.config.SubjectPrefix + ".>",
	})
	return nil
}

// Subject returns the JetStream subject for an event kind, e.g.
// identity.account.activated.
func (p *NATSPublisher) Subject(kind types.LifecycleEventKind) string {
	return fmt.Sprintf("%s.%s", p.config.SubjectPrefix, kind)
}

// Publish publishes a lifecycle event, retrying transient failures with
// exponential backoff bounded by the configured timeout.
func (p *NATSPublisher) Publish(ctx context.Context, event *types.LifecycleEvent) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return fmt.Errorf("event publisher is closed")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.Subject(event.Kind)
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	err = backoff.Retry(func() error {
		pubCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
		_, err := p.js.Publish(pubCtx, subject, data)
		return err
	}, policy)

	if err != nil {
		p.metrics.Counter("events_published", 1, map[string]string{"kind": string(event.Kind), "success": "false"})
		p.logger.Error("failed to publish lifecycle event", err, map[string]interface{}{
			"kind":    string(event.Kind),
			"subject": subject,
		})
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.metrics.Counter("events_published", 1, map[string]string{"kind": string(event.Kind), "success": "true"})
	return nil
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	return nil
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return nats.DefaultURL
	}
	joined := urls[0]
	for _, url := range urls[1:] {
		joined += "," + url
	}
	return joined
}

// NoOpPublisher is used when event publishing is disabled
type NoOpPublisher struct{}

// NewNoOpPublisher creates a publisher that drops every event
func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (n *NoOpPublisher) Publish(ctx context.Context, event *types.LifecycleEvent) error {
	return nil
}

func (n *NoOpPublisher) Close() error {
	return nil
}

var (
	_ interfaces.EventPublisher = (*NATSPublisher)(nil)
	_ interfaces.EventPublisher = (*NoOpPublisher)(nil)
)
