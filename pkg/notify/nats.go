package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/marmos91/daserver/internal/logger"
)

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSConfig holds the NATS connection settings.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	ClientName    string
	MaxReconnects int
	ReconnectWait time.Duration
	IncludeItems  bool
}

// NATSSink publishes notifications as JSON. Subjects are
// <prefix>.items.changed, <prefix>.conditions.changed, <prefix>.events and
// <prefix>.control.shutdown.
type NATSSink struct {
	pub          Publisher
	prefix       string
	includeItems bool
}

func NewNATSSink(pub Publisher, prefix string, includeItems bool) *NATSSink {
	if prefix == "" {
		prefix = "daserver"
	}
	return &NATSSink{pub: pub, prefix: prefix, includeItems: includeItems}
}

// DialNATS connects to the configured server with reconnect handling that
// logs instead of failing.
func DialNATS(cfg NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logger.Err(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return conn, nil
}

func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject a notification of kind k is published on.
func (s *NATSSink) Subject(k Kind) string {
	switch k {
	case KindItemChanged:
		return s.prefix + ".items.changed"
	case KindConditionChanged:
		return s.prefix + ".conditions.changed"
	case KindEvent:
		return s.prefix + ".events"
	case KindShutdownRequest:
		return s.prefix + ".control.shutdown"
	default:
		return s.prefix + ".unknown"
	}
}

func (s *NATSSink) Deliver(_ context.Context, n Notification) error {
	if n.Kind == KindItemChanged && !s.includeItems {
		return nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode %s notification: %w", n.Kind, err)
	}
	return s.pub.Publish(s.Subject(n.Kind), data)
}
