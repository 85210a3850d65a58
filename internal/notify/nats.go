package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/spigell/insight/internal/telemetry"
)

const (
	DefaultSubjectPrefix = "insight"
	connectTimeout       = 10 * time.Second
)

type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

func NewNATS(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name("insight"),
		nats.Timeout(connectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	return &NATSPublisher{nc: nc, prefix: normalizePrefix(prefix), logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, routingKey string, event Event) error {
	_, span := tracer.Start(ctx, "PublishNATS")
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("marshaling event: %w", err)
	}

	subject := Subject(p.prefix, routingKey)
	span.SetAttributes(
		telemetry.String("nats.subject", subject),
		telemetry.Int("message.size", len(data)),
	)

	if err := p.nc.Publish(subject, data); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("publishing to NATS: %w", err)
	}

	p.logger.Debug("published event",
		zap.String("type", event.Type),
		zap.String("subject", subject),
	)
	return nil
}

func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}

// Subject joins the prefix and routing key into a NATS subject.
func Subject(prefix, routingKey string) string {
	prefix = normalizePrefix(prefix)
	routingKey = strings.Trim(routingKey, ".")
	if routingKey == "" {
		return prefix
	}
	return prefix + "." + routingKey
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	return prefix
}
