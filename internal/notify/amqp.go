package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/spigell/insight/internal/telemetry"
)

const DefaultExchange = "resume_updates"

var tracer = telemetry.GetTracer("insight/notify")

type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	logger   *zap.Logger
}

// NewAMQP dials the broker and declares a durable topic exchange.
func NewAMQP(url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, exchange: exchange, logger: logger}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event Event) error {
	_, span := tracer.Start(ctx, "PublishAMQP")
	defer span.End()

	body, err := json.Marshal(event)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("marshaling event: %w", err)
	}

	span.SetAttributes(
		telemetry.String("amqp.exchange", p.exchange),
		telemetry.String("amqp.routing_key", routingKey),
		telemetry.Int("message.size", len(body)),
	)

	ch, err := p.conn.Channel()
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("opening amqp channel: %w", err)
	}
	defer ch.Close()

	err = ch.Publish(
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   event.Timestamp,
			Body:        body,
		},
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("publishing to %s: %w", p.exchange, err)
	}

	p.logger.Debug("published event",
		zap.String("type", event.Type),
		zap.String("routing_key", routingKey),
	)
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
