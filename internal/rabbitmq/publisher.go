package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/metrics"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/eventbus"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// DefaultQueue receives run events when no queue is configured.
const DefaultQueue = "askprice.events"

const publishTimeout = 5 * time.Second

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes run events to a durable RabbitMQ queue
type Publisher struct {
	conn    *amqp.Connection
	channel channel
	queue   string
	logger  *zap.Logger
}

// NewPublisher dials url, declares queue and subscribes to every event on bus.
func NewPublisher(url, queue string, bus *eventbus.EventBus, logger *zap.Logger) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	p := &Publisher{conn: conn, channel: ch, queue: queue, logger: logger}
	p.subscribe(bus)
	return p, nil
}

func (p *Publisher) subscribe(bus *eventbus.EventBus) {
	if bus == nil {
		return
	}
	bus.SubscribeAll(func(e model.Event) {
		_ = p.publish(e)
	})
}

func (p *Publisher) publish(e model.Event) error {
	env, err := model.NewEnvelope(model.RunIDOf(e), e)
	if err != nil {
		p.logger.Error("rabbitmq.marshal_failed", zap.String("event_type", e.EventType()), zap.Error(err))
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("rabbitmq.marshal_failed", zap.String("event_type", e.EventType()), zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.ID.String(),
			Type:         env.EventType,
			Timestamp:    env.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		metrics.IncPublishError("rabbitmq", p.queue)
		p.logger.Error("rabbitmq.publish_failed",
			zap.String("queue", p.queue),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		return err
	}

	p.logger.Debug("rabbitmq.published",
		zap.String("queue", p.queue),
		zap.String("event_type", env.EventType),
		zap.String("run_id", env.RunID))
	return nil
}

// Close closes the publisher
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
