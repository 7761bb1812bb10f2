package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/metrics"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/eventbus"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// SubjectWildcard covers every run event subject.
const SubjectWildcard = "evt.askprice.>"

// jetStream is the subset of nats.JetStreamContext used for publishing.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher forwards run events to NATS JetStream as JSON envelopes.
type Publisher struct {
	nc      *nats.Conn
	js      jetStream
	service string
	logger  *zap.Logger
}

// New creates a Publisher and makes sure stream captures run event subjects.
func New(nc *nats.Conn, stream, service string, logger *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	if stream != "" {
		if err := EnsureStream(js, stream); err != nil {
			return nil, err
		}
	}
	return &Publisher{nc: nc, js: js, service: service, logger: logger}, nil
}

// EnsureStream creates stream over SubjectWildcard when it does not exist yet.
func EnsureStream(js nats.JetStreamManager, stream string) error {
	_, err := js.StreamInfo(stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", stream, err)
	}
	if _, err := js.AddStream(&nats.StreamConfig{
		Name:     stream,
		Subjects: []string{SubjectWildcard},
		MaxAge:   7 * 24 * time.Hour,
	}); err != nil {
		return fmt.Errorf("add stream %s: %w", stream, err)
	}
	return nil
}

// Attach subscribes the publisher to every event on bus.
func (p *Publisher) Attach(bus *eventbus.EventBus) {
	bus.SubscribeAll(func(e model.Event) {
		_ = p.PublishEvent(e)
	})
}

// PublishEvent wraps e in an envelope and publishes it on its versioned subject.
func (p *Publisher) PublishEvent(e model.Event) error {
	env, err := model.NewEnvelope(model.RunIDOf(e), e)
	if err != nil {
		p.logger.Error("publisher.marshal_failed", zap.String("event_type", e.EventType()), zap.Error(err))
		return err
	}
	return p.PublishEnvelope(env)
}

// PublishEnvelope serializes and publishes an envelope.
func (p *Publisher) PublishEnvelope(env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.marshal_failed",
			zap.String("subject", env.Topic),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		return err
	}

	msg := &nats.Msg{
		Subject: env.Topic,
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{env.EventType},
			"run_id":       []string{env.RunID},
			"service":      []string{p.service},
			"content_type": []string{"application/json"},
			nats.MsgIdHdr:  []string{env.ID.String()},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		metrics.IncPublishError("nats", env.Topic)
		p.logger.Warn("publisher.publish_failed",
			zap.String("subject", env.Topic),
			zap.String("run_id", env.RunID),
			zap.Error(err))
		return err
	}

	p.logger.Debug("publisher.publish_success",
		zap.String("subject", env.Topic),
		zap.String("run_id", env.RunID))
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		_ = p.nc.Drain()
	}
}
