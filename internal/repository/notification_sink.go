package repository

import (
	"context"
	"errors"
	"time"

	domrepo "SignalPilot/internal/domain/repository"
)

// Event is the envelope every sink publishes.
type Event struct {
	Kind    string      `json:"kind"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// HeaderPublisher is implemented by pkg/kafka.Producer.
type HeaderPublisher interface {
	PublishWithHeaders(ctx context.Context, topic string, key []byte, value interface{}, headers map[string]string) error
}

// KafkaSink publishes domain events to a topic, keyed by kind.
type KafkaSink struct {
	producer HeaderPublisher
	topic    string
	now      func() time.Time
}

func NewKafkaSink(producer HeaderPublisher, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, now: time.Now}
}

func (s *KafkaSink) Publish(ctx context.Context, kind string, payload interface{}) error {
	return s.producer.PublishWithHeaders(ctx, s.topic, []byte(kind),
		Event{Kind: kind, At: s.now().UTC(), Payload: payload},
		map[string]string{"kind": kind},
	)
}

// MultiSink fans one event out to every sink. All sinks are attempted; the
// joined error reports the ones that failed.
type MultiSink []domrepo.NotificationSink

func (m MultiSink) Publish(ctx context.Context, kind string, payload interface{}) error {
	var errList []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, kind, payload); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

var (
	_ domrepo.NotificationSink = (*KafkaSink)(nil)
	_ domrepo.NotificationSink = MultiSink(nil)
)
