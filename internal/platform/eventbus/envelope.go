// Package eventbus carries platform events from backend services to the
// relay over Postgres LISTEN/NOTIFY, Redis pub/sub or Kafka.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/medhya/medhya/internal/platform/realtime"
)

// Envelope is one event addressed to users, roles, or everyone when both
// lists are empty.
type Envelope struct {
	Event      string          `json:"event"`
	Recipients []string        `json:"recipients,omitempty"`
	Roles      []string        `json:"roles,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

var ErrMissingEvent = errors.New("envelope has no event name")

func (e Envelope) Validate() error {
	if e.Event == "" {
		return ErrMissingEvent
	}
	return nil
}

// Topics returns the hub topics the envelope fans out to. An empty result
// means broadcast.
func (e Envelope) Topics() []string {
	topics := make([]string, 0, len(e.Recipients)+len(e.Roles))
	for _, r := range e.Recipients {
		if r != "" {
			topics = append(topics, realtime.UserTopic(r))
		}
	}
	for _, r := range e.Roles {
		if r != "" {
			topics = append(topics, realtime.RoleTopic(r))
		}
	}
	return topics
}

func Encode(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func Decode(payload []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// Sink receives decoded envelopes. The relay hub is the production sink.
type Sink interface {
	Deliver(ctx context.Context, env Envelope) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, env Envelope) error

func (f SinkFunc) Deliver(ctx context.Context, env Envelope) error { return f(ctx, env) }

// Source reads envelopes from a transport until ctx is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// Publisher writes envelopes to a transport.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}
