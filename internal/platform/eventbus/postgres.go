package eventbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PGSource LISTENs on a Postgres channel. Producers publish with
// pg_notify(channel, envelope_json).
type PGSource struct {
	pool    *pgxpool.Pool
	channel string
	logger  zerolog.Logger
}

func NewPGSource(pool *pgxpool.Pool, channel string, logger zerolog.Logger) *PGSource {
	return &PGSource{pool: pool, channel: channel, logger: logger}
}

func (s *PGSource) Name() string { return "postgres" }

func (s *PGSource) Run(ctx context.Context, sink Sink) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", s.channel, err)
	}
	s.logger.Info().Str("channel", s.channel).Msg("listening for postgres notifications")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		handle(ctx, s.logger, s.Name(), []byte(n.Payload), sink)
	}
}

// PGPublisher sends envelopes with pg_notify.
type PGPublisher struct {
	pool    *pgxpool.Pool
	channel string
}

func NewPGPublisher(pool *pgxpool.Pool, channel string) *PGPublisher {
	return &PGPublisher{pool: pool, channel: channel}
}

func (p *PGPublisher) Publish(ctx context.Context, env Envelope) error {
	payload, err := Encode(env)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", p.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", p.channel, err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (p *PGPublisher) Close() error { return nil }
