package relay

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/medhya/medhya/internal/config"
	"github.com/medhya/medhya/internal/platform/db"
	"github.com/medhya/medhya/internal/platform/eventbus"
)

// Transport is an opened event bus: the source the relay consumes, an
// optional health probe and the resources to release on shutdown.
type Transport struct {
	Source eventbus.Source
	Health db.Pinger
	// Postgres is set when the probe is a database, for /health/db.
	Postgres bool
	close    func()
}

func (t *Transport) Close() {
	if t != nil && t.close != nil {
		t.close()
	}
}

// OpenTransport connects the source named by cfg.EventSource. A nil
// Transport with a nil error means EVENT_SOURCE is none.
func OpenTransport(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Transport, error) {
	switch cfg.EventSource {
	case config.SourceNone, "":
		return nil, nil

	case config.SourcePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			ApplicationName: "medhya-relay",
		})
		if err != nil {
			return nil, err
		}
		return &Transport{
			Source:   eventbus.NewPGSource(pool, cfg.PGChannel, logger),
			Health:   pool,
			Postgres: true,
			close:    pool.Close,
		}, nil

	case config.SourceRedis:
		client, err := eventbus.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return &Transport{
			Source: eventbus.NewRedisSource(client, cfg.RedisChannel, logger),
			Health: redisPinger(client),
			close:  func() { client.Close() },
		}, nil

	case config.SourceKafka:
		src := eventbus.NewKafkaSource(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)
		return &Transport{
			Source: src,
			close:  func() { src.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown event source %q", cfg.EventSource)
}

// OpenPublisher connects a publisher for cfg.EventSource. The caller closes
// it.
func OpenPublisher(ctx context.Context, cfg *config.Config) (eventbus.Publisher, error) {
	switch cfg.EventSource {
	case config.SourcePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 1, ApplicationName: "medhya-publish"})
		if err != nil {
			return nil, err
		}
		return &poolPublisher{PGPublisher: eventbus.NewPGPublisher(pool, cfg.PGChannel), close: pool.Close}, nil

	case config.SourceRedis:
		client, err := eventbus.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return eventbus.NewRedisPublisher(client, cfg.RedisChannel), nil

	case config.SourceKafka:
		return eventbus.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	}
	return nil, fmt.Errorf("EVENT_SOURCE %q has no publisher", cfg.EventSource)
}

type poolPublisher struct {
	*eventbus.PGPublisher
	close func()
}

func (p *poolPublisher) Close() error {
	p.close()
	return nil
}

func redisPinger(client *redis.Client) db.Pinger {
	return db.PingerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}
