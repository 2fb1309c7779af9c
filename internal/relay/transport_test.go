package relay

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhya/medhya/internal/config"
)

func TestOpenTransport_None(t *testing.T) {
	tr, err := OpenTransport(context.Background(), &config.Config{EventSource: config.SourceNone}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, tr)
	tr.Close()
}

func TestOpenTransport_Unknown(t *testing.T) {
	_, err := OpenTransport(context.Background(), &config.Config{EventSource: "carrier-pigeon"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenTransport_Kafka(t *testing.T) {
	cfg := &config.Config{
		EventSource:  config.SourceKafka,
		KafkaBrokers: []string{"127.0.0.1:1"},
		KafkaTopic:   "medhya-events",
		KafkaGroupID: "medhya-relay",
	}
	tr, err := OpenTransport(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "kafka", tr.Source.Name())
	assert.Nil(t, tr.Health)
	tr.Close()
}

func TestOpenTransport_BadRedisURL(t *testing.T) {
	_, err := OpenTransport(context.Background(), &config.Config{EventSource: config.SourceRedis, RedisURL: "http://nope"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenPublisher(t *testing.T) {
	_, err := OpenPublisher(context.Background(), &config.Config{EventSource: config.SourceNone})
	assert.Error(t, err)

	p, err := OpenPublisher(context.Background(), &config.Config{
		EventSource:  config.SourceKafka,
		KafkaBrokers: []string{"127.0.0.1:1"},
		KafkaTopic:   "medhya-events",
	})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
