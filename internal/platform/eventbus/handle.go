package eventbus

import (
	"context"

	"github.com/rs/zerolog"
)

// handle decodes one raw payload and hands it to sink. Malformed payloads
// and sink failures are logged and dropped so one bad event cannot stall a
// source.
func handle(ctx context.Context, logger zerolog.Logger, source string, payload []byte, sink Sink) {
	env, err := Decode(payload)
	if err != nil {
		logger.Warn().Err(err).Str("source", source).Int("bytes", len(payload)).Msg("dropping malformed event")
		return
	}
	if err := sink.Deliver(ctx, env); err != nil {
		logger.Error().Err(err).Str("source", source).Str("event", env.Event).Msg("failed to deliver event")
		return
	}
	logger.Debug().Str("source", source).Str("event", env.Event).Msg("event delivered")
}
