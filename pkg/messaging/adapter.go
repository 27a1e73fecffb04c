package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// Consume subscribes to channel and calls handler for every payload until
// ctx is done or the broker closes the subscription. Handler errors are
// logged and do not stop consumption.
func Consume(ctx context.Context, broker Broker, channel string, handler func([]byte) error, logger zerolog.Logger) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgChan {
			if err := handler(msg); err != nil {
				logger.Warn().Err(err).Str("channel", channel).Msg("failed to handle message")
				continue
			}
		}
	}()

	return nil
}
