package network

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Handler runs an envelope; source names where it came from.
type Handler interface {
	Handle(env Envelope, source string) Report
}

const SourceRedis = "redis"

// Serve subscribes to the command and desired channels of ch, hands every
// envelope to h and publishes the report on ch.Results until ctx ends.
func Serve(ctx context.Context, c *Client, ch Channels, h Handler, log zerolog.Logger) error {
	ps, err := c.Subscribe(ctx, ch.Commands, ch.Desired)
	if err != nil {
		return err
	}
	defer ps.Close()
	log.Info().Str("commands", ch.Commands).Str("desired", ch.Desired).Msg("listening")

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			rep := HandleMessage(ch, h, m.Channel, m.Payload)
			if err := c.Send(ctx, ch.Results, rep); err != nil {
				log.Error().Err(err).Str("id", rep.ID).Msg("publishing report failed")
			}
		}
	}
}

// HandleMessage turns one raw pub/sub message into a report.
func HandleMessage(ch Channels, h Handler, channel, payload string) Report {
	env, err := ParseEnvelope([]byte(payload), ch.KindOf(channel))
	if err != nil {
		return Report{Kind: ch.KindOf(channel), Source: SourceRedis, Result: ResultRejected, Error: err.Error(), At: time.Now()}
	}
	return h.Handle(env, SourceRedis)
}
