package eventbus

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nurpe/towing-settlement/internal/event"
)

// LogConsumer writes every domain event to the service log.
type LogConsumer struct {
	log zerolog.Logger
}

func NewLogConsumer(log zerolog.Logger) *LogConsumer {
	return &LogConsumer{log: log}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	entities := make([]string, len(evt.Entities))
	for i, ref := range evt.Entities {
		entities[i] = ref.EntityType + ":" + ref.EntityID.String()
	}
	c.log.Info().
		Str("event_type", evt.EventType).
		Str("event_id", evt.ID.String()).
		Strs("entities", entities).
		Msg(evt.Summary)
	return nil
}
