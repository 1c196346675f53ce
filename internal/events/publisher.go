// Package events publishes committed state changes to a message broker.
package events

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	"table-ordering-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "events").Logger()

type Publisher interface {
	Publish(ctx context.Context, event entity.Event) error
	Close() error
}

// NoopPublisher only logs events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, event entity.Event) error {
	logger.Debug().Str("type", string(event.Type)).Str("session_id", event.SessionID).Msg("event dropped, no broker configured")
	return nil
}

func (NoopPublisher) Close() error { return nil }

func encode(event entity.Event) ([]byte, error) {
	return json.Marshal(event)
}

// messageKey groups the events of one session; the Kafka writer hashes it to a partition.
func messageKey(event entity.Event) []byte {
	if event.SessionID != "" {
		return []byte("session-" + event.SessionID)
	}
	return []byte("table-" + event.TableID)
}
