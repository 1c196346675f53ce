package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-ordering-service/internal/entity"
)

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherEncodesEvent(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)

	event := entity.Event{
		Type:       entity.EventTableTransferred,
		SessionID:  "s1",
		TableID:    "t2",
		Payload:    map[string]any{"from_table": 3, "to_table": 7},
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "session-s1", string(msg.Key))
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, "table.transferred", string(msg.Headers[0].Value))

	var decoded entity.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.Type, decoded.Type)
	assert.EqualValues(t, 7, decoded.Payload["to_table"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestMessageKeyFallsBackToTable(t *testing.T) {
	assert.Equal(t, "table-t9", string(messageKey(entity.Event{TableID: "t9"})))
}

func TestNewKafkaWriterSplitsBrokers(t *testing.T) {
	w := NewKafkaWriter("k1:9092,k2:9092", "table-events")
	assert.Equal(t, "table-events", w.Topic)
	assert.Contains(t, w.Addr.String(), "k2:9092")
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

func TestSessionEventsShareAPartition(t *testing.T) {
	w := NewKafkaWriter("k1:9092", "table-events")
	partitions := []int{0, 1, 2, 3, 4, 5, 6, 7}
	first := w.Balancer.Balance(kafka.Message{Key: messageKey(entity.Event{SessionID: "s1", TableID: "t1"})}, partitions...)
	for _, tableID := range []string{"t1", "t2", "t3"} {
		msg := kafka.Message{Key: messageKey(entity.Event{SessionID: "s1", TableID: tableID})}
		assert.Equal(t, first, w.Balancer.Balance(msg, partitions...))
	}
}
