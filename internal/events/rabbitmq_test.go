package events

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-ordering-service/internal/entity"
)

// fakeChannel confirms each publish with the next scripted ack.
type fakeChannel struct {
	acks    chan amqp.Confirmation
	replies []bool
	msgs    []amqp.Publishing
	keys    []string
	closed  bool
}

func newFakeChannel(replies ...bool) *fakeChannel {
	return &fakeChannel{acks: make(chan amqp.Confirmation, len(replies)), replies: replies}
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.msgs = append(c.msgs, msg)
	c.keys = append(c.keys, exchange+"/"+key)
	tag := uint64(len(c.msgs))
	c.acks <- amqp.Confirmation{DeliveryTag: tag, Ack: c.replies[tag-1]}
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeConn struct{ closed bool }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestRabbitPublisherWaitsForAck(t *testing.T) {
	ch := newFakeChannel(true)
	conn := &fakeConn{}
	p := newRabbitPublisher(conn, ch, ch.acks)

	event := entity.Event{Type: entity.EventHelpRequested, SessionID: "s1", TableID: "t1"}
	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, ch.msgs, 1)

	msg := ch.msgs[0]
	assert.Equal(t, staffExchange+"/"+string(entity.EventHelpRequested), ch.keys[0])
	assert.Equal(t, "session-s1", msg.MessageId)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)

	var decoded entity.Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "t1", decoded.TableID)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
	assert.True(t, conn.closed)
}

func TestRabbitPublisherReportsNack(t *testing.T) {
	ch := newFakeChannel(false)
	p := newRabbitPublisher(nil, ch, ch.acks)

	err := p.Publish(context.Background(), entity.Event{Type: entity.EventHelpRequested, SessionID: "s1"})
	assert.EqualError(t, err, "publish NACK from broker")
}

func TestRabbitPublisherKeepsConfirmsInOrderAfterCancel(t *testing.T) {
	// the first message is nacked, the second acked
	ch := newFakeChannel(false, true)
	p := newRabbitPublisher(nil, ch, ch.acks)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(cancelled, entity.Event{Type: entity.EventHelpRequested, SessionID: "s1"})
	assert.EqualError(t, err, "publish NACK from broker")

	// the nack above must not leak into this publish
	require.NoError(t, p.Publish(context.Background(), entity.Event{Type: entity.EventHelpRequested, SessionID: "s2"}))
	assert.Empty(t, ch.acks)
}

func TestRabbitPublisherClosedConfirms(t *testing.T) {
	acks := make(chan amqp.Confirmation)
	close(acks)
	ch := &fakeChannel{acks: make(chan amqp.Confirmation, 1), replies: []bool{true}}
	p := newRabbitPublisher(nil, ch, acks)

	err := p.Publish(context.Background(), entity.Event{Type: entity.EventHelpRequested, TableID: "t1"})
	assert.EqualError(t, err, "confirm channel closed")
}
