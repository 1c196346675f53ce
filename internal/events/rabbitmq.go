package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"table-ordering-service/internal/entity"
)

const staffExchange = "staff_notifications_fanout"

// publishChannel is the part of *amqp.Channel the publisher needs.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes to a fanout exchange and waits for the broker confirm.
type RabbitPublisher struct {
	conn io.Closer
	ch   publishChannel
	acks <-chan amqp.Confirmation

	// publishes are serialised so each confirm matches its message
	mu sync.Mutex
}

func newRabbitPublisher(conn io.Closer, ch publishChannel, acks <-chan amqp.Confirmation) *RabbitPublisher {
	return &RabbitPublisher{conn: conn, ch: ch, acks: acks}
}

func DialRabbit(url string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(staffExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return newRabbitPublisher(conn, ch, acks), nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, event entity.Event) error {
	body, err := encode(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, staffExchange, string(event.Type), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		MessageId:    string(messageKey(event)),
		Type:         string(event.Type),
		Body:         body,
	})
	if err != nil {
		return err
	}

	// Always consume this message's confirm, even if ctx is done, or the next
	// publish would read it as its own.
	conf, ok := <-p.acks
	if !ok {
		return errors.New("confirm channel closed")
	}
	if !conf.Ack {
		return errors.New("publish NACK from broker")
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
