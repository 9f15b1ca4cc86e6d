package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	publishTimeout = 5 * time.Second
	confirmBuffer  = 16
)

// Client AMQP connection with one confirming publish channel
type Client struct {
	exchange string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	confirms chan amqp.Confirmation
}

// Connect dials RabbitMQ and declares the durable fanout exchange notifications go to
func Connect(url, exchange string) (*Client, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: failed to declare exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: failed to enable confirms: %w", err)
	}

	return &Client{
		exchange: exchange,
		conn:     conn,
		ch:       ch,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer)),
	}, nil
}

// Publish sends body to the exchange and waits for the broker confirm
func (c *Client) Publish(ctx context.Context, routingKey string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() || c.ch.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	tag := c.ch.GetNextPublishSeqNo()
	if err := c.ch.PublishWithContext(ctx, c.exchange, routingKey, false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		return err
	}

	return awaitConfirm(ctx, c.confirms, tag)
}

// awaitConfirm waits for the confirm of delivery tag; late confirms of earlier publishes are dropped
func awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, tag uint64) error {
	for {
		select {
		case confirm, ok := <-confirms:
			if !ok {
				return errors.New("rabbitmq: confirm stream closed")
			}
			if confirm.DeliveryTag < tag {
				continue
			}
			if confirm.DeliveryTag > tag {
				return fmt.Errorf("rabbitmq: confirm for tag %d missing, got %d", tag, confirm.DeliveryTag)
			}
			if !confirm.Ack {
				return errors.New("rabbitmq: publish not acknowledged")
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes channel and connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.ch.Close()
	err := c.conn.Close()
	c.conn = nil
	return err
}
