// Package rabbitmq carries orphaned media between the API and the janitor
// over a durable RabbitMQ queue.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"resort_hub/internal/adapters/observability"
	"resort_hub/internal/domain"
)

const DefaultQueue = "media.orphaned"

func Encode(o domain.OrphanedMedia) ([]byte, error) { return json.Marshal(o) }

// Decode parses a queued orphan and rejects payloads the janitor cannot act on.
func Decode(body []byte) (domain.OrphanedMedia, error) {
	var o domain.OrphanedMedia
	if err := json.Unmarshal(body, &o); err != nil {
		return domain.OrphanedMedia{}, fmt.Errorf("unmarshal orphan: %w", err)
	}
	if o.PublicID == "" || !o.Kind.Valid() {
		return domain.OrphanedMedia{}, fmt.Errorf("orphan missing public id or kind: %s", string(body))
	}
	return o, nil
}

func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	return err
}

// Publisher is the OrphanSink backed by RabbitMQ. It holds one connection and
// redials when the broker drops it.
type Publisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{url: url, queue: queue}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: dial: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	if err := declare(ch, p.queue); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) PublishOrphan(ctx context.Context, o domain.OrphanedMedia) error {
	body, err := Encode(o)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal orphan: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	observability.ObserveOrphan("queued")
	log.Debug().Str("queue", p.queue).Str("public_id", o.PublicID).Int("attempts", o.Attempts).Msg("orphan queued")
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Handler processes one orphan. An error drops the message.
type Handler func(ctx context.Context, o domain.OrphanedMedia) error

type Consumer struct {
	url     string
	queue   string
	workers int
}

func NewConsumer(url, queue string, workers int) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	if workers <= 0 {
		workers = 4
	}
	return &Consumer{url: url, queue: queue, workers: workers}
}

// Run consumes until ctx is done, redialing with backoff when the broker
// connection drops.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("orphan consumer: dial failed")
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn, h)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("orphan consumer: loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection, h Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.workers, 0, false); err != nil {
		log.Warn().Err(err).Msg("orphan consumer: set QoS failed")
	}
	if err := declare(ch, c.queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	log.Info().Str("queue", c.queue).Int("workers", c.workers).Msg("orphan consumer started")

	sem := semaphore.NewWeighted(int64(c.workers))
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				_ = d.Nack(false, true)
				return err
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer sem.Release(1)
				c.deliver(ctx, d, h)
			}(d)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery, h Handler) {
	o, err := Decode(d.Body)
	if err != nil {
		log.Error().Err(err).Msg("orphan consumer: bad message")
		observability.ObserveOrphan("dropped")
		_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
		return
	}
	if err := h(ctx, o); err != nil {
		if ctx.Err() != nil {
			_ = d.Nack(false, true) // shutting down; let another consumer take it
			return
		}
		log.Warn().Err(err).Str("public_id", o.PublicID).Msg("orphan consumer: handler failed")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
