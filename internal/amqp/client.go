package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"ledger/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures        = 5
	openTimeout        = 30 * time.Second
	maxBackoff         = 30 * time.Second
	publishTimeout     = 5 * time.Second
	maxConnectAttempts = 3
)

// Client publishes ledger events to a durable direct exchange. Every user has
// a durable queue of its own, bound with the queue name as routing key. The
// connection is opened by Connect and reopened on demand after a connection
// error.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu          sync.Mutex
	conn        *amqp091.Connection
	channel     *amqp091.Channel
	declared    map[string]bool
	lastFailure time.Time

	state        int32
	failureCount int64
}

// NewClient returns an unconnected client. queueName prefixes the per-user
// queue names.
func NewClient(url, exchangeName, queueName string) *Client {
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
}

// Connect dials the broker, retrying with exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}
		if _, err := c.ensureChannel(); err != nil {
			lastErr = err
			amqpLog(ctx).WarnContext(ctx, "AMQP connection attempt failed",
				log.FieldOperation, log.OpConnect,
				"attempt", attempt+1,
				"error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("connect to AMQP after %d attempts: %w", maxConnectAttempts, lastErr)
}

func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	c.conn = conn
	c.channel = channel
	c.declared = make(map[string]bool)

	if err := c.setup(); err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("setup exchange: %w", err)
	}
	return channel, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

// UserQueue is the queue and routing key carrying the events of userID.
func (c *Client) UserQueue(userID string) string {
	return c.queueName + "." + userID
}

func (c *Client) declareUserQueue(channel *amqp091.Channel, userID string) (string, error) {
	name := c.UserQueue(userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.declared[name] {
		return name, nil
	}

	_, err := channel.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare queue %s: %w", name, err)
	}
	err = channel.QueueBind(
		name,           // queue name
		name,           // routing key
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("bind queue %s: %w", name, err)
	}

	if c.declared == nil {
		c.declared = make(map[string]bool)
	}
	c.declared[name] = true
	return name, nil
}

// PublishEvent publishes one ledger event. It fails fast while the circuit
// breaker is open.
func (c *Client) PublishEvent(ctx context.Context, ev *LedgerEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, dropping %s event", ev.Type)
	}

	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	channel, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}
	// Declaring on publish keeps events of users who never watched.
	routingKey, err := c.declareUserQueue(channel, ev.UserID)
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    ev.ID,
			Type:         ev.Type,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	amqpLog(ctx).InfoContext(ctx, "Published ledger event",
		log.FieldOperation, log.OpPublish,
		"id", ev.ID,
		"type", ev.Type,
		"entity_id", ev.EntityID,
		"exchange", c.exchangeName,
		"queue", routingKey)
	return nil
}

// ConsumeEvents delivers the events of userID to handler until ctx is done.
// Undecodable messages are dropped; handler errors requeue the message.
func (c *Client) ConsumeEvents(ctx context.Context, userID string, handler func(*LedgerEvent) error) error {
	channel, err := c.ensureChannel()
	if err != nil {
		return err
	}
	queue, err := c.declareUserQueue(channel, userID)
	if err != nil {
		return err
	}
	msgs, err := channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	amqpLog(ctx).InfoContext(ctx, "Started consuming ledger events", log.FieldOperation, log.OpConsume, "queue", queue)

	for {
		select {
		case <-ctx.Done():
			amqpLog(ctx).InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			ev, err := LedgerEventFromJSON(delivery.Body)
			if err != nil {
				amqpLog(ctx).ErrorContext(ctx, "Failed to unmarshal message", log.FieldOperation, log.OpConsume, log.FieldError, err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ev); err != nil {
				amqpLog(ctx).ErrorContext(ctx, "Failed to handle message",
					log.FieldOperation, log.OpConsume,
					log.FieldError, err,
					"id", ev.ID,
					"type", ev.Type)
				delivery.Nack(false, true)
				continue
			}
			delivery.Ack(false)
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func amqpLog(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentAMQP)
}
