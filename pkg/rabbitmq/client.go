package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"

	"github.com/jackvaisey/user-service/pkg/config"
	"github.com/jackvaisey/user-service/pkg/logger"
)

// Connection-level failures are distinguishable from message-level ones so
// callers can decide retry versus dead-letter.
var (
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrPublishNacked     = errors.New("message nacked by broker")
)

const defaultConfirmTimeout = 5 * time.Second

// Delivery is the subset of an inbound message the service consumes.
type Delivery struct {
	Body          []byte
	MessageID     string
	ReplyTo       string
	CorrelationID string
}

// Handler processes one inbound delivery. A returned error means the message
// is defective; it is logged and dropped, never requeued.
type Handler func(ctx context.Context, d Delivery) error

// Client is a thin adapter over one AMQP connection and a confirm-mode
// channel. It is not a general broker abstraction: one exchange, one reply
// queue, publish and subscribe. amqp091-go channels do not survive a network
// drop, so the client re-dials on demand whenever the connection or channel
// has died.
type Client struct {
	mu             sync.Mutex
	url            string
	prefetchCount  int
	conn           *amqp.Connection
	ch             *amqp.Channel
	closed         bool
	confirmTimeout time.Duration
	logg           *logger.Logger
}

// New dials the broker and opens a channel in confirm mode.
func New(ctx context.Context, cfg config.RabbitMQConfig, logg *logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}

	c := &Client{
		url:            cfg.URL,
		prefetchCount:  cfg.PrefetchCount,
		confirmTimeout: confirmTimeout,
		logg:           logg,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.channelLocked(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// channel returns a live confirm-mode channel, re-dialing if the previous
// connection or channel has died since the last call.
func (c *Client) channel(ctx context.Context) (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelLocked(ctx)
}

func (c *Client) channelLocked(ctx context.Context) (*amqp.Channel, error) {
	if c.closed {
		return nil, fmt.Errorf("%w: client closed", ErrBrokerUnavailable)
	}
	if c.conn != nil && !c.conn.IsClosed() && c.ch != nil && !c.ch.IsClosed() {
		return c.ch, nil
	}

	if c.ch != nil && !c.ch.IsClosed() {
		_ = c.ch.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Close()
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrBrokerUnavailable, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open channel: %v", ErrBrokerUnavailable, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: confirm mode: %v", ErrBrokerUnavailable, err)
	}
	if c.prefetchCount > 0 {
		if err := ch.Qos(c.prefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("%w: qos: %v", ErrBrokerUnavailable, err)
		}
	}

	c.conn = conn
	c.ch = ch
	if c.logg != nil {
		c.logg.Info(ctx, "rabbitmq connection established")
	}
	return ch, nil
}

// DeclareTopology ensures the wallet exchange and the reply queue exist. The
// wallet service owns its own request queues; only what this service consumes
// from is declared here.
func (c *Client) DeclareTopology(ctx context.Context, wallet config.WalletConfig) error {
	ch, err := c.channel(ctx)
	if err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(wallet.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("%w: declare exchange %s: %v", ErrBrokerUnavailable, wallet.Exchange, err)
	}
	if _, err := ch.QueueDeclare(wallet.ReplyQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%w: declare queue %s: %v", ErrBrokerUnavailable, wallet.ReplyQueue, err)
	}
	return nil
}

// Publish sends body as a persistent JSON message and waits for the broker's
// confirm, bounded by the configured timeout. replyTo may be empty.
func (c *Client) Publish(ctx context.Context, exchange, routingKey, replyTo string, body []byte) error {
	ch, err := c.channel(ctx)
	if err != nil {
		return err
	}

	confirmCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(
		confirmCtx,
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			ReplyTo:      replyTo,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return c.classify(err)
	}

	acked, err := confirmation.WaitContext(confirmCtx)
	if err != nil {
		return fmt.Errorf("%w: awaiting confirm: %v", ErrBrokerUnavailable, err)
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

// Subscribe consumes the named queue until ctx is canceled. Every delivery is
// acked exactly once; handler errors are logged and the message is discarded
// rather than requeued, so a poison message cannot loop.
func (c *Client) Subscribe(ctx context.Context, queue string, handler Handler) error {
	ch, err := c.channel(ctx)
	if err != nil {
		return err
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return c.classify(err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: consume channel closed for queue %s", ErrBrokerUnavailable, queue)
			}
			handlerErr := handler(ctx, Delivery{
				Body:          d.Body,
				MessageID:     d.MessageId,
				ReplyTo:       d.ReplyTo,
				CorrelationID: d.CorrelationId,
			})
			if handlerErr != nil && c.logg != nil {
				logCtx := c.logg.WithField(ctx, "queue", queue)
				c.logg.Error(logCtx, "dropping undeliverable message", handlerErr)
			}
			if ackErr := d.Ack(false); ackErr != nil && c.logg != nil {
				c.logg.Error(ctx, "failed to ack delivery", ackErr)
			}
		}
	}
}

// Ping verifies a live connection and channel, re-dialing first if the
// previous ones died. A recovered broker heals readiness without a restart.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.channel(ctx)
	return err
}

// Close releases the channel and connection. A closed client never re-dials.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	var errs error
	if c.ch != nil && !c.ch.IsClosed() {
		errs = multierr.Append(errs, c.ch.Close())
	}
	if c.conn != nil && !c.conn.IsClosed() {
		errs = multierr.Append(errs, c.conn.Close())
	}
	return errs
}

func (c *Client) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) && !amqpErr.Recover {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return err
}
