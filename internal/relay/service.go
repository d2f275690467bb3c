package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/jackvaisey/user-service/pkg/config"
	"github.com/jackvaisey/user-service/pkg/db/models"
	"github.com/jackvaisey/user-service/pkg/enums"
	"github.com/jackvaisey/user-service/pkg/logger"
	"github.com/jackvaisey/user-service/pkg/metrics"
	"github.com/jackvaisey/user-service/pkg/outbox/registry"
	"github.com/jackvaisey/user-service/pkg/rabbitmq"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 5 * time.Second
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 30 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type broker interface {
	Ping(context.Context) error
	Publish(ctx context.Context, exchange, routingKey, replyTo string, body []byte) error
}

type eventStore interface {
	FetchUnprocessed(limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkProcessed(id int64, at time.Time) error
	MarkFailed(id int64, cause error) error
	MarkDeferred(id int64, cause error) error
	MarkTerminalTx(tx *gorm.DB, id int64, cause error, terminalAttempts int) error
}

type deadLetterStore interface {
	Insert(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       dbClient
	Broker   broker
	Store    eventStore
	DLQ      deadLetterStore
	Registry registryResolver
	Metrics  *metrics.RelayMetrics
}

// Service bridges the durable event store and the broker with at-least-once
// semantics. One sweep runs at a time; a crash between publish and
// MarkProcessed replays the event, never loses it.
type Service struct {
	cfg            *config.Config
	logg           *logger.Logger
	db             dbClient
	broker         broker
	store          eventStore
	dlq            deadLetterStore
	registry       registryResolver
	metrics        *metrics.RelayMetrics
	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Broker == nil {
		return nil, errors.New("broker is required")
	}
	if params.Store == nil {
		return nil, errors.New("event store is required")
	}
	if params.DLQ == nil {
		return nil, errors.New("dlq store is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	interval := params.Config.Outbox.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	publishTimeout := params.Config.Outbox.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}

	return &Service{
		cfg:            params.Config,
		logg:           params.Logger,
		db:             params.DB,
		broker:         params.Broker,
		store:          params.Store,
		dlq:            params.DLQ,
		registry:       params.Registry,
		metrics:        params.Metrics,
		batchSize:      batch,
		maxAttempts:    maxAttempts,
		pollInterval:   interval,
		publishTimeout: publishTimeout,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.broker.Ping(ctx); err != nil {
		s.logg.Error(ctx, "broker ping failed", err)
		return fmt.Errorf("broker ping failed: %w", err)
	}
	return nil
}

// Run sweeps the outbox on a fixed interval until ctx is canceled. Ticks do
// not overlap; an in-flight sweep finishes before shutdown completes.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	backoff := s.pollInterval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox relay context canceled")
			return ctx.Err()
		default:
		}

		if err := s.Sweep(ctx); err != nil {
			s.logg.Error(ctx, "outbox sweep error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = s.pollInterval
		if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

// Sweep processes one batch of pending events. Failures are isolated per
// item: one broken event never blocks the rest of the batch.
func (s *Service) Sweep(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.ObserveSweep(time.Since(start))
	}()

	events, err := s.store.FetchUnprocessed(s.batchSize, s.maxAttempts)
	if err != nil {
		return fmt.Errorf("fetch unprocessed: %w", err)
	}

	for _, event := range events {
		if err := s.processEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// processEvent returns an error only for bookkeeping failures; publish
// failures are absorbed into the row's retry state.
func (s *Service) processEvent(ctx context.Context, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.handleTerminal(ctx, event, enums.OutboxDLQReasonNonRetryable, err)
	}

	fields := s.eventFields(event, resolved)
	logCtx := s.logg.WithFields(ctx, fields)

	if err := s.publish(ctx, event, resolved); err != nil {
		failCtx := s.logg.WithField(logCtx, "error", err.Error())

		// A dead broker is not the event's fault. The row keeps its attempt
		// budget and every future tick retries it until the broker answers.
		if errors.Is(err, rabbitmq.ErrBrokerUnavailable) {
			s.metrics.IncFailed()
			s.logg.Warn(failCtx, "broker unavailable, publish deferred")
			if markErr := s.store.MarkDeferred(event.ID, err); markErr != nil {
				return fmt.Errorf("mark deferred %d: %w", event.ID, markErr)
			}
			return nil
		}

		nextAttempt := event.AttemptCount + 1
		if nextAttempt >= s.maxAttempts {
			terminalErr := fmt.Errorf("max publish attempts reached: %w", err)
			return s.handleTerminal(ctx, event, enums.OutboxDLQReasonMaxAttempts, terminalErr)
		}

		s.metrics.IncFailed()
		s.logg.Warn(failCtx, "outbox publish failed")
		if markErr := s.store.MarkFailed(event.ID, err); markErr != nil {
			return fmt.Errorf("mark failed %d: %w", event.ID, markErr)
		}
		return nil
	}

	if markErr := s.store.MarkProcessed(event.ID, time.Now().UTC()); markErr != nil {
		return fmt.Errorf("mark processed %d: %w", event.ID, markErr)
	}
	s.metrics.IncPublished()
	s.logg.Info(logCtx, "outbox event published")
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	return s.broker.Publish(
		publishCtx,
		resolved.Descriptor.Exchange,
		resolved.Descriptor.RoutingKey,
		"",
		event.Payload,
	)
}

func (s *Service) handleTerminal(ctx context.Context, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
		"error_reason": reason,
		"error":        cause.Error(),
	})
	s.logg.Warn(logCtx, "outbox event will not be retried")

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		entry := models.OutboxDLQ{
			EventID:      event.ID,
			AggregateID:  event.AggregateID,
			EventType:    event.EventType,
			Payload:      event.Payload,
			ErrorReason:  reason,
			ErrorMessage: errorMessage(cause),
			AttemptCount: event.AttemptCount,
			FailedAt:     time.Now().UTC(),
		}
		if dlqErr := s.dlq.Insert(tx, entry); dlqErr != nil {
			return fmt.Errorf("insert dlq %d: %w", event.ID, dlqErr)
		}
		if markErr := s.store.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); markErr != nil {
			return fmt.Errorf("mark terminal %d: %w", event.ID, markErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.IncDeadLettered()
	return nil
}

func errorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

func (s *Service) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID,
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID,
		"attempt_count": event.AttemptCount,
		"exchange":      resolved.Descriptor.Exchange,
		"routing_key":   resolved.Descriptor.RoutingKey,
	}
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int63n(int64(jitterWindow)))
	return d + jitter
}
