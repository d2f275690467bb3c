package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jackvaisey/user-service/pkg/config"
	"github.com/jackvaisey/user-service/pkg/logger"
	"github.com/jackvaisey/user-service/pkg/metrics"
	"github.com/jackvaisey/user-service/pkg/rabbitmq"
)

type subscriber interface {
	Subscribe(ctx context.Context, queue string, handler rabbitmq.Handler) error
}

type snapshotWriter interface {
	Set(ctx context.Context, snapshot BalanceSnapshot) error
}

// Listener consumes balance responses from the reply queue and writes
// them into the cache. Writes are last-write-wins; a response processed
// later overwrites one processed earlier even if it was sent first.
type Listener struct {
	broker   subscriber
	cache    snapshotWriter
	cfg      config.WalletConfig
	logg     *logger.Logger
	metrics  *metrics.ListenerMetrics
	validate *validator.Validate
}

func NewListener(broker subscriber, cache snapshotWriter, cfg config.WalletConfig, logg *logger.Logger) (*Listener, error) {
	if broker == nil {
		return nil, fmt.Errorf("balance listener requires a broker")
	}
	if cache == nil {
		return nil, fmt.Errorf("balance listener requires a cache")
	}
	if logg == nil {
		return nil, fmt.Errorf("balance listener requires a logger")
	}
	return &Listener{
		broker:   broker,
		cache:    cache,
		cfg:      cfg,
		logg:     logg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// WithMetrics attaches counters for processed and dropped responses.
func (l *Listener) WithMetrics(m *metrics.ListenerMetrics) *Listener {
	l.metrics = m
	return l
}

// Run subscribes to the reply queue and blocks until ctx is canceled or
// the broker connection drops.
func (l *Listener) Run(ctx context.Context) error {
	l.logg.Info(ctx, "balance listener starting")
	return l.broker.Subscribe(ctx, l.cfg.ReplyQueue, l.handle)
}

// handle processes one balance response. A returned error marks the
// message defective; the broker client drops it without requeueing.
func (l *Listener) handle(ctx context.Context, d rabbitmq.Delivery) error {
	var msg BalanceResponseMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		l.metrics.IncDropped()
		return fmt.Errorf("decode balance response: %w", err)
	}
	if err := l.validate.Struct(msg); err != nil {
		l.metrics.IncDropped()
		return fmt.Errorf("invalid balance response: %w", err)
	}

	snapshot := BalanceSnapshot{
		UserID:     msg.UserID,
		UsdBalance: *msg.UsdBalance,
		BtcBalance: *msg.BtcBalance,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := l.cache.Set(ctx, snapshot); err != nil {
		return err
	}

	l.metrics.IncUpdated()
	l.logg.Info(l.logg.WithUserID(ctx, msg.UserID), "balance cache updated")
	return nil
}
