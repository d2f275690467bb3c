package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jackvaisey/user-service/pkg/logger"
)

type snapshotStore interface {
	Get(ctx context.Context, userID int64) (*BalanceSnapshot, bool, error)
	Evict(ctx context.Context, userID int64) error
}

type balanceRequester interface {
	RequestBalance(ctx context.Context, userID int64) error
}

const requestTimeout = 5 * time.Second

// Service is the read path for wallet balances. It never blocks on the
// wallet service: a miss returns zero balances and kicks off an async
// refresh so a later read sees real data.
type Service struct {
	cache     snapshotStore
	requester balanceRequester
	logg      *logger.Logger
}

func NewService(cache snapshotStore, requester balanceRequester, logg *logger.Logger) (*Service, error) {
	if cache == nil {
		return nil, fmt.Errorf("wallet service requires a cache")
	}
	if requester == nil {
		return nil, fmt.Errorf("wallet service requires a requester")
	}
	if logg == nil {
		return nil, fmt.Errorf("wallet service requires a logger")
	}
	return &Service{cache: cache, requester: requester, logg: logg}, nil
}

// GetBalance returns the last known balance for userID. On a miss, or
// when the cache is unreachable, it returns a zero placeholder and
// requests a refresh in the background. The caller never sees a cache
// or broker failure.
func (s *Service) GetBalance(ctx context.Context, userID int64) (BalanceSnapshot, error) {
	if userID <= 0 {
		return BalanceSnapshot{}, fmt.Errorf("get balance: invalid user id %d", userID)
	}

	logCtx := s.logg.WithUserID(ctx, userID)

	snapshot, found, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.logg.Warn(logCtx, "balance cache unreachable, serving placeholder")
	}
	if found {
		return *snapshot, nil
	}

	s.refreshAsync(userID)

	return BalanceSnapshot{
		UserID:     userID,
		UsdBalance: decimal.Zero,
		BtcBalance: decimal.Zero,
	}, nil
}

// EvictBalance drops the cached entry for userID, typically when the
// user account itself is removed.
func (s *Service) EvictBalance(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("evict balance: invalid user id %d", userID)
	}
	if err := s.cache.Evict(ctx, userID); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithUserID(ctx, userID), "balance cache entry evicted")
	return nil
}

// refreshAsync fires a balance request without tying it to the read's
// context. A broker failure degrades to a stale or absent entry.
func (s *Service) refreshAsync(userID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := s.requester.RequestBalance(ctx, userID); err != nil {
			s.logg.Warn(s.logg.WithUserID(ctx, userID), "balance refresh request failed")
		}
	}()
}
