package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jackvaisey/user-service/pkg/config"
	"github.com/jackvaisey/user-service/pkg/logger"
	"github.com/jackvaisey/user-service/pkg/redis"
)

// BalanceSnapshot is the cached view of one user's wallet balances.
type BalanceSnapshot struct {
	UserID     int64           `json:"userId"`
	UsdBalance decimal.Decimal `json:"usdBalance"`
	BtcBalance decimal.Decimal `json:"btcBalance"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// BalanceCache stores the last known balance per user. A missing entry
// means "no response received yet" and is never an error.
type BalanceCache struct {
	kv     redis.KV
	prefix string
	ttl    time.Duration
	logg   *logger.Logger
}

func NewBalanceCache(kv redis.KV, cfg config.WalletConfig, logg *logger.Logger) (*BalanceCache, error) {
	if kv == nil {
		return nil, fmt.Errorf("balance cache requires a kv store")
	}
	if logg == nil {
		return nil, fmt.Errorf("balance cache requires a logger")
	}
	return &BalanceCache{
		kv:     kv,
		prefix: cfg.CachePrefix,
		ttl:    cfg.CacheTTL,
		logg:   logg,
	}, nil
}

// Get returns the cached snapshot for userID. found=false is a normal
// outcome, not a failure.
func (c *BalanceCache) Get(ctx context.Context, userID int64) (*BalanceSnapshot, bool, error) {
	raw, err := c.kv.Get(ctx, c.kv.BalanceKey(c.prefix, userID))
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read balance cache for user %d: %w", userID, err)
	}

	var snapshot BalanceSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		// A corrupt entry reads as a miss; the next response overwrites it.
		c.logg.Warn(c.logg.WithUserID(ctx, userID), "corrupt balance cache entry, treating as miss")
		return nil, false, nil
	}
	return &snapshot, true, nil
}

// Evict removes the entry for userID. Deleting an absent key is a no-op.
func (c *BalanceCache) Evict(ctx context.Context, userID int64) error {
	if err := c.kv.Del(ctx, c.kv.BalanceKey(c.prefix, userID)); err != nil {
		return fmt.Errorf("evict balance cache for user %d: %w", userID, err)
	}
	return nil
}

// Set unconditionally overwrites the entry for snapshot.UserID.
func (c *BalanceCache) Set(ctx context.Context, snapshot BalanceSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode balance snapshot for user %d: %w", snapshot.UserID, err)
	}
	key := c.kv.BalanceKey(c.prefix, snapshot.UserID)
	if err := c.kv.Set(ctx, key, raw, c.ttl); err != nil {
		return fmt.Errorf("write balance cache for user %d: %w", snapshot.UserID, err)
	}
	return nil
}
