package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackvaisey/user-service/pkg/config"
	"github.com/jackvaisey/user-service/pkg/logger"
)

type publisher interface {
	Publish(ctx context.Context, exchange, routingKey, replyTo string, body []byte) error
}

// Requester publishes balance queries to the wallet service. A request
// carries the reply queue name so the answer finds its way back.
type Requester struct {
	broker publisher
	cfg    config.WalletConfig
	logg   *logger.Logger
}

func NewRequester(broker publisher, cfg config.WalletConfig, logg *logger.Logger) (*Requester, error) {
	if broker == nil {
		return nil, fmt.Errorf("balance requester requires a broker")
	}
	if logg == nil {
		return nil, fmt.Errorf("balance requester requires a logger")
	}
	return &Requester{broker: broker, cfg: cfg, logg: logg}, nil
}

// RequestBalance hands a query to the broker and returns. There is no
// delivery guarantee past that hand-off; the response, if any, arrives
// on the reply queue and lands in the cache.
func (r *Requester) RequestBalance(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("request balance: invalid user id %d", userID)
	}

	body, err := json.Marshal(BalanceRequestMessage{UserID: userID})
	if err != nil {
		return fmt.Errorf("encode balance request for user %d: %w", userID, err)
	}

	err = r.broker.Publish(ctx, r.cfg.Exchange, r.cfg.BalanceRoutingKey, r.cfg.ReplyQueue, body)
	if err != nil {
		return fmt.Errorf("publish balance request for user %d: %w", userID, err)
	}

	r.logg.Info(r.logg.WithUserID(ctx, userID), "balance request published")
	return nil
}
