package wallet

import (
	"github.com/shopspring/decimal"
)

// BalanceRequestMessage asks the wallet service for a user's current
// balances. ReplyTo on the AMQP envelope tells it where to answer.
type BalanceRequestMessage struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

// BalanceResponseMessage is the wallet service's answer. Balances are
// point-in-time snapshots, not deltas, so replaying one is harmless.
// Both amounts are pointers: an absent field must read as absent, not as
// zero, or a truncated response would overwrite a real cached balance.
type BalanceResponseMessage struct {
	UserID     int64            `json:"userId" validate:"required,gt=0"`
	UsdBalance *decimal.Decimal `json:"usdBalance" validate:"required"`
	BtcBalance *decimal.Decimal `json:"btcBalance" validate:"required"`
}
