package payloads

import "github.com/shopspring/decimal"

// WalletCreationRequested asks the wallet service to open a wallet with an
// initial deposit. Consumers must treat replays as a no-op for an existing
// wallet; delivery is at-least-once.
type WalletCreationRequested struct {
	UserID         int64           `json:"userId"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}
