package enums

import "fmt"

// OutboxEventType tags the schema of an outbox event payload.
type OutboxEventType string

const (
	EventWalletCreationRequested OutboxEventType = "wallet_creation_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventWalletCreationRequested,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
