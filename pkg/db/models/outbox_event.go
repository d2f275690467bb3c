package models

import (
	"encoding/json"
	"time"

	"github.com/jackvaisey/user-service/pkg/enums"
)

// OutboxEvent is an append-only row recorded in the same transaction as the
// state change it describes. Once committed, only the relay touches the
// processed flag.
type OutboxEvent struct {
	ID           int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	AggregateID  int64                 `gorm:"column:aggregate_id;not null;index"`
	EventType    enums.OutboxEventType `gorm:"column:event_type;not null;index"`
	Payload      json.RawMessage       `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	Processed    bool                  `gorm:"column:processed;not null;default:false;index"`
	ProcessedAt  *time.Time            `gorm:"column:processed_at"`
	AttemptCount int                   `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string               `gorm:"column:last_error"`
}

// TableName pins the table name to the original outbox schema.
func (OutboxEvent) TableName() string {
	return "outbox_events"
}
