package models

import (
	"encoding/json"
	"time"

	"github.com/jackvaisey/user-service/pkg/enums"
)

// OutboxDLQ captures terminal outbox failures for auditing and remediation.
// Rows land here instead of being retried forever when the payload itself is
// defective or the publish attempt budget is exhausted.
type OutboxDLQ struct {
	ID           int64                      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID      int64                      `gorm:"column:event_id;not null;index"`
	AggregateID  int64                      `gorm:"column:aggregate_id;not null"`
	EventType    enums.OutboxEventType      `gorm:"column:event_type;not null"`
	Payload      json.RawMessage            `gorm:"column:payload;type:jsonb;not null"`
	ErrorReason  enums.OutboxDLQErrorReason `gorm:"column:error_reason;not null"`
	ErrorMessage *string                    `gorm:"column:error_message"`
	AttemptCount int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt     time.Time                  `gorm:"column:failed_at"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string {
	return "outbox_dlq"
}
