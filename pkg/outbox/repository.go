package outbox

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jackvaisey/user-service/pkg/db/models"
)

// Repository owns the outbox_events table. Inserts happen inside the caller's
// transaction; the processed flag is written only by the relay.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends an event row inside tx. The append shares the caller's
// atomic unit of work: if the transaction rolls back, no event row survives.
func (r *Repository) Insert(tx *gorm.DB, event *models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(event).Error
}

// FetchUnprocessed returns up to limit pending events that still have publish
// attempts left, oldest first. Consumers must not rely on this order.
func (r *Repository) FetchUnprocessed(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.Where("processed = ? AND attempt_count < ?", false, maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkProcessed flags the event as handed to the broker. Idempotent: a second
// call matches zero rows and leaves the original processed_at untouched.
func (r *Repository) MarkProcessed(id int64, at time.Time) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": at,
		}).Error
}

// MarkFailed records a message-level publish failure; the row stays eligible
// for the next sweep until the attempt budget runs out.
func (r *Repository) MarkFailed(id int64, cause error) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    cause.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkDeferred records a broker outage without touching attempt_count. The
// row stays fully eligible, so an outage of any length cannot push an event
// toward the dead-letter queue.
func (r *Repository) MarkDeferred(id int64, cause error) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Update("last_error", cause.Error()).Error
}

// MarkTerminalTx removes the event from the relay's working set. It runs in
// the same transaction as the DLQ insert so an event is never lost between
// the two writes.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id int64, cause error, terminalAttempts int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    cause.Error(),
			"attempt_count": terminalAttempts,
		}).Error
}
