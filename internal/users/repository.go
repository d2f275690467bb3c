package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jackvaisey/user-service/pkg/db"
	"github.com/jackvaisey/user-service/pkg/db/models"
	svcerrors "github.com/jackvaisey/user-service/pkg/errors"
)

// Repository is the keyed record store for user rows.
type Repository struct {
	client *db.Client
}

func NewRepository(client *db.Client) *Repository {
	return &Repository{client: client}
}

// CreateTx inserts the user inside tx so the caller can commit it
// together with its outbox event.
func (r *Repository) CreateTx(tx *gorm.DB, user *models.User) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if err := tx.Create(user).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return svcerrors.Wrap(svcerrors.CodeConflict, err, fmt.Sprintf("email %s already registered", user.Email))
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.client.DB().WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcerrors.New(svcerrors.CodeNotFound, fmt.Sprintf("user %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return &user, nil
}

// Update persists changed fields on an existing row.
func (r *Repository) Update(ctx context.Context, user *models.User) error {
	if err := r.client.DB().WithContext(ctx).Save(user).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return svcerrors.Wrap(svcerrors.CodeConflict, err, fmt.Sprintf("email %s already registered", user.Email))
		}
		return fmt.Errorf("update user %d: %w", user.ID, err)
	}
	return nil
}

// Delete removes the user row. Deleting a missing id reports not found so
// the caller can answer 404 instead of silently succeeding.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result := r.client.DB().WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete user %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return svcerrors.New(svcerrors.CodeNotFound, fmt.Sprintf("user %d not found", id))
	}
	return nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.client.DB().WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcerrors.New(svcerrors.CodeNotFound, "no user with that email")
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}
