package users

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jackvaisey/user-service/pkg/db/models"
	"github.com/jackvaisey/user-service/pkg/enums"
	svcerrors "github.com/jackvaisey/user-service/pkg/errors"
	"github.com/jackvaisey/user-service/pkg/logger"
	"github.com/jackvaisey/user-service/pkg/outbox"
	"github.com/jackvaisey/user-service/pkg/outbox/payloads"
)

// New accounts start with a 1000 USD paper balance; the wallet service
// applies it when it acts on the creation event.
var initialWalletBalance = decimal.NewFromInt(1000)

type recordStore interface {
	CreateTx(tx *gorm.DB, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PasswordHasher abstracts credential hashing; the concrete scheme
// lives with the deployment, not here.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AuthClient issues session tokens. Token format and validation belong
// to the remote auth service.
type AuthClient interface {
	IssueToken(ctx context.Context, userID int64) (string, error)
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateInput replaces name and email; an empty password keeps the
// stored hash.
type UpdateInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

type ServiceParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Records recordStore
	Hasher  PasswordHasher
	Auth    AuthClient
	Events  eventEmitter
}

// Service owns user registration. The user row and its wallet creation
// event commit in one transaction, so either both exist or neither.
type Service struct {
	logg     *logger.Logger
	db       txRunner
	records  recordStore
	hasher   PasswordHasher
	auth     AuthClient
	events   eventEmitter
	validate *validator.Validate
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("users service requires a logger")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("users service requires a database client")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("users service requires a record store")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("users service requires a password hasher")
	}
	if params.Auth == nil {
		return nil, fmt.Errorf("users service requires an auth client")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("users service requires an event emitter")
	}
	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		records:  params.Records,
		hasher:   params.Hasher,
		auth:     params.Auth,
		events:   params.Events,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Register creates the user and queues the wallet creation event
// atomically. A failure in either rolls back both.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, svcerrors.Wrap(svcerrors.CodeValidation, err, "invalid registration input")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.records.CreateTx(tx, user); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventWalletCreationRequested,
			AggregateID: user.ID,
			Version:     1,
			Data: payloads.WalletCreationRequested{
				UserID:         user.ID,
				InitialBalance: initialWalletBalance,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID), "user registered")
	return user, nil
}

// Login verifies credentials and delegates token issuance to the auth
// service. Wrong email and wrong password are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.records.FindByEmail(ctx, email)
	if err != nil {
		if svcerrors.CodeOf(err) == svcerrors.CodeNotFound {
			return "", svcerrors.New(svcerrors.CodeValidation, "invalid credentials")
		}
		return "", err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return "", svcerrors.New(svcerrors.CodeValidation, "invalid credentials")
	}

	token, err := s.auth.IssueToken(ctx, user.ID)
	if err != nil {
		return "", svcerrors.Wrap(svcerrors.CodeDependency, err, "auth service unavailable")
	}
	return token, nil
}

// Update overwrites the user's name and email, and rehashes the
// password when a new one is supplied.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*models.User, error) {
	if id <= 0 {
		return nil, svcerrors.New(svcerrors.CodeValidation, "invalid user id")
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, svcerrors.Wrap(svcerrors.CodeValidation, err, "invalid update input")
	}

	user, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = input.Name
	user.Email = input.Email
	if input.Password != "" {
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.records.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID), "user updated")
	return user, nil
}

// Delete removes the user record. The caller is responsible for
// dropping any cached balance for the id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return svcerrors.New(svcerrors.CodeValidation, "invalid user id")
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithUserID(ctx, id), "user deleted")
	return nil
}

// GetUser returns the stored user record.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, svcerrors.New(svcerrors.CodeValidation, "invalid user id")
	}
	return s.records.FindByID(ctx, id)
}
