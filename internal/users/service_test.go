package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jackvaisey/user-service/pkg/config"
	"github.com/jackvaisey/user-service/pkg/db"
	"github.com/jackvaisey/user-service/pkg/db/models"
	svcerrors "github.com/jackvaisey/user-service/pkg/errors"
	"github.com/jackvaisey/user-service/pkg/logger"
	"github.com/jackvaisey/user-service/pkg/outbox"
	"github.com/jackvaisey/user-service/pkg/outbox/payloads"
)

func setupUsersTestDB(t *testing.T) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	client, err := db.New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: dsn}, nil)
	require.NoError(t, err)

	usersTable := `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	emailIndex := `CREATE UNIQUE INDEX IF NOT EXISTS ux_users_email ON users (email);`
	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  aggregate_id INTEGER NOT NULL,
  event_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  processed INTEGER NOT NULL DEFAULT 0,
  processed_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, client.DB().Exec(usersTable).Error)
	require.NoError(t, client.DB().Exec(emailIndex).Error)
	require.NoError(t, client.DB().Exec(outboxEvents).Error)
	return client
}

func newTestUsersService(t *testing.T, client *db.Client, events eventEmitter) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "users-test", Output: io.Discard})
	if events == nil {
		events = outbox.NewService(outbox.NewRepository(client.DB()), logg)
	}
	svc, err := NewService(ServiceParams{
		Logger:  logg,
		DB:      client,
		Records: NewRepository(client),
		Hasher:  fakeHasher{},
		Auth:    fakeAuth{},
		Events:  events,
	})
	require.NoError(t, err)
	return svc
}

func registerInput(email string) RegisterInput {
	return RegisterInput{Name: "Jack", Email: email, Password: "s3cret-pass"}
}

func TestRegisterCommitsUserAndEventTogether(t *testing.T) {
	client := setupUsersTestDB(t)
	svc := newTestUsersService(t, client, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput("jack@example.com"))
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.Equal(t, "hashed:s3cret-pass", user.PasswordHash)

	var events []models.OutboxEvent
	require.NoError(t, client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, user.ID, events[0].AggregateID)
	require.False(t, events[0].Processed)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.WalletCreationRequested
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	require.Equal(t, user.ID, payload.UserID)
	require.True(t, payload.InitialBalance.Equal(decimal.NewFromInt(1000)))
}

func TestRegisterRollsBackUserWhenEmitFails(t *testing.T) {
	client := setupUsersTestDB(t)
	svc := newTestUsersService(t, client, failingEmitter{})

	_, err := svc.Register(context.Background(), registerInput("jack@example.com"))
	require.Error(t, err)

	var userCount int64
	require.NoError(t, client.DB().Model(&models.User{}).Count(&userCount).Error)
	require.Zero(t, userCount, "user row must roll back with its event")
}

func TestRegisterDuplicateEmailLeavesNoExtraEvent(t *testing.T) {
	client := setupUsersTestDB(t)
	svc := newTestUsersService(t, client, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("jack@example.com"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerInput("jack@example.com"))
	require.Error(t, err)
	require.Equal(t, svcerrors.CodeConflict, svcerrors.CodeOf(err))

	var eventCount int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&eventCount).Error)
	require.Equal(t, int64(1), eventCount)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	client := setupUsersTestDB(t)
	svc := newTestUsersService(t, client, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Jack", Email: "not-an-email", Password: "s3cret-pass"})
	require.Error(t, err)
	require.Equal(t, svcerrors.CodeValidation, svcerrors.CodeOf(err))
}

func TestUpdateChangesFieldsAndRehashesPassword(t *testing.T) {
	client := setupUsersTestDB(t)
	svc := newTestUsersService(t, client, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput("jack@example.com"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, user.ID, UpdateInput{
		Name:     "Jack V",
		Email:    "jack.v@example.com",
		Password: "n3w-s3cret-pass",
	})
	require.NoError(t, err)
	require.Equal(t, "Jack V", updated.Name)
	require.Equal(t, "jack.v@example.com", updated.Email)
	require.Equal(t, "hashed:n3w-s3cret-pass", updated.PasswordHash)

	// the new credentials work, the old ones do not
	_, err = svc.Login(ctx, "jack.v@example.com", "n3w-s3cret-pass")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "jack.v@example.com", "s3cret-pass")
	require.Error(t, err)
}

func TestUpdateWithoutPasswordKeepsHash(t *testing.T) {
	client := setupUsersTestDB(t)
	svc := newTestUsersService(t, client, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput("jack@example.com"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, user.ID, UpdateInput{Name: "Jack V", Email: "jack@example.com"})
	require.NoError(t, err)
	require.Equal(t, "hashed:s3cret-pass", updated.PasswordHash)
}

func TestUpdateRejectsTakenEmail(t *testing.T) {
	client := setupUsersTestDB(t)
	svc := newTestUsersService(t, client, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("first@example.com"))
	require.NoError(t, err)
	second, err := svc.Register(ctx, registerInput("second@example.com"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, second.ID, UpdateInput{Name: "Jack", Email: "first@example.com"})
	require.Error(t, err)
	require.Equal(t, svcerrors.CodeConflict, svcerrors.CodeOf(err))
}

func TestDeleteRemovesUser(t *testing.T) {
	client := setupUsersTestDB(t)
	svc := newTestUsersService(t, client, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput("jack@example.com"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID))

	_, err = svc.GetUser(ctx, user.ID)
	require.Error(t, err)
	require.Equal(t, svcerrors.CodeNotFound, svcerrors.CodeOf(err))

	err = svc.Delete(ctx, user.ID)
	require.Error(t, err)
	require.Equal(t, svcerrors.CodeNotFound, svcerrors.CodeOf(err))
}

func TestLoginIssuesToken(t *testing.T) {
	client := setupUsersTestDB(t)
	svc := newTestUsersService(t, client, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("jack@example.com"))
	require.NoError(t, err)

	token, err := svc.Login(ctx, "jack@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, "token-1", token)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	client := setupUsersTestDB(t)
	svc := newTestUsersService(t, client, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("jack@example.com"))
	require.NoError(t, err)

	_, err = svc.Login(ctx, "jack@example.com", "wrong-pass")
	require.Error(t, err)
	require.Equal(t, svcerrors.CodeValidation, svcerrors.CodeOf(err))

	_, err = svc.Login(ctx, "nobody@example.com", "s3cret-pass")
	require.Error(t, err)
	require.Equal(t, svcerrors.CodeValidation, svcerrors.CodeOf(err))
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("password mismatch")
	}
	return nil
}

type fakeAuth struct{}

func (fakeAuth) IssueToken(ctx context.Context, userID int64) (string, error) {
	return "token-1", nil
}

type failingEmitter struct{}

func (failingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return errors.New("emit failed")
}
