package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jackvaisey/user-service/pkg/db/models"
	"github.com/jackvaisey/user-service/pkg/enums"
	"github.com/jackvaisey/user-service/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	conn := setupOutboxTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	tx := conn.Begin()
	err := svc.Emit(context.Background(), tx, DomainEvent{
		EventType:   enums.EventWalletCreationRequested,
		AggregateID: 42,
		Version:     1,
		Data: payloads.WalletCreationRequested{
			UserID:         42,
			InitialBalance: decimal.NewFromFloat(1000.00),
		},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit().Error)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	require.EqualValues(t, 42, row.AggregateID)
	require.False(t, row.Processed)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.NotEmpty(t, envelope.EventID)
	require.Equal(t, 1, envelope.Version)
	require.False(t, envelope.OccurredAt.IsZero())

	var payload payloads.WalletCreationRequested
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	require.EqualValues(t, 42, payload.UserID)
	require.True(t, payload.InitialBalance.Equal(decimal.NewFromFloat(1000.00)))
}

func TestEmitRejectsMissingTransaction(t *testing.T) {
	conn := setupOutboxTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{
		EventType:   enums.EventWalletCreationRequested,
		AggregateID: 1,
	})
	require.Error(t, err)
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	conn := setupOutboxTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	tx := conn.Begin()
	defer tx.Rollback()
	err := svc.Emit(context.Background(), tx, DomainEvent{
		EventType:   enums.OutboxEventType("mystery"),
		AggregateID: 1,
	})
	require.Error(t, err)
}
