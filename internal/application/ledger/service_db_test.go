package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	policyapp "github.com/streamcart/backend/internal/application/policy"
	"github.com/streamcart/backend/internal/domain/ledger"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
	"github.com/streamcart/backend/internal/infrastructure/persistence"
	"github.com/streamcart/backend/internal/infrastructure/persistence/models"
)

// newServiceOverDB wires the service to real gorm repositories over an
// in-memory database so repository error conventions are exercised, not
// mocked.
func newServiceOverDB(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.AccountModel{}, &models.LedgerTransactionModel{}, &models.LedgerEntryModel{},
		&models.IdempotencyKeyModel{},
		&models.PolicyModel{}, &models.RuleModel{},
		&models.ApprovalModel{}, &models.IncidentModel{},
	))

	governor := policyapp.NewGovernor(
		persistence.NewGormPolicyRepository(db),
		persistence.NewGormApprovalRepository(db),
		persistence.NewGormIncidentRepository(db),
		time.Hour, zap.NewNop())
	return NewService(
		persistence.NewGormAccountRepository(db),
		persistence.NewGormTransactionRepository(db),
		persistence.NewGormIdempotencyStore(db),
		governor, zap.NewNop())
}

func TestService_AgainstDatabase(t *testing.T) {
	svc := newServiceOverDB(t)
	ctx := context.Background()

	cash, err := svc.CreateAccount(ctx, CreateAccountRequest{
		Code: "cash.usd", Name: "Cash", Type: ledger.AccountTypeAsset, Currency: valueobject.USD,
	})
	require.NoError(t, err)

	payable, err := svc.CreateAccount(ctx, CreateAccountRequest{
		Code: "creator.payable", Name: "Creator payable", Type: ledger.AccountTypeLiability, Currency: valueobject.USD,
	})
	require.NoError(t, err)

	t.Run("duplicate account code is rejected", func(t *testing.T) {
		_, err := svc.CreateAccount(ctx, CreateAccountRequest{
			Code: "cash.usd", Name: "Cash again", Type: ledger.AccountTypeAsset, Currency: valueobject.USD,
		})
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "ACCOUNT_CODE_EXISTS", derr.Code)
	})

	t.Run("unknown account id maps to a domain error", func(t *testing.T) {
		_, err := svc.GetAccount(ctx, uuid.New())
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "ACCOUNT_NOT_FOUND", derr.Code)
	})

	t.Run("posting round-trips through the idempotency store", func(t *testing.T) {
		orderID := uuid.New()
		req := PostTransactionRequest{
			TxnID:          uuid.New(),
			IdempotencyKey: "order-settlement-1",
			Description:    "order settlement",
			Entries: []EntryInput{
				{AccountID: cash.ID, AmountCents: 5000, Currency: valueobject.USD,
					SourceType: ledger.SourceTypeOrder, SourceID: orderID, Memo: "order sale"},
				{AccountID: payable.ID, AmountCents: -5000, Currency: valueobject.USD,
					SourceType: ledger.SourceTypeOrder, SourceID: orderID, Memo: "creator earnings"},
			},
		}

		first, err := svc.PostTransaction(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, first.Transaction)
		assert.False(t, first.Deduplicated)

		replay, err := svc.PostTransaction(ctx, req)
		require.NoError(t, err)
		assert.True(t, replay.Deduplicated)
	})
}
