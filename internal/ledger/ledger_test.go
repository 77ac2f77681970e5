package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mocks "github.com/sheikh-saqib/deskbank/internal/interfaces/mocks"
	"github.com/sheikh-saqib/deskbank/internal/ledger"
	"github.com/sheikh-saqib/deskbank/internal/models"
	"github.com/sheikh-saqib/deskbank/internal/models/events"
	"github.com/sheikh-saqib/deskbank/internal/storage"
	"github.com/sheikh-saqib/deskbank/internal/storage/memory"
)

type flatPolicy struct {
	limit decimal.Decimal
}

func (p flatPolicy) DailyLimit(models.AccountType) decimal.Decimal     { return p.limit }
func (p flatPolicy) MinimumBalance(models.AccountType) decimal.Decimal { return decimal.Zero }

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newLedger(t *testing.T, opts ...ledger.Option) (*ledger.Ledger, *storage.AccountRepository) {
	t.Helper()
	repo := storage.NewAccountRepository(memory.NewSnapshotStore())
	return ledger.NewLedger(repo, nil, flatPolicy{limit: amt("1000")}, opts...), repo
}

func open(t *testing.T, repo *storage.AccountRepository, initial string) *models.Account {
	t.Helper()
	a, err := repo.CreateAccount(context.Background(), "owner", models.Savings, amt(initial))
	require.NoError(t, err)
	return a
}

func TestLedger_Deposit(t *testing.T) {
	l, repo := newLedger(t)
	a := open(t, repo, "0")

	rec, err := l.MakeDeposit(context.Background(), a.Number(), amt("100.00"), "")

	require.NoError(t, err)
	assert.Equal(t, models.KindDeposit, rec.Kind())
	assert.True(t, a.Balance().Equal(amt("100")))
	assert.Equal(t, 1, a.TransactionCount())
}

func TestLedger_WithdrawInsufficientFunds(t *testing.T) {
	l, repo := newLedger(t)
	a := open(t, repo, "100")

	_, err := l.MakeWithdrawal(context.Background(), a.Number(), amt("150"), "")

	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.True(t, a.Balance().Equal(amt("100")))
	assert.Equal(t, 1, a.TransactionCount())
}

func TestLedger_Transfer(t *testing.T) {
	l, repo := newLedger(t)
	a := open(t, repo, "500")
	b := open(t, repo, "50")

	rec, err := l.TransferFunds(context.Background(), a.Number(), b.Number(), amt("200"), "")

	require.NoError(t, err)
	assert.Equal(t, models.KindTransferOut, rec.Kind())
	assert.True(t, a.Balance().Equal(amt("300")))
	assert.True(t, b.Balance().Equal(amt("250")))
	assert.Equal(t, models.KindTransferOut, a.TransactionHistory(1)[0].Kind())
	assert.Equal(t, models.KindTransferIn, b.TransactionHistory(1)[0].Kind())
	assert.Empty(t, l.Unreconciled())
}

func TestLedger_TransferFailures(t *testing.T) {
	ctx := context.Background()
	l, repo := newLedger(t)
	a := open(t, repo, "500")
	b := open(t, repo, "50")
	closed := open(t, repo, "10")
	require.NoError(t, repo.DeactivateAccount(ctx, closed.Number()))

	tests := []struct {
		name    string
		from    string
		to      string
		amount  string
		wantErr error
	}{
		{"same account", a.Number(), a.Number(), "10", models.ErrSameAccount},
		{"unknown source", "00000000", b.Number(), "10", models.ErrAccountNotFound},
		{"unknown destination", a.Number(), "00000000", "10", models.ErrAccountNotFound},
		{"inactive source", closed.Number(), a.Number(), "1", models.ErrInactiveAccount},
		{"inactive destination", a.Number(), closed.Number(), "1", models.ErrInactiveAccount},
		{"zero", a.Number(), b.Number(), "0", models.ErrInvalidAmount},
		{"overdraw", b.Number(), a.Number(), "50.01", models.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.TransferFunds(ctx, tt.from, tt.to, amt(tt.amount), "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.True(t, a.Balance().Equal(amt("500")))
	assert.True(t, b.Balance().Equal(amt("50")))
	assert.True(t, closed.Balance().Equal(amt("10")))
}

func TestLedger_InactiveDeposit(t *testing.T) {
	ctx := context.Background()
	l, repo := newLedger(t)
	a := open(t, repo, "20")
	require.NoError(t, repo.DeactivateAccount(ctx, a.Number()))

	_, err := l.MakeDeposit(ctx, a.Number(), amt("10"), "")

	assert.ErrorIs(t, err, models.ErrInactiveAccount)
	assert.True(t, a.Balance().Equal(amt("20")))
}

func TestLedger_InvalidWithdrawal(t *testing.T) {
	l, repo := newLedger(t)
	a := open(t, repo, "20")

	for _, s := range []string{"-5.00", "0.00"} {
		_, err := l.MakeWithdrawal(context.Background(), a.Number(), amt(s), "")
		assert.ErrorIs(t, err, models.ErrInvalidAmount, s)
	}
}

func TestLedger_UnknownAccount(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.MakeDeposit(context.Background(), "00000000", amt("1"), "")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	_, err = l.GetAccountBalance("00000000")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	_, err = l.GetTransactionHistory("00000000", 5)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestLedger_DailyLimitAdvisory(t *testing.T) {
	ctx := context.Background()
	l, repo := newLedger(t)
	a := open(t, repo, "5000")
	b := open(t, repo, "0")

	_, err := l.MakeWithdrawal(ctx, a.Number(), amt("600"), "")
	require.NoError(t, err)
	_, err = l.TransferFunds(ctx, a.Number(), b.Number(), amt("300"), "")
	require.NoError(t, err)

	total, err := l.DailyTotal(a.Number())
	require.NoError(t, err)
	assert.True(t, total.Equal(amt("900")), total.String())

	ok, err := l.CheckDailyLimit(a.Number(), amt("100"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.CheckDailyLimit(a.Number(), amt("100.01"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Without enforcement the limit does not block.
	_, err = l.MakeWithdrawal(ctx, a.Number(), amt("500"), "")
	assert.NoError(t, err)

	// Incoming money does not count.
	total, err = l.DailyTotal(b.Number())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestLedger_DailyLimitEnforced(t *testing.T) {
	ctx := context.Background()
	l, repo := newLedger(t, ledger.WithDailyLimitEnforcement(true))
	a := open(t, repo, "5000")
	b := open(t, repo, "0")

	_, err := l.MakeWithdrawal(ctx, a.Number(), amt("1000"), "")
	require.NoError(t, err)

	_, err = l.MakeWithdrawal(ctx, a.Number(), amt("0.01"), "")
	assert.ErrorIs(t, err, models.ErrDailyLimitExceeded)

	_, err = l.TransferFunds(ctx, a.Number(), b.Number(), amt("1"), "")
	assert.ErrorIs(t, err, models.ErrDailyLimitExceeded)

	assert.True(t, a.Balance().Equal(amt("4000")))
	assert.True(t, b.Balance().IsZero())
}

func TestLedger_DailyLimitResetsNextDay(t *testing.T) {
	ctx := context.Background()
	tomorrow := time.Now().Add(24 * time.Hour)
	l, repo := newLedger(t, ledger.WithClock(func() time.Time { return tomorrow }))
	a := open(t, repo, "5000")

	_, err := l.MakeWithdrawal(ctx, a.Number(), amt("1000"), "")
	require.NoError(t, err)

	ok, err := l.CheckDailyLimit(a.Number(), amt("1000"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLedger_PublishesEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	publisher := mocks.NewMockEventPublisher(ctrl)
	repo := storage.NewAccountRepository(memory.NewSnapshotStore())
	l := ledger.NewLedger(repo, publisher, flatPolicy{limit: amt("1000")}, ledger.WithTopic("ledger.tx"))
	a := open(t, repo, "100")
	b := open(t, repo, "0")

	var got []events.TransactionCompleted
	publisher.EXPECT().
		Publish(gomock.Any(), "ledger.tx", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, event any) error {
			got = append(got, event.(events.TransactionCompleted))
			return nil
		}).
		Times(3)

	_, err := l.MakeDeposit(ctx, a.Number(), amt("10"), "")
	require.NoError(t, err)
	_, err = l.MakeWithdrawal(ctx, a.Number(), amt("5"), "")
	require.NoError(t, err)
	rec, err := l.TransferFunds(ctx, a.Number(), b.Number(), amt("20"), "rent")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "Deposit", got[0].Type)
	assert.Equal(t, a.Number(), got[0].ToAccount)
	assert.Empty(t, got[0].FromAccount)
	assert.Equal(t, a.Number(), got[1].FromAccount)
	assert.Empty(t, got[1].ToAccount)
	assert.Equal(t, rec.ID(), got[2].TransactionID)
	assert.Equal(t, b.Number(), got[2].ToAccount)
	assert.Equal(t, "rent", got[2].Description)
	assert.True(t, got[2].Amount.Equal(amt("20")))
}

func TestLedger_FailedMovementPublishesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := mocks.NewMockEventPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	repo := storage.NewAccountRepository(memory.NewSnapshotStore())
	l := ledger.NewLedger(repo, publisher, flatPolicy{limit: amt("1000")})
	a := open(t, repo, "10")

	_, err := l.MakeWithdrawal(context.Background(), a.Number(), amt("11"), "")
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
}

func TestLedger_PublishErrorDoesNotFailMovement(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := mocks.NewMockEventPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	repo := storage.NewAccountRepository(memory.NewSnapshotStore())
	l := ledger.NewLedger(repo, publisher, flatPolicy{limit: amt("1000")})
	a := open(t, repo, "0")

	_, err := l.MakeDeposit(context.Background(), a.Number(), amt("10"), "")

	require.NoError(t, err)
	assert.True(t, a.Balance().Equal(amt("10")))
}

func TestLedger_ConcurrentTransfersConserveTotal(t *testing.T) {
	ctx := context.Background()
	l, repo := newLedger(t)
	a := open(t, repo, "1000")
	b := open(t, repo, "1000")
	c := open(t, repo, "1000")
	accounts := []*models.Account{a, b, c}

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := accounts[i%3]
			to := accounts[(i+1)%3]
			_, err := l.TransferFunds(ctx, from.Number(), to.Number(), amt("7.77"), "")
			if err != nil {
				assert.ErrorIs(t, err, models.ErrInsufficientFunds)
			}
		}(i)
	}
	wg.Wait()

	assert.True(t, repo.TotalBalance().Equal(amt("3000")), repo.TotalBalance().String())
	assert.Empty(t, l.Unreconciled())
}

func TestLedger_LedgerEntriesMatchBalance(t *testing.T) {
	ctx := context.Background()
	l, repo := newLedger(t)
	a := open(t, repo, "100")
	b := open(t, repo, "0")

	_, err := l.TransferFunds(ctx, a.Number(), b.Number(), amt("40.50"), "")
	require.NoError(t, err)

	entries, err := l.GetLedgerEntries(a.Number())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, models.SumEntries(entries).Equal(a.Balance()))
	assert.True(t, entries[1].Amount.Equal(amt("-40.50")))
}

func TestLedger_ValidateTransferAmount(t *testing.T) {
	l, _ := newLedger(t)

	assert.True(t, l.ValidateTransferAmount(amt("10.25")))
	assert.False(t, l.ValidateTransferAmount(amt("10.255")))
	assert.False(t, l.ValidateTransferAmount(amt("0")))
	assert.True(t, l.TransferFee(amt("100"), models.Business).IsZero())
}
