//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/internal/shared/db"
)

func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ledger_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{"test": "ledger-store", "test-name": t.Name()}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = db.MigrateUp(conn)
	require.NoError(t, err)
	return NewPostgres(conn)
}

func TestPostgresRoundTrip(t *testing.T) {
	p := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	acc := domain.Account{UserID: "u1", Balance: 8000, Currency: "KHR"}
	require.NoError(t, p.SaveAccount(ctx, acc, domain.LedgerEntry{UserID: "u1", Op: domain.OpReserve, Amount: 2000, BalanceAfter: 8000, Ref: "w1", At: now}))

	ev := domain.Event{
		ID:        "m1",
		Title:     "Crown vs Visakha",
		Category:  domain.CategorySports,
		Teams:     domain.Teams{Home: domain.Team{Name: "Crown"}, Away: domain.Team{Name: "Visakha"}},
		Status:    domain.EventFinished,
		StartTime: now,
		EndTime:   &now,
		Options:   []domain.Option{{Type: domain.OptionWin, Name: "home-win", Odds: 2.5, Active: true, MinBet: 1000, MaxBet: 100000}},
		Result:    &domain.Outcome{Winner: domain.WinnerHome, Score: domain.Score{Home: 2, Away: 1}},
		Stats:     domain.Stats{WagerCount: 1, TotalStaked: 2000, BySide: map[domain.OptionType]domain.SideTotals{domain.OptionWin: {Count: 1, Staked: 2000}}},
	}
	require.NoError(t, p.SaveEvent(ctx, ev))

	w := domain.Wager{
		ID: "w1", UserID: "u1", EventID: "m1",
		Option:       domain.OptionSnapshot{Type: domain.OptionWin, Name: "home-win", Odds: 2.5},
		Amount:       2000,
		PotentialWin: 5000,
		Status:       domain.WagerPending,
		PlacedAt:     now,
	}
	require.NoError(t, p.SaveWager(ctx, w))
	w.Status = domain.WagerWon
	w.ActualWin = 5000
	w.SettledAt = &now
	require.NoError(t, p.SaveWager(ctx, w))

	snap, err := Load(ctx, p)
	require.NoError(t, err)

	require.Len(t, snap.Accounts, 1)
	assert.Equal(t, acc, snap.Accounts[0])

	require.Len(t, snap.Events, 1)
	got := snap.Events[0]
	assert.Equal(t, ev.Options, got.Options)
	assert.Equal(t, *ev.Result, *got.Result)
	assert.Equal(t, ev.Stats, got.Stats)

	require.Len(t, snap.Wagers, 1)
	assert.Equal(t, domain.WagerWon, snap.Wagers[0].Status)
	assert.Equal(t, int64(5000), snap.Wagers[0].ActualWin)
	assert.Equal(t, 2.5, snap.Wagers[0].Option.Odds)
	require.NotNil(t, snap.Wagers[0].SettledAt)
}

func TestMigrationsRollBackAndReapply(t *testing.T) {
	p := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, db.MigrateDown(p.db, 1))
	_, err := p.LoadAccounts(ctx)
	assert.Error(t, err)

	v, err := db.MigrateUp(p.db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	accs, err := p.LoadAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accs)
}
