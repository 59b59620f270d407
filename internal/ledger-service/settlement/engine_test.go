package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/internal/ledger-service/odds"
	"github.com/radieske/livebet-ledger/internal/ledger-service/stats"
	"github.com/radieske/livebet-ledger/internal/ledger-service/wagers"
	"github.com/radieske/livebet-ledger/internal/ledger-service/wallet"
	"github.com/radieske/livebet-ledger/internal/shared/lockset"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

type capturePub struct {
	mu   sync.Mutex
	msgs map[string][]any
}

func (c *capturePub) Publish(channel, kind string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.msgs == nil {
		c.msgs = map[string][]any{}
	}
	c.msgs[channel+"|"+kind] = append(c.msgs[channel+"|"+kind], payload)
}

func (c *capturePub) get(channel, kind string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs[channel+"|"+kind]
}

type harness struct {
	wallet   *wallet.Ledger
	board    *odds.Board
	registry *wagers.Registry
	engine   *Engine
	pub      *capturePub
}

func newHarness(t *testing.T) harness {
	t.Helper()
	w := wallet.NewLedger(nil)
	b := odds.NewBoard(nil)
	tr := stats.NewTracker(b)
	locks := lockset.NewOrdered()
	pub := &capturePub{}
	reg := wagers.NewRegistry(wagers.Deps{Wallet: w, Board: b, Stats: tr, Locks: locks, Pub: pub})
	eng := NewEngine(Deps{Wallet: w, Board: b, Registry: reg, Stats: tr, Locks: locks, Pub: pub, Workers: 4})

	_, err := b.Create(domain.Event{
		ID:        "m1",
		Title:     "Crown vs Visakha",
		Category:  domain.CategorySports,
		Teams:     domain.Teams{Home: domain.Team{Name: "Crown"}, Away: domain.Team{Name: "Visakha"}},
		StartTime: time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC),
		Options: []domain.Option{
			{Type: domain.OptionWin, Name: "home-win", Odds: 2.5, Active: true},
			{Type: domain.OptionLose, Name: "away-win", Odds: 3.0, Active: true},
			{Type: domain.OptionOver, Name: "over-3", Odds: 1.9, Line: 3, Active: true},
			{Type: domain.OptionCustom, Name: "first-scorer", Odds: 6, Active: true},
		},
	})
	require.NoError(t, err)
	for _, u := range []string{"u1", "u2"} {
		_, err = w.Open(u, "KHR", 10000)
		require.NoError(t, err)
	}
	return harness{wallet: w, board: b, registry: reg, engine: eng, pub: pub}
}

func (h harness) place(t *testing.T, user string, opt domain.OptionType, name string, amount int64) domain.Wager {
	t.Helper()
	p, err := h.registry.Place(wagers.PlaceRequest{
		UserID:  user,
		EventID: "m1",
		Option:  domain.OptionRef{Type: opt, Name: name},
		Amount:  amount,
	})
	require.NoError(t, err)
	return p.Wager
}

func (h harness) balance(t *testing.T, user string) int64 {
	t.Helper()
	acc, err := h.wallet.Balance(user)
	require.NoError(t, err)
	return acc.Balance
}

var homeWins = domain.Outcome{Winner: domain.WinnerHome, Score: domain.Score{Home: 2, Away: 1}}

func TestHomeWinPaysOut(t *testing.T) {
	h := newHarness(t)
	w := h.place(t, "u1", domain.OptionWin, "home-win", 2000)
	assert.Equal(t, int64(5000), w.PotentialWin)
	assert.Equal(t, int64(8000), h.balance(t, "u1"))

	sum, err := h.engine.ReportResult(context.Background(), "m1", homeWins)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Won)
	assert.Equal(t, int64(5000), sum.PaidOut)

	got, err := h.registry.Lookup(w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WagerWon, got.Status)
	assert.Equal(t, int64(5000), got.ActualWin)
	assert.NotNil(t, got.SettledAt)
	assert.Equal(t, int64(13000), h.balance(t, "u1"))

	settled := h.pub.get("user:u1", events.KindWagerSettled)
	require.Len(t, settled, 1)
	assert.Equal(t, int64(13000), settled[0].(events.WagerSettled).NewBalance)
	assert.Len(t, h.pub.get("event:m1", events.KindEventStatus), 1)
}

func TestAwayWinLoses(t *testing.T) {
	h := newHarness(t)
	w := h.place(t, "u1", domain.OptionWin, "home-win", 2000)

	sum, err := h.engine.ReportResult(context.Background(), "m1", domain.Outcome{Winner: domain.WinnerAway, Score: domain.Score{Home: 0, Away: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Lost)

	got, err := h.registry.Lookup(w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WagerLost, got.Status)
	assert.Zero(t, got.ActualWin)
	assert.Equal(t, int64(8000), h.balance(t, "u1"))
}

func TestSettlementIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.place(t, "u1", domain.OptionWin, "home-win", 2000)
	h.place(t, "u2", domain.OptionLose, "away-win", 1000)

	first, err := h.engine.ReportResult(context.Background(), "m1", homeWins)
	require.NoError(t, err)
	b1, b2 := h.balance(t, "u1"), h.balance(t, "u2")

	second, err := h.engine.ReportResult(context.Background(), "m1", homeWins)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Won)
	assert.Equal(t, 1, first.Lost)
	assert.Zero(t, second.Won+second.Lost+second.Refunded)
	assert.Equal(t, b1, h.balance(t, "u1"))
	assert.Equal(t, b2, h.balance(t, "u2"))

	_, err = h.engine.ReportResult(context.Background(), "m1", domain.Outcome{Winner: domain.WinnerAway})
	assert.ErrorIs(t, err, domain.ErrResultConflict)
}

func TestPushRefundsAndUnresolvedStaysPending(t *testing.T) {
	h := newHarness(t)
	over := h.place(t, "u1", domain.OptionOver, "over-3", 1000)
	custom := h.place(t, "u2", domain.OptionCustom, "first-scorer", 1000)

	sum, err := h.engine.ReportResult(context.Background(), "m1", homeWins)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Refunded)
	assert.Equal(t, []string{custom.ID}, sum.Unresolved)

	got, err := h.registry.Lookup(over.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WagerRefunded, got.Status)
	assert.Equal(t, int64(10000), h.balance(t, "u1"))

	got, err = h.registry.Lookup(custom.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WagerPending, got.Status)
	assert.Equal(t, int64(9000), h.balance(t, "u2"))

	ev, err := h.board.Get("m1")
	require.NoError(t, err)
	assert.True(t, stats.SameWagerTotals(ev.Stats, stats.Recompute(h.registry.ForEvent("m1"))))
}

func TestFailedCreditLeavesWagerPending(t *testing.T) {
	h := newHarness(t)
	w := h.place(t, "u1", domain.OptionWin, "home-win", 2000)
	// conta some do wallet: o crédito falha
	h.engine.wallet = brokenWallet{h.wallet}

	sum, err := h.engine.ReportResult(context.Background(), "m1", homeWins)
	require.NoError(t, err)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, w.ID, sum.Failures[0].WagerID)

	got, err := h.registry.Lookup(w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WagerPending, got.Status)

	h.engine.wallet = h.wallet
	sum, err = h.engine.ReportResult(context.Background(), "m1", homeWins)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Won)
	assert.Equal(t, int64(13000), h.balance(t, "u1"))
}

type brokenWallet struct{ *wallet.Ledger }

func (brokenWallet) Credit(string, int64, string) (int64, error) { return 0, domain.ErrNotFound }

func TestVoidRefundsPending(t *testing.T) {
	h := newHarness(t)
	h.place(t, "u1", domain.OptionWin, "home-win", 2000)
	h.place(t, "u2", domain.OptionLose, "away-win", 3000)

	sum, err := h.engine.Void(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Refunded)
	assert.Equal(t, int64(10000), h.balance(t, "u1"))
	assert.Equal(t, int64(10000), h.balance(t, "u2"))

	ev, err := h.board.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, domain.EventCancelled, ev.Status)
	assert.Zero(t, ev.Stats.TotalStaked)

	_, err = h.engine.ReportResult(context.Background(), "m1", homeWins)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelAfterEventCancelled(t *testing.T) {
	h := newHarness(t)
	w := h.place(t, "u1", domain.OptionWin, "home-win", 2000)
	_, err := h.board.SetStatus("m1", domain.EventCancelled)
	require.NoError(t, err)

	c, err := h.registry.Cancel("u1", w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), c.Balance)

	ev, err := h.board.Get("m1")
	require.NoError(t, err)
	assert.Zero(t, ev.Stats.TotalStaked)
}

func TestConcurrentSettleAndCancel(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t)
		w := h.place(t, "u1", domain.OptionWin, "home-win", 2000)

		var wg sync.WaitGroup
		var cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.engine.ReportResult(context.Background(), "m1", homeWins)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = h.registry.Cancel("u1", w.ID)
		}()
		wg.Wait()

		got, err := h.registry.Lookup(w.ID)
		require.NoError(t, err)
		switch got.Status {
		case domain.WagerCancelled:
			assert.NoError(t, cancelErr)
			assert.Equal(t, int64(10000), h.balance(t, "u1"))
		case domain.WagerWon:
			assert.ErrorIs(t, cancelErr, domain.ErrAlreadySettled)
			assert.Equal(t, int64(13000), h.balance(t, "u1"))
		default:
			t.Fatalf("unexpected status %s", got.Status)
		}
	}
}

func TestCancelledContextStopsRun(t *testing.T) {
	h := newHarness(t)
	h.place(t, "u1", domain.OptionWin, "home-win", 2000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.ReportResult(ctx, "m1", homeWins)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, h.registry.PendingForEvent("m1"), 1)
}

func TestConcurrentPlaceAndReport(t *testing.T) {
	for i := 0; i < 30; i++ {
		h := newHarness(t)

		var wg sync.WaitGroup
		var placed wagers.Placement
		var placeErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.engine.ReportResult(context.Background(), "m1", homeWins)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			placed, placeErr = h.registry.Place(wagers.PlaceRequest{
				UserID:  "u1",
				EventID: "m1",
				Option:  domain.OptionRef{Type: domain.OptionWin, Name: "home-win"},
				Amount:  2000,
			})
		}()
		wg.Wait()

		ev, err := h.board.Get("m1")
		require.NoError(t, err)
		if placeErr != nil {
			assert.ErrorIs(t, placeErr, domain.ErrEventNotWagerable)
			assert.Equal(t, int64(10000), h.balance(t, "u1"))
			assert.Zero(t, ev.Stats.WagerCount)
			assert.Zero(t, ev.Stats.TotalStaked)
			assert.Empty(t, h.registry.ForEvent("m1"))
		} else {
			got, err := h.registry.Lookup(placed.Wager.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.WagerWon, got.Status)
			assert.Equal(t, int64(13000), h.balance(t, "u1"))
		}
		assert.True(t, stats.SameWagerTotals(ev.Stats, stats.Recompute(h.registry.ForEvent("m1"))))
	}
}

func TestSettleWagerRemediatesUnresolved(t *testing.T) {
	cases := []struct {
		name    string
		status  domain.WagerStatus
		balance int64
		staked  int64
	}{
		{"refund", domain.WagerRefunded, 10000, 0},
		{"won", domain.WagerWon, 15000, 1000},
		{"lost", domain.WagerLost, 9000, 1000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := newHarness(t)
			custom := h.place(t, "u2", domain.OptionCustom, "first-scorer", 1000)
			sum, err := h.engine.ReportResult(context.Background(), "m1", homeWins)
			require.NoError(t, err)
			require.Equal(t, []string{custom.ID}, sum.Unresolved)

			v, err := VerdictFor(c.status)
			require.NoError(t, err)
			got, err := h.engine.SettleWager(context.Background(), custom.ID, v)
			require.NoError(t, err)
			assert.Equal(t, c.status, got.Status)
			assert.Equal(t, c.balance, h.balance(t, "u2"))
			require.Len(t, h.pub.get("user:u2", events.KindWagerSettled), 1)

			ev, err := h.board.Get("m1")
			require.NoError(t, err)
			assert.Equal(t, c.staked, ev.Stats.TotalStaked)
			assert.True(t, stats.SameWagerTotals(ev.Stats, stats.Recompute(h.registry.ForEvent("m1"))))

			// segunda decisão não move dinheiro de novo
			_, err = h.engine.SettleWager(context.Background(), custom.ID, Push)
			assert.ErrorIs(t, err, domain.ErrAlreadySettled)
			assert.Equal(t, c.balance, h.balance(t, "u2"))

			sum, err = h.engine.ReportResult(context.Background(), "m1", homeWins)
			require.NoError(t, err)
			assert.Empty(t, sum.Unresolved)
		})
	}
}

func TestSettleWagerRules(t *testing.T) {
	h := newHarness(t)
	w := h.place(t, "u1", domain.OptionCustom, "first-scorer", 1000)

	_, err := h.engine.SettleWager(context.Background(), w.ID, Win)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.engine.SettleWager(context.Background(), w.ID, Unresolved)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.engine.SettleWager(context.Background(), "missing", Win)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = VerdictFor(domain.WagerCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.board.SetStatus("m1", domain.EventCancelled)
	require.NoError(t, err)
	_, err = h.engine.SettleWager(context.Background(), w.ID, Win)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := h.engine.SettleWager(context.Background(), w.ID, Push)
	require.NoError(t, err)
	assert.Equal(t, domain.WagerRefunded, got.Status)
	assert.Equal(t, int64(10000), h.balance(t, "u1"))
}

type blindWallet struct{ *wallet.Ledger }

func (blindWallet) Balance(string) (domain.Account, error) {
	return domain.Account{}, domain.ErrNotFound
}

func TestLossWithoutBalanceSkipsNotification(t *testing.T) {
	h := newHarness(t)
	w := h.place(t, "u1", domain.OptionLose, "away-win", 2000)
	h.engine.wallet = blindWallet{h.wallet}

	sum, err := h.engine.ReportResult(context.Background(), "m1", homeWins)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Lost)

	got, err := h.registry.Lookup(w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WagerLost, got.Status)
	assert.Empty(t, h.pub.get("user:u1", events.KindWagerSettled))
}

type brokenStats struct{}

func (brokenStats) Reversed(string, domain.OptionType, int64) (domain.Stats, error) {
	return domain.Stats{}, domain.ErrNotFound
}

func TestStatsReversalFailureIsReported(t *testing.T) {
	h := newHarness(t)
	w := h.place(t, "u1", domain.OptionOver, "over-3", 1000)
	h.engine.stats = brokenStats{}

	sum, err := h.engine.ReportResult(context.Background(), "m1", homeWins)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Refunded)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, w.ID, sum.Failures[0].WagerID)
	assert.ErrorIs(t, sum.Failures[0].Err, domain.ErrNotFound)
	assert.Contains(t, sum.Failures[0].Err.Error(), "stats reversal")
	assert.Equal(t, int64(10000), h.balance(t, "u1"))
	require.Len(t, sum.Contract().Failures, 1)
}
