package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/auth"
	"github.com/radieske/livebet-ledger/internal/ledger-service/dto"
	"github.com/radieske/livebet-ledger/internal/ledger-service/service"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

type client struct {
	t *testing.T
	h http.Handler
}

func (c client) do(method, path, user, role string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if user != "" {
		r.Header.Set("X-User-ID", user)
	}
	if role != "" {
		r.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, r)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func newClient(t *testing.T) client {
	svc := service.New(service.Options{StartingBalance: 10000})
	srv := NewServer(zap.NewNop(), svc, auth.Header{}, nil)
	c := client{t: t, h: srv.Router()}

	rec := c.do(http.MethodPost, "/v1/events", "admin", auth.RoleAdmin, map[string]any{
		"id":        "m1",
		"title":     "Crown vs Visakha",
		"category":  "sports",
		"homeTeam":  "Crown",
		"awayTeam":  "Visakha",
		"startTime": "2026-10-15T18:00:00Z",
		"bettingOptions": []map[string]any{
			{"type": "win", "name": "home-win", "odds": 2.5},
			{"type": "lose", "name": "away-win", "odds": 2.8},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return c
}

func placeBody(amount int64) map[string]any {
	return map[string]any{
		"matchId":       "m1",
		"bettingOption": map[string]any{"type": "win", "name": "home-win"},
		"amount":        amount,
	}
}

func TestPlaceAndSettleOverHTTP(t *testing.T) {
	c := newClient(t)

	rec := c.do(http.MethodPost, "/v1/bets", "u1", "", placeBody(2000))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decodeBody[dto.PlaceWagerResponse](t, rec)
	assert.Equal(t, int64(5000), placed.Wager.PotentialWin)
	assert.Equal(t, int64(8000), placed.Wallet.Balance)
	assert.Equal(t, "KHR", placed.Wallet.Currency)

	rec = c.do(http.MethodGet, "/v1/bets/active", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[dto.WagerListResponse](t, rec).Wagers, 1)

	rec = c.do(http.MethodPost, "/v1/events/m1/result", "admin", auth.RoleAdmin, map[string]any{
		"winner": "home", "score": map[string]int{"home": 2, "away": 0},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decodeBody[events.SettlementSummary](t, rec)
	assert.Equal(t, 1, sum.Won)

	rec = c.do(http.MethodGet, "/v1/wallet", "u1", "", nil)
	assert.Equal(t, int64(13000), decodeBody[dto.Wallet](t, rec).Balance)

	rec = c.do(http.MethodPost, "/v1/bets/"+placed.Wager.ID+"/cancel", "u1", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_SETTLED", decodeBody[dto.ErrorResponse](t, rec).Code)

	rec = c.do(http.MethodGet, "/v1/bets/history?status=won", "u1", "", nil)
	h := decodeBody[dto.HistoryResponse](t, rec)
	assert.Equal(t, 1, h.Total)
	assert.Equal(t, 1, h.TotalPages)
}

func TestErrorMapping(t *testing.T) {
	c := newClient(t)

	cases := []struct {
		name   string
		method string
		path   string
		user   string
		role   string
		body   any
		status int
		code   string
	}{
		{"unauthenticated", http.MethodPost, "/v1/bets", "", "", placeBody(2000), http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"out of bounds", http.MethodPost, "/v1/bets", "u1", "", placeBody(500), http.StatusUnprocessableEntity, "OUT_OF_BOUNDS"},
		{"insufficient", http.MethodPost, "/v1/bets", "u1", "", placeBody(20000), http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
		{"bad json", http.MethodPost, "/v1/bets", "u1", "", map[string]any{"nope": 1}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown wager", http.MethodGet, "/v1/bets/ghost", "u1", "", nil, http.StatusNotFound, "NOT_FOUND"},
		{"non admin result", http.MethodPost, "/v1/events/m1/result", "u1", "", map[string]any{"winner": "home"}, http.StatusForbidden, "FORBIDDEN"},
		{"bad status", http.MethodPut, "/v1/events/m1/status", "admin", auth.RoleAdmin, map[string]any{"status": "bogus"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"small deposit", http.MethodPost, "/v1/wallet/deposit", "u1", "", map[string]any{"amount": 10}, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"deposit for other", http.MethodPost, "/v1/wallet/deposit", "u1", "", map[string]any{"userId": "u2", "amount": 5000}, http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := c.do(tc.method, tc.path, tc.user, tc.role, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decodeBody[dto.ErrorResponse](t, rec).Code)
		})
	}
}

func TestLiveEventBlocksCancel(t *testing.T) {
	c := newClient(t)
	rec := c.do(http.MethodPost, "/v1/bets", "u1", "", placeBody(2000))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[dto.PlaceWagerResponse](t, rec).Wager.ID

	rec = c.do(http.MethodPut, "/v1/events/m1/status", "admin", auth.RoleAdmin, map[string]any{"status": "live"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodPost, "/v1/bets/"+id+"/cancel", "u1", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NOT_CANCELLABLE", decodeBody[dto.ErrorResponse](t, rec).Code)

	rec = c.do(http.MethodPost, "/v1/bets/"+id+"/cancel", "u2", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type mapCache struct {
	data map[string]events.OddsUpdated
}

func (m *mapCache) GetOdds(_ context.Context, id string) (events.OddsUpdated, bool, error) {
	upd, ok := m.data[id]
	return upd, ok, nil
}

func (m *mapCache) SetOdds(_ context.Context, upd events.OddsUpdated) error {
	m.data[upd.EventID] = upd
	return nil
}

func TestOddsReadThroughCache(t *testing.T) {
	svc := service.New(service.Options{})
	cache := &mapCache{data: map[string]events.OddsUpdated{}}
	srv := NewServer(zap.NewNop(), svc, auth.Header{}, nil).WithOddsCache(cache)
	c := client{t: t, h: srv.Router()}

	rec := c.do(http.MethodPost, "/v1/events", "admin", auth.RoleAdmin, map[string]any{
		"id": "m1", "title": "Crown vs Visakha", "category": "sports",
		"homeTeam": "Crown", "awayTeam": "Visakha", "startTime": "2026-10-15T18:00:00Z",
		"bettingOptions": []map[string]any{{"type": "win", "name": "home-win", "odds": 2.5}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/v1/events/m1/odds", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, cache.data, "m1")

	rec = c.do(http.MethodGet, "/v1/events/m1/odds", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	upd := decodeBody[events.OddsUpdated](t, rec)
	require.Len(t, upd.Options, 1)
	assert.Equal(t, 2.5, upd.Options[0].Odds)

	rec = c.do(http.MethodGet, "/v1/events/nope/odds", "", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettleWagerRequiresAdmin(t *testing.T) {
	c := newClient(t)
	rec := c.do(http.MethodPost, "/v1/bets", "u1", "", placeBody(2000))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[dto.PlaceWagerResponse](t, rec).Wager.ID

	rec = c.do(http.MethodPut, "/v1/events/m1/status", "admin", auth.RoleAdmin, map[string]any{"status": "finished"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodPost, "/v1/bets/"+id+"/settle", "u1", "", map[string]any{"status": "won"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.do(http.MethodPost, "/v1/bets/"+id+"/settle", "admin", auth.RoleAdmin, map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/v1/bets/"+id+"/settle", "admin", auth.RoleAdmin, map[string]any{"status": "won"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[events.Wager](t, rec)
	assert.Equal(t, "won", got.Status)
	assert.Equal(t, int64(5000), got.ActualWin)

	rec = c.do(http.MethodPost, "/v1/bets/"+id+"/settle", "admin", auth.RoleAdmin, map[string]any{"status": "refunded"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_SETTLED", decodeBody[dto.ErrorResponse](t, rec).Code)

	rec = c.do(http.MethodGet, "/v1/wallet", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(13000), decodeBody[dto.Wallet](t, rec).Balance)
}
