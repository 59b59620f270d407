package store

import (
	"context"
	"sort"
	"sync"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
)

// Memory é o repositório usado em dev e testes (STORE_DRIVER=memory)
type Memory struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	entries  []domain.LedgerEntry
	events   map[string]domain.Event
	wagers   map[string]domain.Wager
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]domain.Account),
		events:   make(map[string]domain.Event),
		wagers:   make(map[string]domain.Wager),
	}
}

func (m *Memory) LoadAccounts(context.Context) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) LoadEvents(context.Context) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) LoadWagers(context.Context) ([]domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Wager, 0, len(m.wagers))
	for _, w := range m.wagers {
		out = append(out, w.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out, nil
}

func (m *Memory) SaveAccount(_ context.Context, a domain.Account, e domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.UserID] = a
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) SaveEvent(_ context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e.Clone()
	return nil
}

func (m *Memory) SaveWager(_ context.Context, w domain.Wager) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wagers[w.ID] = w.Clone()
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Entries devolve os lançamentos de um usuário, em ordem
func (m *Memory) Entries(userID string) []domain.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}
