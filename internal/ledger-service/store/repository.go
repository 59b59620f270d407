package store

import (
	"context"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
)

// Repository é o armazenamento durável. O estado autoritativo fica em
// memória; o repositório só é lido no boot e escrito pelo Journal.
type Repository interface {
	LoadAccounts(ctx context.Context) ([]domain.Account, error)
	LoadEvents(ctx context.Context) ([]domain.Event, error)
	LoadWagers(ctx context.Context) ([]domain.Wager, error)

	SaveAccount(ctx context.Context, a domain.Account, e domain.LedgerEntry) error
	SaveEvent(ctx context.Context, e domain.Event) error
	SaveWager(ctx context.Context, w domain.Wager) error

	Ping(ctx context.Context) error
}

// Snapshot é o estado carregado no boot
type Snapshot struct {
	Accounts []domain.Account
	Events   []domain.Event
	Wagers   []domain.Wager
}

func Load(ctx context.Context, r Repository) (Snapshot, error) {
	var s Snapshot
	var err error
	if s.Accounts, err = r.LoadAccounts(ctx); err != nil {
		return Snapshot{}, err
	}
	if s.Events, err = r.LoadEvents(ctx); err != nil {
		return Snapshot{}, err
	}
	if s.Wagers, err = r.LoadWagers(ctx); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
