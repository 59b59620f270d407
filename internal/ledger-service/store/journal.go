package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
)

type recordKind int

const (
	recAccount recordKind = iota
	recEvent
	recWager
)

type record struct {
	kind    recordKind
	account domain.Account
	entry   domain.LedgerEntry
	event   domain.Event
	wager   domain.Wager
}

// Journal enfileira mutações já aplicadas em memória e um único writer as
// grava no Repository na ordem de chegada. Append nunca bloqueia: é chamado
// com locks de entidade travados.
type Journal struct {
	repo Repository
	log  *zap.Logger

	mu     sync.Mutex
	queue  []record
	wake   chan struct{}
	idle   *sync.Cond
	busy   bool
	closed bool

	onError func(err error)
	retry   time.Duration
}

type JournalOption func(*Journal)

// WithErrorHook é chamado a cada falha de escrita (métricas)
func WithErrorHook(fn func(error)) JournalOption { return func(j *Journal) { j.onError = fn } }

func WithRetryDelay(d time.Duration) JournalOption { return func(j *Journal) { j.retry = d } }

func NewJournal(repo Repository, log *zap.Logger, opts ...JournalOption) *Journal {
	if log == nil {
		log = zap.NewNop()
	}
	j := &Journal{repo: repo, log: log, wake: make(chan struct{}, 1), retry: time.Second}
	j.idle = sync.NewCond(&j.mu)
	for _, o := range opts {
		o(j)
	}
	return j
}

func (j *Journal) AppendAccount(a domain.Account, e domain.LedgerEntry) {
	j.push(record{kind: recAccount, account: a, entry: e})
}

func (j *Journal) AppendEvent(e domain.Event) {
	j.push(record{kind: recEvent, event: e.Clone()})
}

func (j *Journal) AppendWager(w domain.Wager) {
	j.push(record{kind: recWager, wager: w.Clone()})
}

func (j *Journal) push(r record) {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		j.log.Warn("journal closed, record dropped")
		return
	}
	j.queue = append(j.queue, r)
	j.mu.Unlock()
	select {
	case j.wake <- struct{}{}:
	default:
	}
}

// Pending devolve o tamanho da fila
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.queue)
}

// Run drena a fila até ctx terminar; ao terminar grava o que restou
func (j *Journal) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			j.mu.Lock()
			j.closed = true
			j.mu.Unlock()
			// ctx já cancelado: o flush final usa um contexto próprio
			fctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			j.drain(fctx)
			cancel()
			return
		case <-j.wake:
			j.drain(ctx)
		}
	}
}

func (j *Journal) drain(ctx context.Context) {
	for {
		j.mu.Lock()
		if len(j.queue) == 0 {
			j.busy = false
			j.idle.Broadcast()
			j.mu.Unlock()
			return
		}
		batch := j.queue
		j.queue = nil
		j.busy = true
		j.mu.Unlock()

		for i := 0; i < len(batch); {
			if err := j.write(ctx, batch[i]); err != nil {
				if j.onError != nil {
					j.onError(err)
				}
				j.log.Error("journal write failed", zap.Error(err))
				if ctx.Err() != nil {
					j.requeue(batch[i:])
					return
				}
				select {
				case <-ctx.Done():
				case <-time.After(j.retry):
				}
				continue
			}
			i++
		}
	}
}

// requeue devolve registros não gravados para o início da fila
func (j *Journal) requeue(rs []record) {
	j.mu.Lock()
	j.queue = append(append([]record(nil), rs...), j.queue...)
	j.busy = false
	j.idle.Broadcast()
	j.mu.Unlock()
}

func (j *Journal) write(ctx context.Context, r record) error {
	switch r.kind {
	case recAccount:
		return j.repo.SaveAccount(ctx, r.account, r.entry)
	case recEvent:
		return j.repo.SaveEvent(ctx, r.event)
	default:
		return j.repo.SaveWager(ctx, r.wager)
	}
}

// Flush espera a fila esvaziar (usado em testes e no shutdown)
func (j *Journal) Flush() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for len(j.queue) > 0 || j.busy {
		j.idle.Wait()
	}
}
