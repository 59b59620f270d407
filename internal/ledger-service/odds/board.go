package odds

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
)

// Journal recebe o evento após cada mutação; não pode bloquear
type Journal interface {
	AppendEvent(e domain.Event)
}

// Board é o dono dos eventos: opções apostáveis, status e stats.
// Mutações de um mesmo evento são ordenadas pelo lock de evento do chamador
// (lockset.Ordered); o mutex interno só protege o mapa e as leituras.
type Board struct {
	mu      sync.RWMutex
	events  map[string]*domain.Event
	journal Journal
	now     func() time.Time
}

func NewBoard(j Journal) *Board {
	return &Board{events: make(map[string]*domain.Event), journal: j, now: time.Now}
}

// Restore carrega eventos persistidos
func (b *Board) Restore(evs []domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range evs {
		ev := evs[i].Clone()
		if ev.Stats.BySide == nil {
			ev.Stats.BySide = map[domain.OptionType]domain.SideTotals{}
		}
		b.events[ev.ID] = &ev
	}
}

// Create registra um novo evento (status inicial scheduled)
func (b *Board) Create(ev domain.Event) (domain.Event, error) {
	if strings.TrimSpace(ev.Title) == "" {
		return domain.Event{}, fmt.Errorf("%w: title required", domain.ErrInvalidInput)
	}
	if !ev.Category.Valid() {
		return domain.Event{}, fmt.Errorf("%w: category %q", domain.ErrInvalidInput, ev.Category)
	}
	if ev.Teams.Home.Name == "" || ev.Teams.Away.Name == "" {
		return domain.Event{}, fmt.Errorf("%w: home and away teams required", domain.ErrInvalidInput)
	}
	if ev.StartTime.IsZero() {
		return domain.Event{}, fmt.Errorf("%w: start time required", domain.ErrInvalidInput)
	}
	opts, err := normalizeOptions(ev.Options)
	if err != nil {
		return domain.Event{}, err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Options = opts
	ev.Status = domain.EventScheduled
	ev.EndTime = nil
	ev.Result = nil
	ev.Stats = domain.Stats{BySide: map[domain.OptionType]domain.SideTotals{}}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.events[ev.ID]; ok {
		return domain.Event{}, fmt.Errorf("%w: event %s exists", domain.ErrInvalidInput, ev.ID)
	}
	stored := ev.Clone()
	b.events[ev.ID] = &stored
	b.record(&stored)
	return stored.Clone(), nil
}

func normalizeOptions(in []domain.Option) ([]domain.Option, error) {
	seen := make(map[domain.OptionRef]struct{}, len(in))
	out := make([]domain.Option, 0, len(in))
	for _, o := range in {
		o = o.Normalize()
		if err := o.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[o.Ref()]; dup {
			return nil, fmt.Errorf("%w: duplicate option %s/%s", domain.ErrInvalidInput, o.Type, o.Name)
		}
		seen[o.Ref()] = struct{}{}
		out = append(out, o)
	}
	return out, nil
}

// Get devolve uma cópia do evento
func (b *Board) Get(eventID string) (domain.Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.events[eventID]
	if !ok {
		return domain.Event{}, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	return ev.Clone(), nil
}

// List devolve eventos filtrados por status (vazio = todos), por início
func (b *Board) List(status domain.EventStatus) []domain.Event {
	b.mu.RLock()
	out := make([]domain.Event, 0, len(b.events))
	for _, ev := range b.events {
		if status == "" || ev.Status == status {
			out = append(out, ev.Clone())
		}
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// CanWager: true sse o evento está live ou scheduled
func (b *Board) CanWager(eventID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.events[eventID]
	if !ok {
		return false, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	return ev.CanWager(), nil
}

// GetOption devolve a opção ativa correspondente
func (b *Board) GetOption(eventID string, ref domain.OptionRef) (domain.Option, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.events[eventID]
	if !ok {
		return domain.Option{}, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	for _, o := range ev.Options {
		if o.Type == ref.Type && o.Name == ref.Name {
			if !o.Active {
				return domain.Option{}, fmt.Errorf("option %s/%s: %w", ref.Type, ref.Name, domain.ErrOptionInactive)
			}
			return o, nil
		}
	}
	return domain.Option{}, fmt.Errorf("option %s/%s: %w", ref.Type, ref.Name, domain.ErrNotFound)
}

// ValidateStake checa os limites [minBet, maxBet] da opção
func ValidateStake(o domain.Option, amount int64) error {
	if amount < o.MinBet || amount > o.MaxBet {
		return fmt.Errorf("%w: amount must be between %d and %d", domain.ErrOutOfBounds, o.MinBet, o.MaxBet)
	}
	return nil
}

// ReplaceOptions troca o conjunto de opções inteiro. Snapshots das apostas
// existentes não são tocados.
func (b *Board) ReplaceOptions(eventID string, opts []domain.Option) (domain.Event, error) {
	norm, err := normalizeOptions(opts)
	if err != nil {
		return domain.Event{}, err
	}
	return b.mutate(eventID, func(ev *domain.Event) error {
		if !ev.CanWager() {
			return fmt.Errorf("replace options while %s: %w", ev.Status, domain.ErrEventNotWagerable)
		}
		ev.Options = norm
		return nil
	})
}

// SetStatus aplica a transição pedida pelo moderador.
// finished/cancelled são terminais; finished preenche EndTime.
func (b *Board) SetStatus(eventID string, status domain.EventStatus) (domain.Event, error) {
	if !status.Valid() {
		return domain.Event{}, fmt.Errorf("%w: status %q", domain.ErrInvalidInput, status)
	}
	return b.mutate(eventID, func(ev *domain.Event) error {
		if ev.Status == status {
			return nil
		}
		if ev.Status.Terminal() {
			return fmt.Errorf("%s -> %s: %w", ev.Status, status, domain.ErrInvalidTransition)
		}
		ev.Status = status
		if status == domain.EventFinished && ev.EndTime == nil {
			t := b.now()
			ev.EndTime = &t
		}
		return nil
	})
}

// RecordResult grava o resultado e finaliza o evento. Repetir com o mesmo
// resultado é no-op; resultado diferente é conflito.
func (b *Board) RecordResult(eventID string, out domain.Outcome) (domain.Event, error) {
	if err := out.Validate(); err != nil {
		return domain.Event{}, err
	}
	return b.mutate(eventID, func(ev *domain.Event) error {
		if ev.Result != nil {
			if ev.Result.Winner != out.Winner || ev.Result.Score != out.Score {
				return domain.ErrResultConflict
			}
			return nil
		}
		if ev.Status == domain.EventCancelled {
			return fmt.Errorf("result for cancelled event: %w", domain.ErrInvalidTransition)
		}
		r := out
		ev.Result = &r
		ev.Status = domain.EventFinished
		if ev.EndTime == nil {
			t := b.now()
			ev.EndTime = &t
		}
		return nil
	})
}

// UpdateStats aplica fn às stats do evento
func (b *Board) UpdateStats(eventID string, fn func(*domain.Stats)) (domain.Stats, error) {
	ev, err := b.mutate(eventID, func(ev *domain.Event) error {
		fn(&ev.Stats)
		return nil
	})
	if err != nil {
		return domain.Stats{}, err
	}
	return ev.Stats, nil
}

func (b *Board) mutate(eventID string, fn func(*domain.Event) error) (domain.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev, ok := b.events[eventID]
	if !ok {
		return domain.Event{}, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	// aplica numa cópia: erro não deixa estado parcial
	next := ev.Clone()
	if err := fn(&next); err != nil {
		return domain.Event{}, err
	}
	*ev = next
	b.record(ev)
	return ev.Clone(), nil
}

func (b *Board) record(ev *domain.Event) {
	if b.journal != nil {
		b.journal.AppendEvent(ev.Clone())
	}
}
