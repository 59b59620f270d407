package wagers

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/internal/ledger-service/dto"
	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
	"github.com/radieske/livebet-ledger/internal/ledger-service/odds"
	"github.com/radieske/livebet-ledger/internal/shared/lockset"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

// Wallet: operações de saldo usadas pelo registry
type Wallet interface {
	Reserve(userID string, amount int64, ref string) (int64, error)
	Release(userID string, amount int64, ref string) (int64, error)
	Balance(userID string) (domain.Account, error)
}

// Board: leitura de eventos e opções
type Board interface {
	Get(eventID string) (domain.Event, error)
	CanWager(eventID string) (bool, error)
	GetOption(eventID string, ref domain.OptionRef) (domain.Option, error)
}

// Stats: rollups por evento
type Stats interface {
	Placed(eventID string, side domain.OptionType, amount int64) (domain.Stats, error)
	Reversed(eventID string, side domain.OptionType, amount int64) (domain.Stats, error)
}

// Publisher não pode bloquear: é chamado com locks de entidade travados
type Publisher interface {
	Publish(channel, kind string, payload any)
}

// Journal recebe a aposta após cada mutação; não pode bloquear
type Journal interface {
	AppendWager(w domain.Wager)
}

type Deps struct {
	Wallet  Wallet
	Board   Board
	Stats   Stats
	Locks   *lockset.Ordered
	Pub     Publisher
	Journal Journal
	Log     *zap.Logger
	Now     func() time.Time
	NewID   func() string
}

// Registry é o dono dos registros de aposta e da máquina de estados
// pending → won | lost | cancelled | refunded.
type Registry struct {
	wallet  Wallet
	board   Board
	stats   Stats
	locks   *lockset.Ordered
	pub     Publisher
	journal Journal
	log     *zap.Logger
	now     func() time.Time
	newID   func() string

	mu      sync.RWMutex
	wagers  map[string]*domain.Wager
	byUser  map[string][]string
	byEvent map[string][]string
}

func NewRegistry(d Deps) *Registry {
	r := &Registry{
		wallet:  d.Wallet,
		board:   d.Board,
		stats:   d.Stats,
		locks:   d.Locks,
		pub:     d.Pub,
		journal: d.Journal,
		log:     d.Log,
		now:     d.Now,
		newID:   d.NewID,
		wagers:  make(map[string]*domain.Wager),
		byUser:  make(map[string][]string),
		byEvent: make(map[string][]string),
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.locks == nil {
		r.locks = lockset.NewOrdered()
	}
	return r
}

// Locks expõe o lockset compartilhado com o settlement
func (r *Registry) Locks() *lockset.Ordered { return r.locks }

// Restore carrega apostas persistidas
func (r *Registry) Restore(ws []domain.Wager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range ws {
		c := w.Clone()
		r.wagers[c.ID] = &c
		r.byUser[c.UserID] = append(r.byUser[c.UserID], c.ID)
		r.byEvent[c.EventID] = append(r.byEvent[c.EventID], c.ID)
	}
}

type PlaceRequest struct {
	UserID       string
	EventID      string
	Option       domain.OptionRef
	Amount       int64
	ExpectedOdds float64 // 0 = aceita a odd corrente
}

type Placement struct {
	Wager   domain.Wager
	Balance int64
}

// Place admite uma aposta: evento → canWager → opção ativa → limites → reserve →
// registro → stats → broadcast. Falha depois do reserve desfaz o reserve.
func (r *Registry) Place(req PlaceRequest) (Placement, error) {
	if req.UserID == "" || req.EventID == "" || req.Option.Name == "" || !req.Option.Type.Valid() {
		return Placement{}, fmt.Errorf("%w: userId, eventId and option are required", domain.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return Placement{}, domain.ErrInvalidAmount
	}

	p, err := r.place(req)
	if err != nil {
		return Placement{}, err
	}
	r.log.Info("wager placed",
		zap.String("wagerId", p.Wager.ID),
		zap.String("userId", req.UserID),
		zap.String("eventId", req.EventID),
		zap.Int64("amount", req.Amount),
	)
	return p, nil
}

func (r *Registry) place(req PlaceRequest) (Placement, error) {
	release := r.locks.Acquire(lockset.Scope{User: req.UserID, Event: req.EventID})
	defer release()

	ok, err := r.board.CanWager(req.EventID)
	if err != nil {
		return Placement{}, err
	}
	if !ok {
		return Placement{}, domain.ErrEventNotWagerable
	}
	opt, err := r.board.GetOption(req.EventID, req.Option)
	if err != nil {
		return Placement{}, err
	}
	if err := odds.ValidateStake(opt, req.Amount); err != nil {
		return Placement{}, err
	}
	if req.ExpectedOdds > 0 && math.Abs(req.ExpectedOdds-opt.Odds) > 1e-9 {
		return Placement{}, fmt.Errorf("%w: current=%v", domain.ErrOddsChanged, opt.Odds)
	}

	id := r.newID()
	bal, err := r.wallet.Reserve(req.UserID, req.Amount, id)
	if err != nil {
		return Placement{}, err
	}

	w := domain.Wager{
		ID:           id,
		UserID:       req.UserID,
		EventID:      req.EventID,
		Option:       domain.SnapshotOf(opt),
		Amount:       req.Amount,
		PotentialWin: domain.PotentialWin(req.Amount, opt.Odds),
		Status:       domain.WagerPending,
		PlacedAt:     r.now(),
	}
	if err := r.insert(w); err != nil {
		r.compensate(req.UserID, req.Amount, id)
		return Placement{}, err
	}
	st, err := r.stats.Placed(req.EventID, opt.Type, req.Amount)
	if err != nil {
		r.remove(w)
		r.compensate(req.UserID, req.Amount, id)
		return Placement{}, err
	}
	if r.journal != nil {
		r.journal.AppendWager(w)
	}

	view := dto.Wager(w)
	r.publish(fanout.UserChannel(req.UserID), events.KindWagerAccepted, events.WagerAccepted{Wager: view, NewBalance: bal})
	r.publish(fanout.EventChannel(req.EventID), events.KindWagerActivity, events.WagerActivity{
		EventID:    req.EventID,
		Action:     "placed",
		Amount:     req.Amount,
		OptionName: opt.Name,
		Ts:         w.PlacedAt,
	})
	r.publish(fanout.EventChannel(req.EventID), events.KindStatsUpdated, dto.Stats(req.EventID, st))

	return Placement{Wager: w, Balance: bal}, nil
}

// compensate devolve o reserve de uma admissão que falhou
func (r *Registry) compensate(userID string, amount int64, ref string) {
	if _, err := r.wallet.Release(userID, amount, "rollback:"+ref); err != nil {
		r.log.Error("reserve rollback failed", zap.String("userId", userID), zap.String("ref", ref), zap.Error(err))
	}
}

func (r *Registry) insert(w domain.Wager) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wagers[w.ID]; ok {
		return fmt.Errorf("%w: wager %s already exists", domain.ErrInvalidInput, w.ID)
	}
	c := w.Clone()
	r.wagers[w.ID] = &c
	r.byUser[w.UserID] = append(r.byUser[w.UserID], w.ID)
	r.byEvent[w.EventID] = append(r.byEvent[w.EventID], w.ID)
	return nil
}

func (r *Registry) remove(w domain.Wager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.wagers, w.ID)
	r.byUser[w.UserID] = without(r.byUser[w.UserID], w.ID)
	r.byEvent[w.EventID] = without(r.byEvent[w.EventID], w.ID)
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

type Cancellation struct {
	Wager   domain.Wager
	Balance int64
}

// Cancel: só o dono, só pending, só com o evento fora de live.
// Release e reversão das stats aplicam juntos ou nenhum.
func (r *Registry) Cancel(userID, wagerID string) (Cancellation, error) {
	if userID == "" || wagerID == "" {
		return Cancellation{}, fmt.Errorf("%w: userId and wagerId are required", domain.ErrInvalidInput)
	}
	w, err := r.Get(userID, wagerID)
	if err != nil {
		return Cancellation{}, err
	}

	c, err := r.cancel(w)
	if err != nil {
		return Cancellation{}, err
	}
	r.log.Info("wager cancelled", zap.String("wagerId", wagerID), zap.String("userId", userID))
	return c, nil
}

func (r *Registry) cancel(w domain.Wager) (Cancellation, error) {
	release := r.locks.Acquire(lockset.Scope{User: w.UserID, Event: w.EventID, Wager: w.ID})
	defer release()

	cur, err := r.Lookup(w.ID)
	if err != nil {
		return Cancellation{}, err
	}
	switch {
	case cur.Status.Settled():
		return Cancellation{}, fmt.Errorf("%w: %w", domain.ErrNotCancellable, domain.ErrAlreadySettled)
	case cur.Status.Terminal():
		return Cancellation{}, fmt.Errorf("wager is %s: %w", cur.Status, domain.ErrNotCancellable)
	}

	ev, err := r.board.Get(cur.EventID)
	if err != nil {
		return Cancellation{}, err
	}
	// resultado gravado = settlement já tomou a aposta como alvo
	if ev.Result != nil {
		return Cancellation{}, fmt.Errorf("%w: %w", domain.ErrNotCancellable, domain.ErrAlreadySettled)
	}
	// finished sem resultado: a partida acabou, só falta o relatório
	if ev.Status == domain.EventLive || ev.Status == domain.EventFinished {
		return Cancellation{}, fmt.Errorf("event is %s: %w", ev.Status, domain.ErrNotCancellable)
	}

	bal, err := r.wallet.Release(cur.UserID, cur.Amount, cur.ID)
	if err != nil {
		return Cancellation{}, err
	}
	st, err := r.stats.Reversed(cur.EventID, cur.Option.Type, cur.Amount)
	if err != nil {
		// desfaz o release para manter saldo e stats consistentes
		if _, rerr := r.wallet.Reserve(cur.UserID, cur.Amount, "rollback:"+cur.ID); rerr != nil {
			r.log.Error("cancel rollback failed", zap.String("wagerId", cur.ID), zap.Error(rerr))
		}
		return Cancellation{}, err
	}
	done, err := r.Transition(cur.ID, domain.WagerCancelled, 0, "cancelled by owner")
	if err != nil {
		return Cancellation{}, err
	}

	r.publish(fanout.UserChannel(cur.UserID), events.KindWagerCancelled, events.WagerCancelled{
		WagerID:    cur.ID,
		EventID:    cur.EventID,
		Refunded:   cur.Amount,
		NewBalance: bal,
	})
	r.publish(fanout.EventChannel(cur.EventID), events.KindWagerActivity, events.WagerActivity{
		EventID:    cur.EventID,
		Action:     "cancelled",
		Amount:     cur.Amount,
		OptionName: cur.Option.Name,
		Ts:         r.now(),
	})
	r.publish(fanout.EventChannel(cur.EventID), events.KindStatsUpdated, dto.Stats(cur.EventID, st))

	return Cancellation{Wager: done, Balance: bal}, nil
}

// Transition move uma aposta pending para um estado terminal.
// O chamador precisa segurar o lock da aposta.
func (r *Registry) Transition(wagerID string, to domain.WagerStatus, actualWin int64, note string) (domain.Wager, error) {
	if !to.Valid() || !to.Terminal() {
		return domain.Wager{}, fmt.Errorf("%w: to %q", domain.ErrInvalidTransition, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wagers[wagerID]
	if !ok {
		return domain.Wager{}, fmt.Errorf("wager %s: %w", wagerID, domain.ErrNotFound)
	}
	if w.Status != domain.WagerPending {
		return w.Clone(), domain.ErrAlreadySettled
	}
	t := r.now()
	w.Status = to
	w.ActualWin = actualWin
	w.SettledAt = &t
	w.Notes = note
	if r.journal != nil {
		r.journal.AppendWager(w.Clone())
	}
	return w.Clone(), nil
}

func (r *Registry) publish(channel, kind string, payload any) {
	if r.pub != nil {
		r.pub.Publish(channel, kind, payload)
	}
}
