package settlement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/internal/ledger-service/dto"
	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
	"github.com/radieske/livebet-ledger/internal/shared/lockset"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

type Wallet interface {
	Credit(userID string, amount int64, ref string) (int64, error)
	Release(userID string, amount int64, ref string) (int64, error)
	Balance(userID string) (domain.Account, error)
}

type Board interface {
	Get(eventID string) (domain.Event, error)
	RecordResult(eventID string, out domain.Outcome) (domain.Event, error)
	SetStatus(eventID string, status domain.EventStatus) (domain.Event, error)
}

type Registry interface {
	PendingForEvent(eventID string) []domain.Wager
	Lookup(wagerID string) (domain.Wager, error)
	Transition(wagerID string, to domain.WagerStatus, actualWin int64, note string) (domain.Wager, error)
}

type Stats interface {
	Reversed(eventID string, side domain.OptionType, amount int64) (domain.Stats, error)
}

type Publisher interface {
	Publish(channel, kind string, payload any)
}

type Deps struct {
	Wallet   Wallet
	Board    Board
	Registry Registry
	Stats    Stats
	Locks    *lockset.Ordered
	Pub      Publisher
	Matrix   Matrix
	Workers  int
	Log      *zap.Logger
	Now      func() time.Time
}

type Failure struct {
	WagerID string
	UserID  string
	Err     error
}

// Summary é o resultado de uma execução de settlement/void
type Summary struct {
	EventID    string
	Outcome    *domain.Outcome
	Won        int
	Lost       int
	Refunded   int
	Skipped    int      // já terminais quando o worker chegou
	Unresolved []string // sem predicado; continuam pending
	Failures   []Failure
	PaidOut    int64
	At         time.Time
}

// Contract converte para o payload publicado em settlement_summaries
func (s Summary) Contract() events.SettlementSummary {
	out := events.SettlementSummary{
		EventID:    s.EventID,
		Won:        s.Won,
		Lost:       s.Lost,
		Refunded:   s.Refunded,
		Skipped:    s.Skipped,
		Unresolved: s.Unresolved,
		PaidOut:    s.PaidOut,
		Ts:         s.At,
	}
	if s.Outcome != nil {
		out.Outcome = dto.Outcome(*s.Outcome)
	}
	for _, f := range s.Failures {
		out.Failures = append(out.Failures, events.SettlementFailure{WagerID: f.WagerID, UserID: f.UserID, Reason: f.Err.Error()})
	}
	return out
}

// Engine liquida as apostas pendentes de um evento. Cada aposta é uma
// unidade independente (lock de usuário + aposta); não há lock global.
type Engine struct {
	wallet   Wallet
	board    Board
	registry Registry
	stats    Stats
	locks    *lockset.Ordered
	pub      Publisher
	matrix   Matrix
	workers  int
	log      *zap.Logger
	now      func() time.Time
}

func NewEngine(d Deps) *Engine {
	e := &Engine{
		wallet:   d.Wallet,
		board:    d.Board,
		registry: d.Registry,
		stats:    d.Stats,
		locks:    d.Locks,
		pub:      d.Pub,
		matrix:   d.Matrix,
		workers:  d.Workers,
		log:      d.Log,
		now:      d.Now,
	}
	if e.matrix == nil {
		e.matrix = DefaultMatrix()
	}
	if e.workers <= 0 {
		e.workers = 8
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.locks == nil {
		e.locks = lockset.NewOrdered()
	}
	return e
}

// ReportResult grava o resultado (evento → finished) e liquida.
// Reenviar o mesmo resultado só reprocessa o que ainda está pending.
func (e *Engine) ReportResult(ctx context.Context, eventID string, out domain.Outcome) (Summary, error) {
	if eventID == "" {
		return Summary{}, fmt.Errorf("%w: eventId required", domain.ErrInvalidInput)
	}
	// sob o lock do evento: depois daqui nenhuma aposta nova passa no canWager
	release := e.locks.Acquire(lockset.Scope{Event: eventID})
	ev, err := e.board.RecordResult(eventID, out)
	if err == nil {
		e.publish(fanout.EventChannel(eventID), events.KindEventStatus, dto.EventStatus(ev))
	}
	release()
	if err != nil {
		return Summary{}, err
	}

	sum, err := e.run(ctx, eventID, ev.Result, func(w domain.Wager) Verdict {
		return e.matrix.Evaluate(w.Option, *ev.Result)
	})
	e.log.Info("event settled",
		zap.String("eventId", eventID),
		zap.String("winner", string(out.Winner)),
		zap.Int("won", sum.Won),
		zap.Int("lost", sum.Lost),
		zap.Int("refunded", sum.Refunded),
		zap.Int("unresolved", len(sum.Unresolved)),
		zap.Int("failures", len(sum.Failures)),
	)
	return sum, err
}

// Void cancela o evento e estorna toda aposta pendente
func (e *Engine) Void(ctx context.Context, eventID string) (Summary, error) {
	release := e.locks.Acquire(lockset.Scope{Event: eventID})
	ev, err := e.board.SetStatus(eventID, domain.EventCancelled)
	if err == nil {
		e.publish(fanout.EventChannel(eventID), events.KindEventStatus, dto.EventStatus(ev))
	}
	release()
	if err != nil {
		return Summary{}, err
	}

	sum, err := e.run(ctx, eventID, nil, func(domain.Wager) Verdict { return Push })
	e.log.Info("event voided", zap.String("eventId", eventID), zap.Int("refunded", sum.Refunded))
	return sum, err
}

type tally struct {
	mu  sync.Mutex
	sum Summary
}

func (e *Engine) run(ctx context.Context, eventID string, out *domain.Outcome, judge func(domain.Wager) Verdict) (Summary, error) {
	t := &tally{sum: Summary{EventID: eventID, Outcome: out}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, w := range e.registry.PendingForEvent(eventID) {
		w := w
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e.settleOne(w, judge(w), t)
			return nil
		})
	}
	err := g.Wait()

	t.sum.At = e.now()
	sort.Strings(t.sum.Unresolved)
	sort.Slice(t.sum.Failures, func(i, j int) bool { return t.sum.Failures[i].WagerID < t.sum.Failures[j].WagerID })
	return t.sum, err
}

func (e *Engine) settleOne(w domain.Wager, v Verdict, t *tally) {
	if v == Unresolved {
		t.mu.Lock()
		t.sum.Unresolved = append(t.sum.Unresolved, w.ID)
		t.mu.Unlock()
		return
	}

	release := e.locks.Acquire(lockset.Scope{User: w.UserID, Wager: w.ID})
	defer release()

	cur, err := e.registry.Lookup(w.ID)
	if err != nil || cur.Status != domain.WagerPending {
		t.mu.Lock()
		t.sum.Skipped++
		t.mu.Unlock()
		return
	}

	a, err := e.apply(cur, v)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.sum.Failures = append(t.sum.Failures, Failure{WagerID: cur.ID, UserID: cur.UserID, Err: err})
		e.log.Error("settle wager failed", zap.String("wagerId", cur.ID), zap.String("userId", cur.UserID), zap.Error(err))
		return
	}
	// dinheiro já devolvido; só as stats divergiram
	if a.statsErr != nil {
		t.sum.Failures = append(t.sum.Failures, Failure{WagerID: cur.ID, UserID: cur.UserID, Err: a.statsErr})
	}
	switch a.wager.Status {
	case domain.WagerWon:
		t.sum.Won++
		t.sum.PaidOut += a.wager.ActualWin
	case domain.WagerLost:
		t.sum.Lost++
	case domain.WagerRefunded:
		t.sum.Refunded++
	}
	e.notify(a)
}

// VerdictFor traduz o status pedido pelo operador
func VerdictFor(status domain.WagerStatus) (Verdict, error) {
	switch status {
	case domain.WagerWon:
		return Win, nil
	case domain.WagerLost:
		return Lose, nil
	case domain.WagerRefunded:
		return Push, nil
	}
	return Unresolved, fmt.Errorf("%w: settle as %q", domain.ErrInvalidInput, status)
}

// SettleWager liquida uma única aposta por decisão do operador (apostas que
// o matrix deixou unresolved, correções pontuais). Só depois que o evento
// terminou; evento cancelado só aceita estorno.
func (e *Engine) SettleWager(ctx context.Context, wagerID string, v Verdict) (domain.Wager, error) {
	if err := ctx.Err(); err != nil {
		return domain.Wager{}, err
	}
	if v != Win && v != Lose && v != Push {
		return domain.Wager{}, fmt.Errorf("%w: verdict %s", domain.ErrInvalidInput, v)
	}
	w, err := e.registry.Lookup(wagerID)
	if err != nil {
		return domain.Wager{}, err
	}
	ev, err := e.board.Get(w.EventID)
	if err != nil {
		return domain.Wager{}, err
	}
	switch {
	case !ev.Status.Terminal():
		return domain.Wager{}, fmt.Errorf("event is %s: %w", ev.Status, domain.ErrInvalidTransition)
	case ev.Status == domain.EventCancelled && v != Push:
		return domain.Wager{}, fmt.Errorf("event cancelled, only refund allowed: %w", domain.ErrInvalidTransition)
	}

	release := e.locks.Acquire(lockset.Scope{User: w.UserID, Wager: w.ID})
	defer release()

	cur, err := e.registry.Lookup(wagerID)
	if err != nil {
		return domain.Wager{}, err
	}
	if cur.Status != domain.WagerPending {
		return domain.Wager{}, fmt.Errorf("wager is %s: %w", cur.Status, domain.ErrAlreadySettled)
	}

	a, err := e.apply(cur, v)
	if err != nil {
		return domain.Wager{}, err
	}
	if a.statsErr != nil {
		e.log.Error("manual settle left stats diverged", zap.String("wagerId", cur.ID), zap.Error(a.statsErr))
	}
	e.notify(a)
	e.log.Info("wager settled manually",
		zap.String("wagerId", cur.ID),
		zap.String("userId", cur.UserID),
		zap.String("status", string(a.wager.Status)),
	)
	return a.wager, nil
}

// applied é o efeito de uma liquidação bem-sucedida
type applied struct {
	wager    domain.Wager
	balance  int64
	known    bool  // balance lido de fato
	statsErr error // estorno de stats falhou depois do release
}

// apply executa o efeito no wallet antes da transição: se o crédito falha
// a aposta continua pending e pode ser reprocessada.
func (e *Engine) apply(w domain.Wager, v Verdict) (applied, error) {
	switch v {
	case Win:
		bal, err := e.wallet.Credit(w.UserID, w.PotentialWin, w.ID)
		if err != nil {
			return applied{}, fmt.Errorf("credit: %w", err)
		}
		res, err := e.registry.Transition(w.ID, domain.WagerWon, w.PotentialWin, "")
		return applied{wager: res, balance: bal, known: true}, err

	case Push:
		bal, err := e.wallet.Release(w.UserID, w.Amount, w.ID)
		if err != nil {
			return applied{}, fmt.Errorf("refund: %w", err)
		}
		a := applied{balance: bal, known: true}
		if _, err := e.stats.Reversed(w.EventID, w.Option.Type, w.Amount); err != nil {
			a.statsErr = fmt.Errorf("stats reversal: %w", err)
		}
		a.wager, err = e.registry.Transition(w.ID, domain.WagerRefunded, 0, "refunded")
		return a, err

	default:
		res, err := e.registry.Transition(w.ID, domain.WagerLost, 0, "")
		if err != nil {
			return applied{}, err
		}
		a := applied{wager: res}
		if acc, err := e.wallet.Balance(w.UserID); err == nil {
			a.balance, a.known = acc.Balance, true
		} else {
			e.log.Warn("balance read after loss failed", zap.String("wagerId", w.ID), zap.Error(err))
		}
		return a, nil
	}
}

// notify avisa o dono; sem saldo confirmado não publica
func (e *Engine) notify(a applied) {
	if !a.known {
		return
	}
	e.publish(fanout.UserChannel(a.wager.UserID), events.KindWagerSettled, events.WagerSettled{
		WagerID:    a.wager.ID,
		EventID:    a.wager.EventID,
		Status:     string(a.wager.Status),
		WinAmount:  a.wager.ActualWin,
		NewBalance: a.balance,
	})
}

func (e *Engine) publish(channel, kind string, payload any) {
	if e.pub != nil {
		e.pub.Publish(channel, kind, payload)
	}
}
