package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/internal/ledger-service/dto"
	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
	"github.com/radieske/livebet-ledger/internal/ledger-service/odds"
	"github.com/radieske/livebet-ledger/internal/ledger-service/settlement"
	"github.com/radieske/livebet-ledger/internal/ledger-service/stats"
	"github.com/radieske/livebet-ledger/internal/ledger-service/wagers"
	"github.com/radieske/livebet-ledger/internal/ledger-service/wallet"
	"github.com/radieske/livebet-ledger/internal/shared/lockset"
	"github.com/radieske/livebet-ledger/internal/shared/metrics"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

// SummaryPublisher recebe o resumo de cada execução de settlement (Kafka)
type SummaryPublisher interface {
	PublishSummary(ctx context.Context, s events.SettlementSummary) error
}

// Journal é o destino de persistência compartilhado pelos componentes
type Journal interface {
	wallet.Journal
	odds.Journal
	wagers.Journal
}

type Options struct {
	Currency          string
	StartingBalance   int64
	SettlementWorkers int
	Journal           Journal
	Summaries         SummaryPublisher
	Metrics           *metrics.Ledger
	Log               *zap.Logger
	Fanout            *fanout.Fanout
}

// Service é a fachada do ledger: a superfície de requisições (HTTP, WS,
// Kafka) só fala com ela.
type Service struct {
	Wallet   *wallet.Ledger
	Board    *odds.Board
	Stats    *stats.Tracker
	Registry *wagers.Registry
	Engine   *settlement.Engine
	Fanout   *fanout.Fanout

	locks     *lockset.Ordered
	currency  string
	starting  int64
	summaries SummaryPublisher
	m         *metrics.Ledger
	log       *zap.Logger
}

func New(o Options) *Service {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Currency == "" {
		o.Currency = "KHR"
	}
	if o.Fanout == nil {
		o.Fanout = fanout.New()
	}

	var (
		wj wallet.Journal
		oj odds.Journal
		rj wagers.Journal
	)
	if o.Journal != nil {
		wj, oj, rj = o.Journal, o.Journal, o.Journal
	}

	locks := lockset.NewOrdered()
	w := wallet.NewLedger(wj)
	b := odds.NewBoard(oj)
	tr := stats.NewTracker(b)
	reg := wagers.NewRegistry(wagers.Deps{
		Wallet:  w,
		Board:   b,
		Stats:   tr,
		Locks:   locks,
		Pub:     o.Fanout,
		Journal: rj,
		Log:     o.Log.Named("wagers"),
	})
	eng := settlement.NewEngine(settlement.Deps{
		Wallet:   w,
		Board:    b,
		Registry: reg,
		Stats:    tr,
		Locks:    locks,
		Pub:      o.Fanout,
		Workers:  o.SettlementWorkers,
		Log:      o.Log.Named("settlement"),
	})

	return &Service{
		Wallet:    w,
		Board:     b,
		Stats:     tr,
		Registry:  reg,
		Engine:    eng,
		Fanout:    o.Fanout,
		locks:     locks,
		currency:  o.Currency,
		starting:  o.StartingBalance,
		summaries: o.Summaries,
		m:         o.Metrics,
		log:       o.Log,
	}
}

// Hydrate carrega o estado persistido antes de abrir as superfícies
func (s *Service) Hydrate(accs []domain.Account, evs []domain.Event, ws []domain.Wager) {
	s.Wallet.Restore(accs)
	s.Board.Restore(evs)
	s.Registry.Restore(ws)
	s.log.Info("state hydrated",
		zap.Int("accounts", len(accs)),
		zap.Int("events", len(evs)),
		zap.Int("wagers", len(ws)),
	)
}

// ---- wallet ----

// EnsureAccount abre a conta do usuário com o saldo inicial configurado
func (s *Service) EnsureAccount(userID string) (domain.Account, error) {
	return s.Wallet.Open(userID, s.currency, s.starting)
}

func (s *Service) Balance(userID string) (domain.Account, error) {
	return s.EnsureAccount(userID)
}

func (s *Service) Deposit(userID string, amount int64, ref string) (domain.Account, error) {
	if _, err := s.EnsureAccount(userID); err != nil {
		return domain.Account{}, err
	}
	if ref == "" {
		ref = "deposit"
	}
	if _, err := s.Wallet.Deposit(userID, amount, ref); err != nil {
		return domain.Account{}, err
	}
	s.log.Info("deposit", zap.String("userId", userID), zap.Int64("amount", amount))
	return s.Wallet.Balance(userID)
}

// ---- wagers ----

func (s *Service) PlaceWager(req wagers.PlaceRequest) (wagers.Placement, error) {
	start := time.Now()
	if _, err := s.EnsureAccount(req.UserID); err != nil {
		return wagers.Placement{}, err
	}
	p, err := s.Registry.Place(req)
	if s.m != nil {
		s.m.PlacementLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			s.m.WagersRejected.WithLabelValues(domain.Code(err)).Inc()
		} else {
			s.m.WagersPlaced.Inc()
		}
	}
	return p, err
}

func (s *Service) CancelWager(userID, wagerID string) (wagers.Cancellation, error) {
	c, err := s.Registry.Cancel(userID, wagerID)
	if err == nil && s.m != nil {
		s.m.WagersCancelled.Inc()
	}
	return c, err
}

func (s *Service) ListActiveWagers(userID string) []domain.Wager {
	return s.Registry.ListActive(userID)
}

func (s *Service) GetWager(userID, wagerID string) (domain.Wager, error) {
	return s.Registry.Get(userID, wagerID)
}

func (s *Service) History(userID string, status domain.WagerStatus, page, limit int) ([]domain.Wager, int) {
	return s.Registry.History(userID, status, page, limit)
}

func (s *Service) GetStats(userID string) domain.UserStats {
	return s.Registry.UserStats(userID)
}

// ---- events ----

func (s *Service) CreateEvent(ev domain.Event) (domain.Event, error) {
	out, err := s.Board.Create(ev)
	if err != nil {
		return domain.Event{}, err
	}
	s.log.Info("event created", zap.String("eventId", out.ID), zap.String("title", out.Title))
	return out, nil
}

func (s *Service) GetEvent(eventID string) (domain.Event, error) {
	return s.Board.Get(eventID)
}

func (s *Service) ListEvents(status domain.EventStatus) []domain.Event {
	return s.Board.List(status)
}

// ReplaceOptions troca as opções e publica odds.updated no canal do evento
func (s *Service) ReplaceOptions(eventID string, opts []domain.Option) (domain.Event, error) {
	release := s.locks.Acquire(lockset.Scope{Event: eventID})
	defer release()
	ev, err := s.Board.ReplaceOptions(eventID, opts)
	if err != nil {
		return domain.Event{}, err
	}
	s.Fanout.Publish(fanout.EventChannel(eventID), events.KindOddsUpdated, events.OddsUpdated{
		EventID: eventID,
		Options: dto.Options(ev.Options),
		Ts:      time.Now(),
	})
	return ev, nil
}

// SetEventStatus aplica a transição da moderação. cancelled não estorna
// automaticamente: os donos cancelam ou o operador chama VoidEvent.
func (s *Service) SetEventStatus(eventID string, status domain.EventStatus) (domain.Event, error) {
	release := s.locks.Acquire(lockset.Scope{Event: eventID})
	defer release()
	ev, err := s.Board.SetStatus(eventID, status)
	if err != nil {
		return domain.Event{}, err
	}
	s.Fanout.Publish(fanout.EventChannel(eventID), events.KindEventStatus, dto.EventStatus(ev))
	return ev, nil
}

// ReportResult grava o resultado, liquida e publica o resumo
func (s *Service) ReportResult(ctx context.Context, eventID string, out domain.Outcome) (settlement.Summary, error) {
	start := time.Now()
	sum, err := s.Engine.ReportResult(ctx, eventID, out)
	if s.m != nil && sum.EventID != "" {
		s.m.SettlementDuration.Observe(time.Since(start).Seconds())
	}
	s.afterSettlement(ctx, sum)
	return sum, err
}

func (s *Service) VoidEvent(ctx context.Context, eventID string) (settlement.Summary, error) {
	sum, err := s.Engine.Void(ctx, eventID)
	s.afterSettlement(ctx, sum)
	return sum, err
}

// SettleWager decide manualmente uma aposta que ficou pending (ex.: custom)
func (s *Service) SettleWager(ctx context.Context, wagerID string, status domain.WagerStatus) (domain.Wager, error) {
	v, err := settlement.VerdictFor(status)
	if err != nil {
		return domain.Wager{}, err
	}
	w, err := s.Engine.SettleWager(ctx, wagerID, v)
	if err != nil {
		return domain.Wager{}, err
	}
	if s.m != nil {
		s.m.WagersSettled.WithLabelValues(string(w.Status)).Inc()
	}
	return w, nil
}

func (s *Service) afterSettlement(ctx context.Context, sum settlement.Summary) {
	if sum.EventID == "" {
		return
	}
	if s.m != nil {
		s.m.WagersSettled.WithLabelValues(string(domain.WagerWon)).Add(float64(sum.Won))
		s.m.WagersSettled.WithLabelValues(string(domain.WagerLost)).Add(float64(sum.Lost))
		s.m.WagersSettled.WithLabelValues(string(domain.WagerRefunded)).Add(float64(sum.Refunded))
		s.m.SettlementFailures.Add(float64(len(sum.Failures)))
	}
	if s.summaries == nil {
		return
	}
	if err := s.summaries.PublishSummary(ctx, sum.Contract()); err != nil {
		s.log.Warn("publish settlement summary failed", zap.String("eventId", sum.EventID), zap.Error(err))
	}
}

// ---- presence ----

// Watch inscreve a sessão no canal do evento e conta o espectador
func (s *Service) Watch(sess *fanout.Session, eventID string) error {
	if _, err := s.Board.Get(eventID); err != nil {
		return err
	}
	release := s.locks.Acquire(lockset.Scope{Event: eventID})
	defer release()
	if !s.Fanout.Join(sess, fanout.EventChannel(eventID)) {
		return nil
	}
	st, err := s.Stats.ViewerJoined(eventID)
	if err != nil {
		return err
	}
	s.Fanout.Publish(fanout.EventChannel(eventID), events.KindStatsUpdated, dto.Stats(eventID, st))
	return nil
}

func (s *Service) Unwatch(sess *fanout.Session, eventID string) {
	release := s.locks.Acquire(lockset.Scope{Event: eventID})
	defer release()
	if s.Fanout.Leave(sess, fanout.EventChannel(eventID)) {
		s.viewerLeft(eventID)
	}
}

// Disconnect fecha a sessão e desconta a presença em cada evento assistido
func (s *Service) Disconnect(sess *fanout.Session) {
	for _, ch := range s.Fanout.Close(sess) {
		eventID, ok := strings.CutPrefix(ch, "event:")
		if !ok {
			continue
		}
		release := s.locks.Acquire(lockset.Scope{Event: eventID})
		s.viewerLeft(eventID)
		release()
	}
}

func (s *Service) viewerLeft(eventID string) {
	st, err := s.Stats.ViewerLeft(eventID)
	if err != nil {
		s.log.Debug("viewer left unknown event", zap.String("eventId", eventID), zap.Error(err))
		return
	}
	s.Fanout.Publish(fanout.EventChannel(eventID), events.KindStatsUpdated, dto.Stats(eventID, st))
}

// ParseOutcome valida o descritor de resultado vindo das superfícies externas
func ParseOutcome(o events.Outcome) (domain.Outcome, error) {
	out := dto.OutcomeFrom(o)
	if err := out.Validate(); err != nil {
		return domain.Outcome{}, fmt.Errorf("outcome: %w", err)
	}
	return out, nil
}
