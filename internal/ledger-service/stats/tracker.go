package stats

import (
	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
)

// Store é onde as stats vivem (odds.Board)
type Store interface {
	UpdateStats(eventID string, fn func(*domain.Stats)) (domain.Stats, error)
}

// Tracker mantém os rollups incrementais de cada evento.
// O settlement nunca passa por aqui: ganhar/perder não muda o volume apostado.
type Tracker struct {
	store Store
}

func NewTracker(s Store) *Tracker { return &Tracker{store: s} }

// Placed contabiliza uma aposta aceita
func (t *Tracker) Placed(eventID string, side domain.OptionType, amount int64) (domain.Stats, error) {
	return t.store.UpdateStats(eventID, func(s *domain.Stats) {
		s.WagerCount++
		s.TotalStaked += amount
		st := s.BySide[side]
		st.Count++
		st.Staked += amount
		s.BySide[side] = st
	})
}

// Reversed desfaz Placed (cancelamento ou estorno antes do settlement)
func (t *Tracker) Reversed(eventID string, side domain.OptionType, amount int64) (domain.Stats, error) {
	return t.store.UpdateStats(eventID, func(s *domain.Stats) {
		s.WagerCount--
		s.TotalStaked -= amount
		st := s.BySide[side]
		st.Count--
		st.Staked -= amount
		if st.Count == 0 && st.Staked == 0 {
			delete(s.BySide, side)
		} else {
			s.BySide[side] = st
		}
	})
}

// ViewerJoined / ViewerLeft: contador independente do fluxo de apostas
func (t *Tracker) ViewerJoined(eventID string) (domain.Stats, error) {
	return t.store.UpdateStats(eventID, func(s *domain.Stats) { s.CurrentViewers++ })
}

func (t *Tracker) ViewerLeft(eventID string) (domain.Stats, error) {
	return t.store.UpdateStats(eventID, func(s *domain.Stats) {
		if s.CurrentViewers > 0 {
			s.CurrentViewers--
		}
	})
}

// Recompute recalcula as stats de apostas a partir dos registros;
// em repouso deve bater com o agregado incremental.
func Recompute(wagers []domain.Wager) domain.Stats {
	out := domain.Stats{BySide: map[domain.OptionType]domain.SideTotals{}}
	for _, w := range wagers {
		if w.Status == domain.WagerCancelled || w.Status == domain.WagerRefunded {
			continue
		}
		out.WagerCount++
		out.TotalStaked += w.Amount
		st := out.BySide[w.Option.Type]
		st.Count++
		st.Staked += w.Amount
		out.BySide[w.Option.Type] = st
	}
	return out
}

// SameWagerTotals compara apenas os campos derivados de apostas
func SameWagerTotals(a, b domain.Stats) bool {
	if a.WagerCount != b.WagerCount || a.TotalStaked != b.TotalStaked || len(a.BySide) != len(b.BySide) {
		return false
	}
	for k, v := range a.BySide {
		if b.BySide[k] != v {
			return false
		}
	}
	return true
}
