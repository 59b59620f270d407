package wagers

import (
	"fmt"
	"math"
	"sort"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
)

// Lookup devolve a aposta sem checar dono (uso interno)
func (r *Registry) Lookup(wagerID string) (domain.Wager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wagers[wagerID]
	if !ok {
		return domain.Wager{}, fmt.Errorf("wager %s: %w", wagerID, domain.ErrNotFound)
	}
	return w.Clone(), nil
}

// Get devolve a aposta só para o dono; de outro usuário é NotFound
func (r *Registry) Get(userID, wagerID string) (domain.Wager, error) {
	w, err := r.Lookup(wagerID)
	if err != nil {
		return domain.Wager{}, err
	}
	if w.UserID != userID {
		return domain.Wager{}, fmt.Errorf("wager %s: %w", wagerID, domain.ErrNotFound)
	}
	return w, nil
}

func (r *Registry) collect(ids []string, keep func(*domain.Wager) bool) []domain.Wager {
	out := make([]domain.Wager, 0, len(ids))
	for _, id := range ids {
		if w, ok := r.wagers[id]; ok && (keep == nil || keep(w)) {
			out = append(out, w.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return out
}

// ListActive: apostas pending do usuário, mais recentes primeiro
func (r *Registry) ListActive(userID string) []domain.Wager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byUser[userID], func(w *domain.Wager) bool { return w.Status == domain.WagerPending })
}

// History pagina o histórico do usuário, opcionalmente filtrado por status
func (r *Registry) History(userID string, status domain.WagerStatus, page, limit int) ([]domain.Wager, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	r.mu.RLock()
	all := r.collect(r.byUser[userID], func(w *domain.Wager) bool { return status == "" || w.Status == status })
	r.mu.RUnlock()

	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return []domain.Wager{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total
}

// PendingForEvent: alvo do settlement
func (r *Registry) PendingForEvent(eventID string) []domain.Wager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byEvent[eventID], func(w *domain.Wager) bool { return w.Status == domain.WagerPending })
}

// ForEvent devolve todas as apostas do evento
func (r *Registry) ForEvent(eventID string) []domain.Wager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byEvent[eventID], nil)
}

// UserStats agrega os totais do usuário. Canceladas/estornadas não contam
// como volume; winRate é sobre apostas já liquidadas.
func (r *Registry) UserStats(userID string) domain.UserStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s domain.UserStats
	for _, id := range r.byUser[userID] {
		w := r.wagers[id]
		if w == nil {
			continue
		}
		switch w.Status {
		case domain.WagerCancelled, domain.WagerRefunded:
			continue
		case domain.WagerWon:
			s.Won++
		case domain.WagerLost:
			s.Lost++
		case domain.WagerPending:
			s.Pending++
		}
		s.TotalWagers++
		s.TotalAmount += w.Amount
		s.TotalWin += w.ActualWin
		s.Profit += w.Profit()
	}
	if settled := s.Won + s.Lost; settled > 0 {
		s.WinRate = math.Round(float64(s.Won)/float64(settled)*1000) / 10
	}
	return s
}
