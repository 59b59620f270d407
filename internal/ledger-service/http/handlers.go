package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/internal/ledger-service/dto"
	"github.com/radieske/livebet-ledger/internal/ledger-service/wagers"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

// ---- eventos (público) ----

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	status := domain.EventStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.ListEvents(status))
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.svc.GetEvent(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// getOdds: cache primeiro, board como fonte de verdade
func (s *Server) getOdds(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.odds != nil {
		upd, ok, err := s.odds.GetOdds(r.Context(), id)
		if err != nil {
			s.log.Warn("odds cache read failed", zap.String("eventId", id), zap.Error(err))
		}
		if ok {
			w.Header().Set("X-Cache", "HIT")
			writeJSON(w, http.StatusOK, upd)
			return
		}
	}
	ev, err := s.svc.GetEvent(id)
	if err != nil {
		writeError(w, err)
		return
	}
	upd := events.OddsUpdated{EventID: ev.ID, Options: dto.Options(ev.Options), Ts: time.Now()}
	if s.odds != nil {
		if err := s.odds.SetOdds(r.Context(), upd); err != nil {
			s.log.Warn("odds cache warm failed", zap.String("eventId", id), zap.Error(err))
		}
	}
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, upd)
}

// ---- carteira ----

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	acc, err := s.svc.Balance(identity(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Wallet{Balance: acc.Balance, Currency: acc.Currency})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := identity(r)
	target := id.UserID
	if req.UserID != "" && req.UserID != id.UserID {
		if !id.Admin() {
			writeError(w, domain.ErrForbidden)
			return
		}
		target = req.UserID
	}
	acc, err := s.svc.Deposit(target, req.Amount, req.Ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Wallet{Balance: acc.Balance, Currency: acc.Currency})
}

// ---- apostas ----

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceWagerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	uid := identity(r).UserID
	p, err := s.svc.PlaceWager(wagers.PlaceRequest{
		UserID:       uid,
		EventID:      req.EventID,
		Option:       domain.OptionRef{Type: domain.OptionType(req.Option.Type), Name: req.Option.Name},
		Amount:       req.Amount,
		ExpectedOdds: req.Option.Odds,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	acc, _ := s.svc.Balance(uid)
	writeJSON(w, http.StatusCreated, dto.PlaceWagerResponse{
		Message: "bet placed",
		Wager:   dto.Wager(p.Wager),
		Wallet:  dto.Wallet{Balance: p.Balance, Currency: acc.Currency},
	})
}

func (s *Server) cancelWager(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.CancelWager(identity(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CancelWagerResponse{Message: "bet cancelled", NewBalance: c.Balance})
}

func (s *Server) activeWagers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.WagerListResponse{Wagers: dto.Wagers(s.svc.ListActiveWagers(identity(r).UserID))})
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	wg, err := s.svc.GetWager(identity(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Wager(wg))
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.WagerStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	ws, total := s.svc.History(identity(r).UserID, status, page, limit)
	writeJSON(w, http.StatusOK, dto.HistoryResponse{
		Wagers:      dto.Wagers(ws),
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		Total:       total,
	})
}

func (s *Server) userStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetStats(identity(r).UserID))
}

// ---- administração de eventos ----

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEventRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ev, err := s.svc.CreateEvent(domain.Event{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Category:    domain.Category(req.Category),
		Teams:       domain.Teams{Home: domain.Team{Name: req.HomeTeam}, Away: domain.Team{Name: req.AwayTeam}},
		StartTime:   req.StartTime,
		Options:     dto.OptionsFrom(req.Options),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.StatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ev, err := s.svc.SetEventStatus(chi.URLParam(r, "id"), domain.EventStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) replaceOdds(w http.ResponseWriter, r *http.Request) {
	var req dto.OddsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ev, err := s.svc.ReplaceOptions(chi.URLParam(r, "id"), dto.OptionsFrom(req.Options))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) reportResult(w http.ResponseWriter, r *http.Request) {
	var req dto.ResultRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	out := domain.Outcome{
		Winner:  domain.Winner(req.Winner),
		Score:   domain.Score{Home: req.Score.Home, Away: req.Score.Away},
		Details: req.Details,
	}
	sum, err := s.svc.ReportResult(r.Context(), chi.URLParam(r, "id"), out)
	if err != nil {
		s.log.Warn("report result", zap.String("eventId", chi.URLParam(r, "id")), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum.Contract())
}

func (s *Server) voidEvent(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.VoidEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum.Contract())
}

func (s *Server) settleWager(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleWagerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	wg, err := s.svc.SettleWager(r.Context(), chi.URLParam(r, "id"), domain.WagerStatus(req.Status))
	if err != nil {
		s.log.Warn("settle wager", zap.String("wagerId", chi.URLParam(r, "id")), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Wager(wg))
}
