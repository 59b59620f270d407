package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/auth"
	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/internal/ledger-service/dto"
	"github.com/radieske/livebet-ledger/internal/ledger-service/service"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

// Server expõe a superfície REST do ledger
type Server struct {
	log  *zap.Logger
	svc  *service.Service
	auth auth.Resolver
	ws   http.Handler // opcional: /ws
	odds OddsCache    // opcional: snapshot de odds no Redis
}

// OddsCache é o cache de leitura de odds (sink.OddsCache)
type OddsCache interface {
	GetOdds(ctx context.Context, eventID string) (events.OddsUpdated, bool, error)
	SetOdds(ctx context.Context, upd events.OddsUpdated) error
}

func NewServer(log *zap.Logger, svc *service.Service, resolver auth.Resolver, ws http.Handler) *Server {
	return &Server{log: log, svc: svc, auth: resolver, ws: ws}
}

// WithOddsCache liga o cache em GET /v1/events/{id}/odds
func (s *Server) WithOddsCache(c OddsCache) *Server {
	s.odds = c
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", s.listEvents)
		r.Get("/events/{id}", s.getEvent)
		r.Get("/events/{id}/odds", s.getOdds)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/wallet", s.getWallet)
			r.Post("/wallet/deposit", s.deposit)

			r.Post("/bets", s.placeWager)
			r.Get("/bets/active", s.activeWagers)
			r.Get("/bets/history", s.history)
			r.Get("/bets/stats", s.userStats)
			r.Get("/bets/{id}", s.getWager)
			r.Post("/bets/{id}/cancel", s.cancelWager)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/events", s.createEvent)
				r.Put("/events/{id}/status", s.setStatus)
				r.Put("/events/{id}/odds", s.replaceOdds)
				r.Post("/events/{id}/result", s.reportResult)
				r.Post("/events/{id}/void", s.voidEvent)
				r.Post("/bets/{id}/settle", s.settleWager)
			})
		})
	})
	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.auth.Resolve(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthenticated", Code: "UNAUTHENTICATED"})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := auth.FromContext(r.Context()); !id.Admin() {
			writeError(w, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())),
		)
	})
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// statusFor mapeia o tipo de erro de domínio para o status HTTP
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadySettled),
		errors.Is(err, domain.ErrNotCancellable),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrResultConflict),
		errors.Is(err, domain.ErrOddsChanged),
		errors.Is(err, domain.ErrEventNotWagerable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOptionInactive),
		errors.Is(err, domain.ErrOutOfBounds),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, dto.ErrorResponse{Error: msg, Code: domain.Code(err)})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}
