package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/internal/ledger-service/service"
	"github.com/radieske/livebet-ledger/internal/ledger-service/settlement"
	"github.com/radieske/livebet-ledger/internal/shared/kafka"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

// Ledger é o que os consumidores precisam do service
type Ledger interface {
	ReportResult(ctx context.Context, eventID string, out domain.Outcome) (settlement.Summary, error)
	SetEventStatus(eventID string, status domain.EventStatus) (domain.Event, error)
}

// Handler processa uma mensagem já lida
type Handler func(ctx context.Context, m kafka.Message) error

// DeadLetter é o que vai para a DLQ quando a mensagem não pôde ser aplicada
type DeadLetter struct {
	Topic     string    `json:"topic"`
	Partition int       `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       string    `json:"key,omitempty"`
	Value     string    `json:"value"`
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	FailedAt  time.Time `json:"failed_at"`
	Attempts  int       `json:"attempts"`
}

// Processor consome um tópico de entrada e aplica cada mensagem no ledger.
// Erros de domínio vão direto para a DLQ; erros internos são tentados de novo.
type Processor struct {
	Log    *zap.Logger
	Reader kafka.MessageReader
	Topic  string
	Handle Handler
	DLQ    kafka.MessageWriter // opcional

	Retries int
	Backoff time.Duration

	OnConsumed func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop de consumo; retorna quando o contexto é cancelado
func (p *Processor) Run(ctx context.Context) error {
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.String("topic", p.Topic), zap.Error(err))
			p.fail("read")
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		if err := p.process(ctx, m); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (p *Processor) process(ctx context.Context, m kafka.Message) error {
	attempts := 1
	err := p.Handle(ctx, m)
	for err != nil && retryable(err) && attempts <= p.Retries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sleep(ctx, time.Duration(attempts)*p.Backoff)
		attempts++
		err = p.Handle(ctx, m)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.Log.Error("intake message rejected",
		zap.String("topic", m.Topic),
		zap.Int64("offset", m.Offset),
		zap.String("code", domain.Code(err)),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	p.fail("handle")
	if p.DLQ == nil {
		return err
	}
	dl := DeadLetter{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       string(m.Key),
		Value:     string(m.Value),
		Error:     err.Error(),
		Code:      domain.Code(err),
		FailedAt:  time.Now(),
		Attempts:  attempts,
	}
	if werr := kafka.WriteJSON(ctx, p.DLQ, string(m.Key), dl); werr != nil {
		p.Log.Error("dlq write failed", zap.Error(werr))
		p.fail("dlq")
	}
	return err
}

func (p *Processor) fail(phase string) {
	if p.OnError != nil {
		p.OnError(phase)
	}
}

// retryable: só erros fora da taxonomia do domínio (INTERNAL)
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return domain.Code(err) == "INTERNAL"
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ResultHandler aplica relatórios de resultado (tópico event_results)
func ResultHandler(l Ledger, log *zap.Logger) Handler {
	return func(ctx context.Context, m kafka.Message) error {
		var rr events.ResultReported
		if err := json.Unmarshal(m.Value, &rr); err != nil {
			return fmt.Errorf("%w: decode result: %v", domain.ErrInvalidInput, err)
		}
		if rr.EventID == "" {
			return fmt.Errorf("%w: event_id required", domain.ErrInvalidInput)
		}
		out, err := service.ParseOutcome(rr.Outcome)
		if err != nil {
			return err
		}
		sum, err := l.ReportResult(ctx, rr.EventID, out)
		if err != nil {
			return err
		}
		fields := []zap.Field{
			zap.String("eventId", sum.EventID),
			zap.String("source", rr.Source),
			zap.Int("won", sum.Won),
			zap.Int("lost", sum.Lost),
			zap.Int("refunded", sum.Refunded),
			zap.Int("skipped", sum.Skipped),
			zap.Int64("paidOut", sum.PaidOut),
		}
		if len(sum.Failures) > 0 || len(sum.Unresolved) > 0 {
			log.Warn("settlement incomplete", append(fields,
				zap.Int("failures", len(sum.Failures)),
				zap.Strings("unresolved", sum.Unresolved))...)
			return nil
		}
		log.Info("event settled", fields...)
		return nil
	}
}

// StatusHandler aplica mudanças de status da moderação (tópico event_status)
func StatusHandler(l Ledger, log *zap.Logger) Handler {
	return func(_ context.Context, m kafka.Message) error {
		var sc events.StatusChanged
		if err := json.Unmarshal(m.Value, &sc); err != nil {
			return fmt.Errorf("%w: decode status: %v", domain.ErrInvalidInput, err)
		}
		if sc.EventID == "" {
			return fmt.Errorf("%w: event_id required", domain.ErrInvalidInput)
		}
		ev, err := l.SetEventStatus(sc.EventID, domain.EventStatus(sc.Status))
		if err != nil {
			return err
		}
		log.Info("event status changed", zap.String("eventId", ev.ID), zap.String("status", string(ev.Status)))
		return nil
	}
}
