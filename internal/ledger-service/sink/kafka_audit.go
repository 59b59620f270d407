package sink

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
	"github.com/radieske/livebet-ledger/internal/shared/kafka"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

const maxAuditBatch = 100

// AuditRecord é a linha publicada no tópico wager_events
type AuditRecord struct {
	Kind    string    `json:"type"`
	Channel string    `json:"channel"`
	Seq     uint64    `json:"seq"`
	Node    string    `json:"node"`
	Ts      time.Time `json:"ts"`
	Payload any       `json:"payload"`
}

// KafkaAudit grava no Kafka a trilha das mudanças de aposta (canal do dono)
// e das mudanças de status de evento
type KafkaAudit struct {
	f   *fanout.Fanout
	w   kafka.MessageWriter
	log *zap.Logger

	Buffer  int
	OnError func()
}

func NewKafkaAudit(f *fanout.Fanout, w kafka.MessageWriter, log *zap.Logger) *KafkaAudit {
	return &KafkaAudit{f: f, w: w, log: log}
}

// audited: accepted/cancelled/settled no canal user:, event.status no canal do evento
func audited(m fanout.Message) bool {
	switch m.Kind {
	case events.KindWagerAccepted, events.KindWagerCancelled, events.KindWagerSettled:
		return strings.HasPrefix(m.Channel, "user:")
	case events.KindEventStatus:
		return true
	}
	return false
}

func (a *KafkaAudit) Run(ctx context.Context) {
	buffer := a.Buffer
	if buffer <= 0 {
		buffer = defaultTapBuffer
	}
	tap := a.f.Tap(buffer)
	defer a.f.Close(tap)

	batch := make([]kafka.Message, 0, maxAuditBatch)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-tap.C():
			if !ok {
				return
			}
			batch = a.add(batch, m)
		drain:
			for len(batch) < maxAuditBatch {
				select {
				case m, ok := <-tap.C():
					if !ok {
						break drain
					}
					batch = a.add(batch, m)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				a.write(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (a *KafkaAudit) add(batch []kafka.Message, m fanout.Message) []kafka.Message {
	if !audited(m) || !local(a.f, m) {
		return batch
	}
	b, err := json.Marshal(AuditRecord{Kind: m.Kind, Channel: m.Channel, Seq: m.Seq, Node: m.Origin, Ts: m.Ts, Payload: m.Payload})
	if err != nil {
		a.log.Warn("audit marshal failed", zap.String("type", m.Kind), zap.Error(err))
		return batch
	}
	return append(batch, kafka.Message{
		Key:     []byte(m.Channel), // mesma chave → mesma partição → ordem por usuário/evento
		Value:   b,
		Time:    m.Ts,
		Headers: []kafka.Header{{Key: "type", Value: []byte(m.Kind)}},
	})
}

func (a *KafkaAudit) write(ctx context.Context, batch []kafka.Message) {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.w.WriteMessages(wctx, batch...); err != nil {
		a.log.Warn("audit write failed", zap.Int("messages", len(batch)), zap.Error(err))
		if a.OnError != nil {
			a.OnError()
		}
	}
}
