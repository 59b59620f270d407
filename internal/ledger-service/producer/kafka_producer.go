package producer

import (
	"context"
	"time"

	"github.com/radieske/livebet-ledger/internal/shared/kafka"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

// KafkaPublisher publica os resumos de settlement (key = eventId)
type KafkaPublisher struct {
	Writer kafka.MessageWriter
	now    func() time.Time
}

func NewKafkaPublisher(w kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, now: time.Now}
}

func (p *KafkaPublisher) PublishSummary(ctx context.Context, s events.SettlementSummary) error {
	if s.Ts.IsZero() {
		s.Ts = p.now()
	}
	return kafka.WriteJSON(ctx, p.Writer, s.EventID, s,
		kafka.Header{Key: "type", Value: []byte("settlement.summary")})
}
