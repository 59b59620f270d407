package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
)

// remoteMessage é o envelope recebido de outro nó; o payload segue cru
type remoteMessage struct {
	Channel string          `json:"channel"`
	Kind    string          `json:"type"`
	Seq     uint64          `json:"seq"`
	Ts      time.Time       `json:"ts"`
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// RedisSubscriber escuta o canal de broadcast e entrega no fanout local
// as mensagens publicadas por outros nós
type RedisSubscriber struct {
	f       *fanout.Fanout
	r       *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisSubscriber(f *fanout.Fanout, r *redis.Client, channel string, log *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{f: f, r: r, channel: channel, log: log}
}

func (s *RedisSubscriber) Run(ctx context.Context) {
	sub := s.r.Subscribe(ctx, s.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			s.handle(msg.Payload)
		}
	}
}

func (s *RedisSubscriber) handle(payload string) {
	var rm remoteMessage
	if err := json.Unmarshal([]byte(payload), &rm); err != nil {
		s.log.Warn("broadcast unmarshal failed", zap.Error(err))
		return
	}
	// o próprio nó já entregou localmente
	if rm.Origin == "" || rm.Origin == s.f.Node() || rm.Channel == "" {
		return
	}
	s.f.Deliver(fanout.Message{
		Channel: rm.Channel,
		Kind:    rm.Kind,
		Seq:     rm.Seq,
		Ts:      rm.Ts,
		Origin:  rm.Origin,
		Payload: rm.Payload,
	})
}
