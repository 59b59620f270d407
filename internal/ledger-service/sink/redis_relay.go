package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
)

// Publisher é o lado Pub/Sub de *redis.Client
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisRelay replica as mensagens publicadas neste nó no canal Redis,
// para que sessões conectadas a outros nós também as recebam
type RedisRelay struct {
	f       *fanout.Fanout
	r       Publisher
	channel string
	log     *zap.Logger

	Buffer  int
	OnError func()
}

func NewRedisRelay(f *fanout.Fanout, r Publisher, channel string, log *zap.Logger) *RedisRelay {
	return &RedisRelay{f: f, r: r, channel: channel, log: log}
}

func (s *RedisRelay) Run(ctx context.Context) {
	consume(ctx, s.f, s.Buffer, func(m fanout.Message) {
		if !local(s.f, m) {
			return
		}
		b, err := json.Marshal(m)
		if err != nil {
			s.log.Warn("relay marshal failed", zap.String("type", m.Kind), zap.Error(err))
			return
		}
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = s.r.Publish(pctx, s.channel, b).Err()
		cancel()
		if err != nil {
			s.log.Warn("relay publish failed", zap.String("channel", m.Channel), zap.Error(err))
			if s.OnError != nil {
				s.OnError()
			}
		}
	})
}
