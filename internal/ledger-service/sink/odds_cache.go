package sink

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

// KV é o subconjunto de *redis.Client usado pelo cache
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

func keyEvent(eventID string) string { return "odds:event:" + eventID }

// OddsCache guarda o último odds.updated de cada evento
type OddsCache struct {
	f   *fanout.Fanout
	r   KV
	ttl time.Duration
	log *zap.Logger

	Buffer int
}

func NewOddsCache(f *fanout.Fanout, r KV, ttl time.Duration, log *zap.Logger) *OddsCache {
	return &OddsCache{f: f, r: r, ttl: ttl, log: log}
}

func (c *OddsCache) Run(ctx context.Context) {
	consume(ctx, c.f, c.Buffer, func(m fanout.Message) {
		if m.Kind != events.KindOddsUpdated || !local(c.f, m) {
			return
		}
		upd, ok := m.Payload.(events.OddsUpdated)
		if !ok {
			return
		}
		if err := c.SetOdds(ctx, upd); err != nil {
			c.log.Warn("odds cache set failed", zap.String("eventId", upd.EventID), zap.Error(err))
		}
	})
}

func (c *OddsCache) SetOdds(ctx context.Context, upd events.OddsUpdated) error {
	b, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	return c.r.Set(ctx, keyEvent(upd.EventID), b, c.ttl).Err()
}

// GetOdds devolve (snapshot, encontrado, erro)
func (c *OddsCache) GetOdds(ctx context.Context, eventID string) (events.OddsUpdated, bool, error) {
	b, err := c.r.Get(ctx, keyEvent(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return events.OddsUpdated{}, false, nil
	}
	if err != nil {
		return events.OddsUpdated{}, false, err
	}
	var upd events.OddsUpdated
	if err := json.Unmarshal(b, &upd); err != nil {
		return events.OddsUpdated{}, false, err
	}
	return upd, true, nil
}
