package heartbeat

import (
	"context"
	"time"

	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

// Broadcaster é o fanout visto pelo heartbeat
type Broadcaster interface {
	Publish(channel, kind string, payload any)
	Sessions() int
}

// Run publica system.heartbeat a cada intervalo até ctx acabar.
// Periférico: não participa de nenhuma invariante do ledger.
func Run(ctx context.Context, b Broadcaster, every time.Duration, onTick func(sessions int)) {
	if every <= 0 {
		every = 30 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n := b.Sessions()
			b.Publish(fanout.SystemChannel, events.KindHeartbeat, events.Heartbeat{Timestamp: now, ConnectedSessions: n})
			if onTick != nil {
				onTick(n)
			}
		}
	}
}
