// Package sink liga o fanout a destinos externos: relay Redis entre nós,
// cache de odds no Redis e trilha de auditoria no Kafka. Cada sink consome
// um tap do fanout numa goroutine própria; nenhum I/O acontece sob lock.
package sink

import (
	"context"

	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
)

const defaultTapBuffer = 1024

// consume lê o tap até ctx acabar e fecha o tap na saída
func consume(ctx context.Context, f *fanout.Fanout, buffer int, fn func(fanout.Message)) {
	if buffer <= 0 {
		buffer = defaultTapBuffer
	}
	tap := f.Tap(buffer)
	defer f.Close(tap)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-tap.C():
			if !ok {
				return
			}
			fn(m)
		}
	}
}

// local: só mensagens originadas neste nó (as remotas já passaram pelo sink do nó de origem)
func local(f *fanout.Fanout, m fanout.Message) bool { return m.Origin == f.Node() }
