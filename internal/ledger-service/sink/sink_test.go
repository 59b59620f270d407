package sink

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
	"github.com/radieske/livebet-ledger/internal/shared/kafka"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

// startSink roda fn até o fim do teste e espera o tap ser registrado
func startSink(t *testing.T, f *fanout.Fanout, run func(context.Context)) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	before := f.Taps()
	go func() {
		defer close(done)
		run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool { return f.Taps() == before+1 }, time.Second, time.Millisecond)
}

// bus simula o canal Redis: entrega a cada subscriber registrado
type bus struct {
	mu   sync.Mutex
	sent []string
	subs []*RedisSubscriber
}

func (b *bus) Publish(ctx context.Context, _ string, message interface{}) *redis.IntCmd {
	payload := string(message.([]byte))
	b.mu.Lock()
	b.sent = append(b.sent, payload)
	subs := append([]*RedisSubscriber(nil), b.subs...)
	b.mu.Unlock()
	for _, s := range subs {
		s.handle(payload)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(subs)))
	return cmd
}

func (b *bus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

func TestRelayReplicatesAcrossNodes(t *testing.T) {
	a := fanout.New(fanout.WithNode("node-a"))
	b := fanout.New(fanout.WithNode("node-b"))
	br := &bus{}
	br.subs = []*RedisSubscriber{
		NewRedisSubscriber(a, nil, "ledger_broadcast", zap.NewNop()),
		NewRedisSubscriber(b, nil, "ledger_broadcast", zap.NewNop()),
	}
	startSink(t, a, NewRedisRelay(a, br, "ledger_broadcast", zap.NewNop()).Run)
	startSink(t, b, NewRedisRelay(b, br, "ledger_broadcast", zap.NewNop()).Run)

	onA := a.Open("u1", 8)
	onB := b.Open("u2", 8)
	a.Join(onA, fanout.EventChannel("m1"))
	b.Join(onB, fanout.EventChannel("m1"))

	a.Publish(fanout.EventChannel("m1"), events.KindOddsUpdated, events.OddsUpdated{EventID: "m1"})

	select {
	case m := <-onB.C():
		assert.Equal(t, "node-a", m.Origin)
		assert.Equal(t, events.KindOddsUpdated, m.Kind)
		raw, ok := m.Payload.(json.RawMessage)
		require.True(t, ok)
		var upd events.OddsUpdated
		require.NoError(t, json.Unmarshal(raw, &upd))
		assert.Equal(t, "m1", upd.EventID)
	case <-time.After(time.Second):
		t.Fatal("remote node did not receive")
	}

	// entrega local só uma vez; a cópia remota não volta ao relay
	m := <-onA.C()
	assert.Equal(t, events.KindOddsUpdated, m.Kind)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, onA.C(), 0)
	assert.Equal(t, 1, br.count())
}

func TestSubscriberIgnoresOwnAndMalformed(t *testing.T) {
	f := fanout.New(fanout.WithNode("self"))
	s := NewRedisSubscriber(f, nil, "c", zap.NewNop())
	sess := f.Open("u1", 8)

	s.handle("{broken")
	own, _ := json.Marshal(fanout.Message{Channel: fanout.UserChannel("u1"), Kind: "x", Origin: "self"})
	s.handle(string(own))
	assert.Len(t, sess.C(), 0)

	other, _ := json.Marshal(fanout.Message{Channel: fanout.UserChannel("u1"), Kind: "x", Origin: "peer", Seq: 7})
	s.handle(string(other))
	require.Len(t, sess.C(), 1)
	m := <-sess.C()
	assert.Equal(t, uint64(7), m.Seq)
}

type memKV struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
}

func newKV() *memKV { return &memKV{data: map[string]string{}, ttl: map[string]time.Duration{}} }

func (k *memKV) Get(ctx context.Context, key string) *redis.StringCmd {
	k.mu.Lock()
	defer k.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if v, ok := k.data[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (k *memKV) Set(ctx context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = string(value.([]byte))
	k.ttl[key] = exp
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (k *memKV) has(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.data[key]
	return ok
}

func TestOddsCacheFollowsLocalUpdates(t *testing.T) {
	f := fanout.New()
	kv := newKV()
	c := NewOddsCache(f, kv, 10*time.Minute, zap.NewNop())
	startSink(t, f, c.Run)

	_, found, err := c.GetOdds(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, found)

	f.Publish(fanout.EventChannel("m1"), events.KindOddsUpdated, events.OddsUpdated{
		EventID: "m1",
		Options: []events.Option{{Type: "win", Name: "home-win", Odds: 1.9, Active: true}},
	})
	f.Publish(fanout.EventChannel("m2"), events.KindStatsUpdated, events.StatsUpdated{EventID: "m2"})
	require.Eventually(t, func() bool { return kv.has("odds:event:m1") }, time.Second, time.Millisecond)

	upd, found, err := c.GetOdds(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, upd.Options, 1)
	assert.Equal(t, 1.9, upd.Options[0].Odds)
	assert.Equal(t, 10*time.Minute, kv.ttl["odds:event:m1"])
	assert.False(t, kv.has("odds:event:m2"))
}

type memWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) snapshot() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestKafkaAuditWritesWagerTrail(t *testing.T) {
	f := fanout.New(fanout.WithNode("n1"))
	w := &memWriter{}
	startSink(t, f, NewKafkaAudit(f, w, zap.NewNop()).Run)

	f.Publish(fanout.UserChannel("u1"), events.KindWagerAccepted, events.WagerAccepted{Wager: events.Wager{ID: "w1", EventID: "m1"}})
	f.Publish(fanout.EventChannel("m1"), events.KindWagerActivity, events.WagerActivity{EventID: "m1"})
	f.Publish(fanout.EventChannel("m1"), events.KindEventStatus, events.EventStatusChanged{EventID: "m1", Status: "live"})
	f.Deliver(fanout.Message{Channel: fanout.UserChannel("u9"), Kind: events.KindWagerSettled, Origin: "n2"})

	require.Eventually(t, func() bool { return len(w.snapshot()) == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	msgs := w.snapshot()
	require.Len(t, msgs, 2)

	assert.Equal(t, "user:u1", string(msgs[0].Key))
	var rec struct {
		Kind    string `json:"type"`
		Node    string `json:"node"`
		Payload struct {
			Wager struct {
				ID string `json:"id"`
			} `json:"bet"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Value, &rec))
	assert.Equal(t, events.KindWagerAccepted, rec.Kind)
	assert.Equal(t, "n1", rec.Node)
	assert.Equal(t, "w1", rec.Payload.Wager.ID)

	assert.Equal(t, "event:m1", string(msgs[1].Key))
	assert.Equal(t, events.KindEventStatus, string(msgs[1].Headers[0].Value))
}
