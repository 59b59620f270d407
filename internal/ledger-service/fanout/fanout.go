package fanout

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Canais nomeados: event:{id} para quem assiste o evento, user:{id} privado
// do dono das apostas, system para todos.
const SystemChannel = "system"

func EventChannel(eventID string) string { return "event:" + eventID }
func UserChannel(userID string) string   { return "user:" + userID }

// Message é o envelope entregue às sessões
type Message struct {
	Channel string    `json:"channel"`
	Kind    string    `json:"type"`
	Seq     uint64    `json:"seq"`
	Ts      time.Time `json:"ts"`
	Origin  string    `json:"origin,omitempty"`
	Payload any       `json:"payload"`
}

// Session é uma conexão inscrita. Entrega best-effort: buffer cheio descarta.
type Session struct {
	ID     string
	UserID string

	out    chan Message
	mu     sync.Mutex
	closed bool
	// canais em que está inscrita; protegido por Fanout.mu
	channels map[string]struct{}
}

// C devolve o canal de saída; fecha quando a sessão é encerrada
func (s *Session) C() <-chan Message { return s.out }

func (s *Session) deliver(m Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- m:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// Fanout implementa o pub/sub por escopo
type Fanout struct {
	node string

	mu       sync.RWMutex
	subs     map[string]map[*Session]struct{}
	sessions map[*Session]struct{}
	taps     map[*Session]struct{}

	seq    atomic.Uint64
	onDrop func(channel string)
	now    func() time.Time
}

type Option func(*Fanout)

// WithNode define o id do nó (origem das mensagens replicadas)
func WithNode(id string) Option { return func(f *Fanout) { f.node = id } }

// WithDropHook é chamado a cada mensagem descartada por buffer cheio
func WithDropHook(fn func(channel string)) Option { return func(f *Fanout) { f.onDrop = fn } }

func New(opts ...Option) *Fanout {
	f := &Fanout{
		node:     uuid.NewString(),
		subs:     make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]struct{}),
		taps:     make(map[*Session]struct{}),
		now:      time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Fanout) Node() string { return f.node }

// Open registra uma sessão já inscrita no canal privado e no system
func (f *Fanout) Open(userID string, buffer int) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		out:      make(chan Message, buffer),
		channels: make(map[string]struct{}),
	}
	f.mu.Lock()
	f.sessions[s] = struct{}{}
	f.mu.Unlock()
	if userID != "" {
		f.Join(s, UserChannel(userID))
	}
	f.Join(s, SystemChannel)
	return s
}

// Tap recebe todas as mensagens publicadas (sinks: redis, kafka, cache)
func (f *Fanout) Tap(buffer int) *Session {
	s := &Session{ID: uuid.NewString(), out: make(chan Message, buffer)}
	f.mu.Lock()
	f.taps[s] = struct{}{}
	f.mu.Unlock()
	return s
}

// Join inscreve a sessão; devolve false se já estava inscrita
func (f *Fanout) Join(s *Session, channel string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s]; !ok {
		return false
	}
	if _, ok := s.channels[channel]; ok {
		return false
	}
	set, ok := f.subs[channel]
	if !ok {
		set = make(map[*Session]struct{})
		f.subs[channel] = set
	}
	set[s] = struct{}{}
	s.channels[channel] = struct{}{}
	return true
}

// Leave remove a inscrição; devolve false se não estava inscrita
func (f *Fanout) Leave(s *Session, channel string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaveLocked(s, channel)
}

func (f *Fanout) leaveLocked(s *Session, channel string) bool {
	if _, ok := s.channels[channel]; !ok {
		return false
	}
	delete(s.channels, channel)
	if set, ok := f.subs[channel]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(f.subs, channel)
		}
	}
	return true
}

// Close encerra a sessão e devolve os canais que ela deixou
func (f *Fanout) Close(s *Session) []string {
	f.mu.Lock()
	var left []string
	if _, ok := f.sessions[s]; ok {
		for ch := range s.channels {
			left = append(left, ch)
		}
		for _, ch := range left {
			f.leaveLocked(s, ch)
		}
		delete(f.sessions, s)
	}
	delete(f.taps, s)
	f.mu.Unlock()
	s.close()
	return left
}

// Publish entrega kind/payload a todas as sessões do canal e aos taps.
// Nunca bloqueia, então pode ser chamado dentro de seções críticas.
func (f *Fanout) Publish(channel, kind string, payload any) {
	f.Deliver(Message{
		Channel: channel,
		Kind:    kind,
		Seq:     f.seq.Add(1),
		Ts:      f.now(),
		Origin:  f.node,
		Payload: payload,
	})
}

// Deliver entrega uma mensagem pronta (usado também pelo relay de outros nós)
func (f *Fanout) Deliver(m Message) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for s := range f.subs[m.Channel] {
		if !s.deliver(m) && f.onDrop != nil {
			f.onDrop(m.Channel)
		}
	}
	for s := range f.taps {
		if !s.deliver(m) && f.onDrop != nil {
			f.onDrop("tap")
		}
	}
}

// SendTo entrega só para uma sessão (respostas diretas do protocolo)
func (f *Fanout) SendTo(s *Session, kind string, payload any) bool {
	return s.deliver(Message{Channel: UserChannel(s.UserID), Kind: kind, Seq: f.seq.Add(1), Ts: f.now(), Origin: f.node, Payload: payload})
}

// Sessions conta sessões conectadas (sem taps)
func (f *Fanout) Sessions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}

// Taps conta os sinks conectados
func (f *Fanout) Taps() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.taps)
}

// Subscribers conta sessões inscritas em um canal
func (f *Fanout) Subscribers(channel string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[channel])
}
