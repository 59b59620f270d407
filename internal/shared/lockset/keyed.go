package lockset

import "sync"

// Keyed serializa operações por chave (userID, eventID, wagerID).
// Entradas são removidas quando ninguém mais espera pela chave.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Lock bloqueia a chave e devolve a função de unlock
func (k *Keyed) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

// Len devolve quantas chaves estão em uso
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Ordered agrupa os três escopos na ordem obrigatória user → event → wager.
// Quem precisa de mais de um escopo deve adquirir por aqui.
type Ordered struct {
	users  *Keyed
	events *Keyed
	wagers *Keyed
}

func NewOrdered() *Ordered {
	return &Ordered{users: NewKeyed(), events: NewKeyed(), wagers: NewKeyed()}
}

// Scope descreve as chaves a travar; campos vazios são ignorados
type Scope struct {
	User  string
	Event string
	Wager string
}

// Acquire trava as chaves do escopo na ordem user, event, wager
// e devolve o release (ordem inversa).
func (o *Ordered) Acquire(s Scope) (release func()) {
	var unlocks []func()
	if s.User != "" {
		unlocks = append(unlocks, o.users.Lock(s.User))
	}
	if s.Event != "" {
		unlocks = append(unlocks, o.events.Lock(s.Event))
	}
	if s.Wager != "" {
		unlocks = append(unlocks, o.wagers.Lock(s.Wager))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Idle indica que nenhuma chave está travada (usado em testes)
func (o *Ordered) Idle() bool {
	return o.users.Len() == 0 && o.events.Len() == 0 && o.wagers.Len() == 0
}
