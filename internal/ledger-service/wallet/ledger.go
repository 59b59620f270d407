package wallet

import (
	"fmt"
	"sync"
	"time"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
)

// Journal recebe cada mutação já aplicada; não pode bloquear
type Journal interface {
	AppendAccount(a domain.Account, e domain.LedgerEntry)
}

type account struct {
	mu  sync.Mutex
	acc domain.Account
}

// Ledger é o dono dos saldos. Cada conta tem seu próprio mutex,
// então operações de usuários distintos não competem entre si.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account
	journal  Journal
	now      func() time.Time
}

func NewLedger(j Journal) *Ledger {
	return &Ledger{accounts: make(map[string]*account), journal: j, now: time.Now}
}

// Restore carrega contas persistidas sem gerar lançamentos
func (l *Ledger) Restore(accs []domain.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range accs {
		l.accounts[a.UserID] = &account{acc: a}
	}
}

// Open cria a conta se ainda não existir; idempotente
func (l *Ledger) Open(userID, currency string, initial int64) (domain.Account, error) {
	if userID == "" || initial < 0 {
		return domain.Account{}, fmt.Errorf("%w: open account", domain.ErrInvalidInput)
	}
	l.mu.Lock()
	if _, ok := l.accounts[userID]; ok {
		l.mu.Unlock()
		return l.Balance(userID)
	}
	// a.mu travado antes de publicar no mapa: o OPEN sai antes de qualquer outro lançamento
	a := &account{acc: domain.Account{UserID: userID, Balance: initial, Currency: currency}}
	a.mu.Lock()
	defer a.mu.Unlock()
	l.accounts[userID] = a
	l.mu.Unlock()

	l.record(a, domain.OpOpen, initial, "")
	return a.acc, nil
}

func (l *Ledger) get(userID string) (*account, error) {
	l.mu.RLock()
	a, ok := l.accounts[userID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("account %s: %w", userID, domain.ErrNotFound)
	}
	return a, nil
}

// Balance devolve uma cópia da conta
func (l *Ledger) Balance(userID string) (domain.Account, error) {
	a, err := l.get(userID)
	if err != nil {
		return domain.Account{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acc, nil
}

// Reserve debita o valor (bloqueio para a aposta ref)
func (l *Ledger) Reserve(userID string, amount int64, ref string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	a, err := l.get(userID)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.acc.Balance < amount {
		return a.acc.Balance, domain.ErrInsufficientFunds
	}
	a.acc.Balance -= amount
	l.record(a, domain.OpReserve, amount, ref)
	return a.acc.Balance, nil
}

// Release devolve um valor reservado (cancelamento/estorno)
func (l *Ledger) Release(userID string, amount int64, ref string) (int64, error) {
	return l.add(userID, amount, domain.OpRelease, ref)
}

// Credit paga um prêmio
func (l *Ledger) Credit(userID string, amount int64, ref string) (int64, error) {
	return l.add(userID, amount, domain.OpCredit, ref)
}

// Deposit credita fundos vindos do gateway de pagamento
func (l *Ledger) Deposit(userID string, amount int64, ref string) (int64, error) {
	if amount < domain.MinDeposit {
		return 0, fmt.Errorf("%w: minimum deposit is %d", domain.ErrInvalidAmount, domain.MinDeposit)
	}
	return l.add(userID, amount, domain.OpDeposit, ref)
}

func (l *Ledger) add(userID string, amount int64, op domain.LedgerOp, ref string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	a, err := l.get(userID)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acc.Balance += amount
	l.record(a, op, amount, ref)
	return a.acc.Balance, nil
}

// record deve ser chamado com a.mu travado
func (l *Ledger) record(a *account, op domain.LedgerOp, amount int64, ref string) {
	if l.journal == nil {
		return
	}
	l.journal.AppendAccount(a.acc, domain.LedgerEntry{
		UserID:       a.acc.UserID,
		Op:           op,
		Amount:       amount,
		BalanceAfter: a.acc.Balance,
		Ref:          ref,
		At:           l.now(),
	})
}
