package domain

import "time"

type LedgerOp string

const (
	OpOpen    LedgerOp = "OPEN"
	OpDeposit LedgerOp = "DEPOSIT"
	OpReserve LedgerOp = "RESERVE"
	OpRelease LedgerOp = "RELEASE"
	OpCredit  LedgerOp = "CREDIT"
)

// LedgerEntry registra cada delta aplicado ao saldo
type LedgerEntry struct {
	UserID       string    `json:"userId"`
	Op           LedgerOp  `json:"op"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balanceAfter"`
	Ref          string    `json:"ref,omitempty"`
	At           time.Time `json:"at"`
}

// Delta devolve o efeito assinado da operação no saldo
func (e LedgerEntry) Delta() int64 {
	if e.Op == OpReserve {
		return -e.Amount
	}
	return e.Amount
}
