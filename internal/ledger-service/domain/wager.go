package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type WagerStatus string

const (
	WagerPending   WagerStatus = "pending"
	WagerWon       WagerStatus = "won"
	WagerLost      WagerStatus = "lost"
	WagerCancelled WagerStatus = "cancelled"
	WagerRefunded  WagerStatus = "refunded"
)

func (s WagerStatus) Valid() bool {
	switch s {
	case WagerPending, WagerWon, WagerLost, WagerCancelled, WagerRefunded:
		return true
	}
	return false
}

// Terminal: pending é o único estado não terminal
func (s WagerStatus) Terminal() bool { return s != WagerPending }

// Settled indica won/lost (saída pelo settlement)
func (s WagerStatus) Settled() bool { return s == WagerWon || s == WagerLost }

// OptionSnapshot é a cópia imutável da opção no momento da aposta
type OptionSnapshot struct {
	Type OptionType `json:"type"`
	Name string     `json:"name"`
	Odds float64    `json:"odds"`
	Line float64    `json:"line,omitempty"`
}

func SnapshotOf(o Option) OptionSnapshot {
	return OptionSnapshot{Type: o.Type, Name: o.Name, Odds: o.Odds, Line: o.Line}
}

type Wager struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	EventID      string         `json:"eventId"`
	Option       OptionSnapshot `json:"bettingOption"`
	Amount       int64          `json:"amount"`
	PotentialWin int64          `json:"potentialWin"`
	ActualWin    int64          `json:"actualWin"`
	Status       WagerStatus    `json:"status"`
	PlacedAt     time.Time      `json:"placedAt"`
	SettledAt    *time.Time     `json:"settledAt,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// Profit: ganho líquido da aposta já liquidada
func (w Wager) Profit() int64 {
	switch w.Status {
	case WagerWon:
		return w.ActualWin - w.Amount
	case WagerLost:
		return -w.Amount
	}
	return 0
}

// PotentialWin = floor(stake × odds), em decimal para não perder centavos
// com odds tipo 2.3 (2299.999... em float64).
func PotentialWin(stake int64, odds float64) int64 {
	return decimal.NewFromInt(stake).Mul(decimal.NewFromFloat(odds)).Floor().IntPart()
}

func (w Wager) Clone() Wager {
	out := w
	if w.SettledAt != nil {
		t := *w.SettledAt
		out.SettledAt = &t
	}
	return out
}

// UserStats são os totais de apostas de um usuário
type UserStats struct {
	TotalWagers int     `json:"totalBets"`
	TotalAmount int64   `json:"totalAmount"`
	TotalWin    int64   `json:"totalWin"`
	Won         int     `json:"wonBets"`
	Lost        int     `json:"lostBets"`
	Pending     int     `json:"pendingBets"`
	WinRate     float64 `json:"winRate"`
	Profit      int64   `json:"profit"`
}
