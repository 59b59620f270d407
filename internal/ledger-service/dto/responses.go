package dto

import "github.com/radieske/livebet-ledger/pkg/contracts/events"

type PlaceWagerResponse struct {
	Message string       `json:"message"`
	Wager   events.Wager `json:"bet"`
	Wallet  Wallet       `json:"wallet"`
}

type Wallet struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

type CancelWagerResponse struct {
	Message    string `json:"message"`
	NewBalance int64  `json:"newBalance"`
}

type WagerListResponse struct {
	Wagers []events.Wager `json:"bets"`
}

type HistoryResponse struct {
	Wagers      []events.Wager `json:"bets"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Total       int            `json:"total"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
