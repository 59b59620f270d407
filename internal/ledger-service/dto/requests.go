package dto

import "time"

type PlaceWagerRequest struct {
	EventID string `json:"matchId"`
	Option  struct {
		Type string  `json:"type"`
		Name string  `json:"name"`
		Odds float64 `json:"odds"` // odd que o cliente viu; 0 = aceita a corrente
	} `json:"bettingOption"`
	Amount int64 `json:"amount"`
}

type DepositRequest struct {
	UserID string `json:"userId,omitempty"` // só admin credita outro usuário
	Amount int64  `json:"amount"`
	Ref    string `json:"ref,omitempty"`
}

type OptionRequest struct {
	Type   string  `json:"type"`
	Name   string  `json:"name"`
	Odds   float64 `json:"odds"`
	Line   float64 `json:"line,omitempty"`
	Active *bool   `json:"isActive,omitempty"` // default true
	MinBet int64   `json:"minBet,omitempty"`
	MaxBet int64   `json:"maxBet,omitempty"`
}

type CreateEventRequest struct {
	ID          string          `json:"id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	HomeTeam    string          `json:"homeTeam"`
	AwayTeam    string          `json:"awayTeam"`
	StartTime   time.Time       `json:"startTime"`
	Options     []OptionRequest `json:"bettingOptions"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type OddsRequest struct {
	Options []OptionRequest `json:"bettingOptions"`
}

type SettleWagerRequest struct {
	Status string `json:"status"` // won | lost | refunded
}

type ResultRequest struct {
	Winner string `json:"winner"`
	Score  struct {
		Home int `json:"home"`
		Away int `json:"away"`
	} `json:"score"`
	Details string `json:"details,omitempty"`
}
