package events

import "time"

// Wager é a visão pública de uma aposta nos eventos
type Wager struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	EventID      string     `json:"eventId"`
	OptionType   string     `json:"optionType"`
	OptionName   string     `json:"optionName"`
	Odds         float64    `json:"odds"`
	Amount       int64      `json:"amount"`
	PotentialWin int64      `json:"potentialWin"`
	ActualWin    int64      `json:"actualWin"`
	Status       string     `json:"status"`
	PlacedAt     time.Time  `json:"placedAt"`
	SettledAt    *time.Time `json:"settledAt,omitempty"`
}

// Enviado só ao dono (canal user:{id})
type WagerAccepted struct {
	Wager      Wager `json:"bet"`
	NewBalance int64 `json:"newBalance"`
}

// Enviado ao canal do evento; sem identificar o usuário
type WagerActivity struct {
	EventID    string    `json:"eventId"`
	Action     string    `json:"action"` // placed | cancelled
	Amount     int64     `json:"amount"`
	OptionName string    `json:"bettingOption"`
	Ts         time.Time `json:"timestamp"`
}

type WagerCancelled struct {
	WagerID    string `json:"betId"`
	EventID    string `json:"eventId"`
	Refunded   int64  `json:"refunded"`
	NewBalance int64  `json:"newBalance"`
}

type WagerSettled struct {
	WagerID    string `json:"betId"`
	EventID    string `json:"eventId"`
	Status     string `json:"status"` // won | lost | refunded
	WinAmount  int64  `json:"winAmount"`
	NewBalance int64  `json:"newBalance"`
}

type WagerError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
