package events

import "time"

type Option struct {
	Type   string  `json:"type"`
	Name   string  `json:"name"`
	Odds   float64 `json:"odds"`
	Line   float64 `json:"line,omitempty"`
	Active bool    `json:"isActive"`
	MinBet int64   `json:"minBet"`
	MaxBet int64   `json:"maxBet"`
}

type OddsUpdated struct {
	EventID string    `json:"matchId"`
	Options []Option  `json:"bettingOptions"`
	Ts      time.Time `json:"ts"`
}

type Side struct {
	Count  int   `json:"count"`
	Staked int64 `json:"staked"`
}

type StatsUpdated struct {
	EventID        string          `json:"matchId"`
	CurrentViewers int             `json:"currentViewers"`
	WagerCount     int             `json:"totalBets"`
	TotalStaked    int64           `json:"totalAmount"`
	BySide         map[string]Side `json:"bySide"`
}

type EventStatusChanged struct {
	EventID string   `json:"matchId"`
	Status  string   `json:"status"`
	Result  *Outcome `json:"result,omitempty"`
}

type Heartbeat struct {
	Timestamp         time.Time `json:"timestamp"`
	ConnectedSessions int       `json:"connectedUsers"`
}
