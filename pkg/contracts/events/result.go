package events

import "time"

type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

type Outcome struct {
	Winner  string `json:"winner"` // home | away | draw
	Score   Score  `json:"score"`
	Details string `json:"details,omitempty"`
}

// Publicado no tópico "event_results" pelo colaborador de resultados
type ResultReported struct {
	EventID    string    `json:"event_id"`
	Outcome    Outcome   `json:"outcome"`
	ReportedAt time.Time `json:"reported_at"`
	Source     string    `json:"source,omitempty"`
}

// Publicado no tópico "event_status" pela moderação
type StatusChanged struct {
	EventID   string    `json:"event_id"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}

type SettlementFailure struct {
	WagerID string `json:"wager_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason"`
}

// Publicado no tópico "settlement_summaries" após cada execução
type SettlementSummary struct {
	EventID    string              `json:"event_id"`
	Outcome    Outcome             `json:"outcome"`
	Won        int                 `json:"won"`
	Lost       int                 `json:"lost"`
	Refunded   int                 `json:"refunded"`
	Skipped    int                 `json:"skipped"`
	Unresolved []string            `json:"unresolved,omitempty"`
	Failures   []SettlementFailure `json:"failures,omitempty"`
	PaidOut    int64               `json:"paid_out"`
	Ts         time.Time           `json:"ts"`
}
