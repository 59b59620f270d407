package ws

// ClientMsg é uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping | place-wager | cancel-wager | active-wagers
type ClientMsg struct {
	Type    string `json:"type"`
	EventID string `json:"eventId,omitempty"` // subscribe/unsubscribe/place-wager
	WagerID string `json:"betId,omitempty"`   // cancel-wager
	Option  struct {
		Type string  `json:"type"`
		Name string  `json:"name"`
		Odds float64 `json:"odds,omitempty"`
	} `json:"bettingOption"`
	Amount int64 `json:"amount,omitempty"`
}

const (
	MsgSubscribe    = "subscribe"
	MsgUnsubscribe  = "unsubscribe"
	MsgPing         = "ping"
	MsgPlaceWager   = "place-wager"
	MsgCancelWager  = "cancel-wager"
	MsgActiveWagers = "active-wagers"
)
