package events

// Tipos de mensagem entregues no push surface
const (
	KindWagerAccepted  = "wager.accepted"
	KindWagerActivity  = "wager.activity"
	KindWagerCancelled = "wager.cancelled"
	KindWagerSettled   = "wager.settled"
	KindOddsUpdated    = "odds.updated"
	KindStatsUpdated   = "stats.updated"
	KindEventStatus    = "event.status"
	KindWagerError     = "wager.error"
	KindActiveWagers   = "wager.active"
	KindHeartbeat      = "system.heartbeat"
	KindPong           = "pong"
)
