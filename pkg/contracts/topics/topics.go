package topics

const (
	// Entrada: colaboradores externos
	EventResults = "event_results"
	EventStatus  = "event_status"

	// Saída: auditoria de apostas e resumos de settlement
	WagerEvents         = "wager_events"
	SettlementSummaries = "settlement_summaries"

	// DLQ de mensagens de entrada inválidas
	EventResultsDLQ = "event_results_dlq"
)

// Canal Redis Pub/Sub que replica o fanout entre nós
const BroadcastChannel = "ledger_broadcast"
