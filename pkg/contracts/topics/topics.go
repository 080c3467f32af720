package topics

// Tópicos Kafka
const (
	// Fila de conclusão de partidas (executada pelo settlement-worker)
	MatchConcluded    = "match_concluded"
	MatchConcludedDLQ = "match_concluded_dlq"

	// Espelho das notificações do motor para consumidores externos
	SettlementEvents = "settlement_events"
)

// Tópicos do Notifier (campo Topic do envelope)
const (
	WagerUpdated   = "wager.updated"
	WagerSettled   = "wager.settled"
	UserUpdated    = "user.updated"
	EventConcluded = "event.concluded"
)
