package ws

// ClientMsg é a mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Key: chave de roteamento, ex. "wager:<id>", "user:<id>", "match:<id>"
type ClientMsg struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}
