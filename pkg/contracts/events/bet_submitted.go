package events

// Evento publicado no tópico "bet_submitted" pelo bet-ingest-service.
// A chave da mensagem é o userId, garantindo ordem por usuário na partição.
type BetSubmitted struct {
	BetID       string `json:"bet_id"`
	UserID      string `json:"user_id"`
	Guess       string `json:"guess"` // "UP" | "DOWN"
	WaitSeconds int    `json:"wait_seconds"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
