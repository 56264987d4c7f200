package topics

const (
	// Bets
	BetSubmitted = "bet_submitted"

	// DLQs
	BetSubmittedDLQ = "bet_submitted_dlq"
)
