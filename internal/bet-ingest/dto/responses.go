package dto

type PlaceBetResponse struct {
	BetID   string `json:"betId"`
	Status  string `json:"status"` // SUBMITTED
	Message string `json:"message,omitempty"`
}

type PlayerResponse struct {
	UserID string `json:"userId"`
	Score  int64  `json:"score"`
}
