package dto

type PlaceBetRequest struct {
	UserID      string `json:"userId"`
	Guess       string `json:"guess"`                 // "UP" | "DOWN"
	WaitSeconds int    `json:"waitSeconds,omitempty"` // opcional; default configurado (60s)
}
