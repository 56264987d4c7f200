package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Palpite do usuário sobre a direção do preço.
type Guess string

const (
	GuessUp   Guess = "UP"
	GuessDown Guess = "DOWN"
)

// Resultado da aposta. PENDING até o workflow de resolução concluir.
type Result string

const (
	ResultPending Result = "PENDING"
	ResultWin     Result = "WIN"
	ResultLoss    Result = "LOSS"
)

var (
	ErrRateLimited  = errors.New("active bet within wait window")
	ErrNotFound     = errors.New("not found")
	ErrInvalidGuess = errors.New("invalid guess")
)

// ParseGuess valida o palpite vindo de fora (HTTP ou evento Kafka)
func ParseGuess(s string) (Guess, error) {
	switch Guess(s) {
	case GuessUp:
		return GuessUp, nil
	case GuessDown:
		return GuessDown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGuess, s)
	}
}

// Bet é a aposta corrente de um usuário (no máximo uma por user_id).
// Preços ficam nil até o workflow amostrar/resolver.
type Bet struct {
	ID          string           `json:"betId"`
	UserID      string           `json:"userId"`
	Guess       Guess            `json:"guess"`
	WaitSeconds int              `json:"waitSeconds"`
	PlacedAt    time.Time        `json:"placedAt"`
	StartPrice  *decimal.Decimal `json:"startPrice,omitempty"`
	EndPrice    *decimal.Decimal `json:"endPrice,omitempty"`
	PriceDiff   *decimal.Decimal `json:"priceDiff,omitempty"`
	Result      Result           `json:"result"`
}

// WindowEnd é o instante em que a janela de espera da aposta termina.
// Antes disso uma nova submissão do mesmo usuário é rejeitada (cooldown).
func (b *Bet) WindowEnd() time.Time {
	return b.PlacedAt.Add(time.Duration(b.WaitSeconds) * time.Second)
}

type Player struct {
	UserID string `json:"userId"`
	Score  int64  `json:"score"`
}
