package outcome

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/btc-bet-poc/internal/bet-resolver/store"
)

// Outcome é o desfecho calculado de uma aposta.
type Outcome struct {
	Result    store.Result
	PriceDiff decimal.Decimal
	NewScore  int64
}

// Compute calcula o resultado da aposta a partir dos dois preços amostrados.
// Função pura, sem I/O.
//
// priceDiff = end - start, arredondado em 2 casas (half away from zero).
// WIN exige diff estritamente a favor do palpite; diff zero é LOSS para
// ambas as direções (regra do jogo, não empate).
func Compute(guess store.Guess, start, end decimal.Decimal, score int64) Outcome {
	diff := end.Sub(start).Round(2)

	result := store.ResultLoss
	if (guess == store.GuessUp && diff.IsPositive()) ||
		(guess == store.GuessDown && diff.IsNegative()) {
		result = store.ResultWin
	}

	newScore := score - 1
	if result == store.ResultWin {
		newScore = score + 1
	}

	return Outcome{Result: result, PriceDiff: diff, NewScore: newScore}
}
