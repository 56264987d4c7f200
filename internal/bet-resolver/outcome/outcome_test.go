package outcome

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/btc-bet-poc/internal/bet-resolver/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCompute(t *testing.T) {
	cases := []struct {
		name     string
		guess    store.Guess
		start    string
		end      string
		score    int64
		result   store.Result
		diff     string
		newScore int64
	}{
		{"up win", store.GuessUp, "100", "101", 5, store.ResultWin, "1.00", 6},
		{"up loss", store.GuessUp, "101", "100", 5, store.ResultLoss, "-1.00", 4},
		{"down win", store.GuessDown, "101", "100", 5, store.ResultWin, "-1.00", 6},
		{"down win negative diff", store.GuessDown, "100", "99", 5, store.ResultWin, "-1.00", 6},
		{"down loss", store.GuessDown, "100", "101", 5, store.ResultLoss, "1.00", 4},
		{"zero diff up is loss", store.GuessUp, "100", "100", 5, store.ResultLoss, "0.00", 4},
		{"zero diff down is loss", store.GuessDown, "100", "100", 5, store.ResultLoss, "0.00", 4},
		{"diff below a cent rounds to zero", store.GuessUp, "100.005", "100.00999", 7, store.ResultLoss, "0.00", 6},
		{"half cent rounds away from zero", store.GuessUp, "100", "100.005", 3, store.ResultWin, "0.01", 4},
		{"negative half cent rounds away from zero", store.GuessDown, "100.005", "100", 3, store.ResultWin, "-0.01", 4},
		{"score can go negative", store.GuessUp, "100", "100", 0, store.ResultLoss, "0.00", -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Compute(tc.guess, dec(tc.start), dec(tc.end), tc.score)

			assert.Equal(t, tc.result, out.Result)
			assert.True(t, dec(tc.diff).Equal(out.PriceDiff), "priceDiff: want %s, got %s", tc.diff, out.PriceDiff)
			assert.Equal(t, tc.newScore, out.NewScore)
		})
	}
}

func TestComputeDeterministic(t *testing.T) {
	start, end := dec("64123.4567"), dec("64125.8912")

	first := Compute(store.GuessUp, start, end, 42)
	for i := 0; i < 100; i++ {
		out := Compute(store.GuessUp, start, end, 42)
		require.Equal(t, first.Result, out.Result)
		require.True(t, first.PriceDiff.Equal(out.PriceDiff))
		require.Equal(t, first.NewScore, out.NewScore)
	}
}

func TestComputeDiffIsEndMinusStart(t *testing.T) {
	out := Compute(store.GuessUp, dec("100.10"), dec("102.35"), 0)

	assert.True(t, dec("2.25").Equal(out.PriceDiff))
	assert.Equal(t, store.ResultWin, out.Result)
}
