package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/btc-bet-poc/internal/bet-resolver/oracle"
	"github.com/radieske/btc-bet-poc/internal/bet-resolver/store"
)

// fakeOracle devolve uma sequência fixa de respostas, na ordem.
type fakeOracle struct {
	mu    sync.Mutex
	queue []func() (decimal.Decimal, error)
	calls int
}

func (f *fakeOracle) push(price string) {
	d := decimal.RequireFromString(price)
	f.queue = append(f.queue, func() (decimal.Decimal, error) { return d, nil })
}

func (f *fakeOracle) pushErr() {
	f.queue = append(f.queue, func() (decimal.Decimal, error) {
		return decimal.Zero, oracle.ErrUnavailable
	})
}

func (f *fakeOracle) Current(context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return decimal.Zero, oracle.ErrUnavailable
	}
	fn := f.queue[0]
	f.queue = f.queue[1:]
	f.calls++
	return fn()
}

// fakeStore guarda o estado final e conta escritas.
type fakeStore struct {
	mu          sync.Mutex
	saved       *store.Bet
	saveCalls   int
	scores      map[string]int64
	scoreWrites int
	failScoreN  int // falha as próximas N escritas de score
}

func newFakeStore(userID string, score int64) *fakeStore {
	return &fakeStore{scores: map[string]int64{userID: score}}
}

func (f *fakeStore) SaveResult(_ context.Context, b *store.Bet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.saved = &cp
	f.saveCalls++
	return nil
}

func (f *fakeStore) PlayerScore(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scores[userID], nil
}

func (f *fakeStore) UpdatePlayerScore(_ context.Context, userID string, score int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failScoreN > 0 {
		f.failScoreN--
		return errors.New("store unavailable")
	}
	f.scores[userID] = score
	f.scoreWrites++
	return nil
}

func newEngine(t *testing.T, st Store, or Oracle) *Engine {
	return &Engine{
		Log:         zaptest.NewLogger(t),
		Store:       st,
		Oracle:      or,
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	}
}

func pendingBet(userID string, waitSeconds int) *store.Bet {
	return &store.Bet{
		ID:          "bet-1",
		UserID:      userID,
		Guess:       store.GuessUp,
		WaitSeconds: waitSeconds,
		// janela já vencida: o workflow não espera
		PlacedAt: time.Now().Add(-time.Duration(waitSeconds) * time.Second),
		Result:   store.ResultPending,
	}
}

func TestRunResolvesWin(t *testing.T) {
	or := &fakeOracle{}
	or.push("100")
	or.push("105")
	st := newFakeStore("u1", 5)
	e := newEngine(t, st, or)

	err := e.run(context.Background(), pendingBet("u1", 1))

	require.NoError(t, err)
	require.NotNil(t, st.saved)
	assert.Equal(t, store.ResultWin, st.saved.Result)
	assert.Equal(t, "100", st.saved.StartPrice.String())
	assert.Equal(t, "105", st.saved.EndPrice.String())
	assert.Equal(t, "5.00", st.saved.PriceDiff.StringFixed(2))
	assert.Equal(t, int64(6), st.scores["u1"])
}

func TestRunResolvesLossOnZeroDiff(t *testing.T) {
	or := &fakeOracle{}
	or.push("100")
	or.push("100")
	st := newFakeStore("u1", 5)
	e := newEngine(t, st, or)

	err := e.run(context.Background(), pendingBet("u1", 1))

	require.NoError(t, err)
	assert.Equal(t, store.ResultLoss, st.saved.Result)
	assert.Equal(t, int64(4), st.scores["u1"])
}

func TestRunWaitsRemainingWindow(t *testing.T) {
	or := &fakeOracle{}
	or.push("100")
	or.push("101")
	st := newFakeStore("u1", 0)
	e := newEngine(t, st, or)

	bet := pendingBet("u1", 1)
	bet.PlacedAt = time.Now().Add(-700 * time.Millisecond) // restam ~300ms

	begin := time.Now()
	err := e.run(context.Background(), bet)

	require.NoError(t, err)
	elapsed := time.Since(begin)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestRunRetriesOracle(t *testing.T) {
	or := &fakeOracle{}
	or.pushErr()
	or.pushErr()
	or.push("100") // terceira tentativa do start sample
	or.push("99")
	st := newFakeStore("u1", 0)
	e := newEngine(t, st, or)

	err := e.run(context.Background(), pendingBet("u1", 1))

	require.NoError(t, err)
	assert.Equal(t, store.ResultLoss, st.saved.Result)
}

func TestRunFailsAfterRetryExhaustion(t *testing.T) {
	or := &fakeOracle{}
	or.pushErr()
	or.pushErr()
	or.pushErr()
	st := newFakeStore("u1", 0)
	e := newEngine(t, st, or)

	var failedStage string
	e.OnFailed = func(s string) { failedStage = s }

	err := e.run(context.Background(), pendingBet("u1", 1))

	require.Error(t, err)
	assert.ErrorIs(t, err, oracle.ErrUnavailable)
	assert.Equal(t, "START_SAMPLE", failedStage)
	assert.Nil(t, st.saved, "nenhum resultado parcial pode ser persistido")
	assert.Equal(t, int64(0), st.scores["u1"])
}

func TestRunTimeoutLeavesBetPending(t *testing.T) {
	or := &fakeOracle{}
	or.push("100")
	st := newFakeStore("u1", 0)
	e := newEngine(t, st, or)
	e.Timeout = 50 * time.Millisecond

	var failedStage string
	e.OnFailed = func(s string) { failedStage = s }

	bet := pendingBet("u1", 30)
	bet.PlacedAt = time.Now() // janela de 30s à frente, estoura o teto antes

	err := e.run(context.Background(), bet)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "WAITING", failedStage)
	assert.Nil(t, st.saved)
}

func TestRunRetriesOnlyPlayerWriteAfterBetWrite(t *testing.T) {
	or := &fakeOracle{}
	or.push("100")
	or.push("105")
	st := newFakeStore("u1", 5)
	st.failScoreN = 2 // duas falhas, terceira tentativa passa
	e := newEngine(t, st, or)

	err := e.run(context.Background(), pendingBet("u1", 1))

	require.NoError(t, err)
	assert.Equal(t, 1, st.saveCalls, "escrita da aposta não é repetida")
	assert.Equal(t, int64(6), st.scores["u1"])
}

func TestPersistReplayIsIdempotent(t *testing.T) {
	or := &fakeOracle{}
	or.push("100")
	or.push("105")
	st := newFakeStore("u1", 5)
	e := newEngine(t, st, or)

	require.NoError(t, e.run(context.Background(), pendingBet("u1", 1)))
	resolved := *st.saved
	score := st.scores["u1"]

	// replay do commit com os mesmos valores calculados
	require.NoError(t, st.SaveResult(context.Background(), &resolved))
	require.NoError(t, st.UpdatePlayerScore(context.Background(), "u1", score))

	assert.Equal(t, resolved, *st.saved)
	assert.Equal(t, score, st.scores["u1"])
}

func TestResolveRunsConcurrently(t *testing.T) {
	or := &fakeOracle{}
	for i := 0; i < 20; i++ {
		or.push("100")
	}
	st := newFakeStore("u1", 0)
	st.scores["u2"] = 0
	e := newEngine(t, st, or)

	ctx := context.Background()
	e.Resolve(ctx, pendingBet("u1", 1))
	b2 := pendingBet("u2", 1)
	b2.ID = "bet-2"
	b2.UserID = "u2"
	e.Resolve(ctx, b2)
	e.Wait()

	assert.Equal(t, 2, st.saveCalls)
}
