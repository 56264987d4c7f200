package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/btc-bet-poc/internal/bet-resolver/store"
	"github.com/radieske/btc-bet-poc/pkg/contracts/events"
)

type fakeGate struct {
	err      error
	received []events.BetSubmitted
}

func (f *fakeGate) Submit(_ context.Context, ev events.BetSubmitted) (*store.Bet, error) {
	f.received = append(f.received, ev)
	if f.err != nil {
		return nil, f.err
	}
	return &store.Bet{ID: ev.BetID, UserID: ev.UserID}, nil
}

type fakeResolver struct {
	resolved []*store.Bet
}

func (f *fakeResolver) Resolve(_ context.Context, b *store.Bet) {
	f.resolved = append(f.resolved, b)
}

func newWorker(t *testing.T, g *fakeGate, r *fakeResolver) (*Worker, *map[string]int) {
	counts := map[string]int{}
	w := &Worker{
		Log:           zaptest.NewLogger(t),
		Gate:          g,
		Engine:        r,
		OnConsumed:    func() { counts["consumed"]++ },
		OnAccepted:    func() { counts["accepted"]++ },
		OnRateLimited: func() { counts["rate_limited"]++ },
		OnError:       func(stage string) { counts["err_"+stage]++ },
	}
	return w, &counts
}

func TestHandleAccepted(t *testing.T) {
	g := &fakeGate{}
	r := &fakeResolver{}
	w, counts := newWorker(t, g, r)

	w.handle(context.Background(), []byte(`{"bet_id":"b1","user_id":"u1","guess":"UP","wait_seconds":60}`))

	assert.Len(t, g.received, 1)
	assert.Equal(t, "u1", g.received[0].UserID)
	assert.Len(t, r.resolved, 1)
	assert.Equal(t, 1, (*counts)["accepted"])
}

func TestHandleRateLimitedDropsSilently(t *testing.T) {
	g := &fakeGate{err: store.ErrRateLimited}
	r := &fakeResolver{}
	w, counts := newWorker(t, g, r)

	w.handle(context.Background(), []byte(`{"user_id":"u1","guess":"UP"}`))

	assert.Empty(t, r.resolved)
	assert.Equal(t, 1, (*counts)["rate_limited"])
}

func TestHandleInvalidGuessDropped(t *testing.T) {
	g := &fakeGate{err: store.ErrInvalidGuess}
	r := &fakeResolver{}
	w, counts := newWorker(t, g, r)

	w.handle(context.Background(), []byte(`{"user_id":"u1","guess":"SIDEWAYS"}`))

	assert.Empty(t, r.resolved)
	assert.Equal(t, 1, (*counts)["err_validate"])
}

func TestHandleBadJSONDropped(t *testing.T) {
	g := &fakeGate{}
	r := &fakeResolver{}
	w, counts := newWorker(t, g, r)

	w.handle(context.Background(), []byte(`{not json`))

	assert.Empty(t, g.received)
	assert.Equal(t, 1, (*counts)["err_decode"])
}

func TestHandleStoreErrorCounted(t *testing.T) {
	g := &fakeGate{err: errors.New("pg down")}
	r := &fakeResolver{}
	w, counts := newWorker(t, g, r)

	w.handle(context.Background(), []byte(`{"user_id":"u1","guess":"UP"}`))

	assert.Empty(t, r.resolved)
	assert.Equal(t, 1, (*counts)["err_store"])
}
