package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/btc-bet-poc/internal/bet-resolver/store"
	"github.com/radieske/btc-bet-poc/pkg/contracts/events"
)

// Store é o contrato mínimo de persistência que o gate precisa.
type Store interface {
	EnsurePlayer(ctx context.Context, userID string) error
	CreatePending(ctx context.Context, b *store.Bet) error
}

// Gate valida e deduplica submissões de aposta antes do resolver.
// Regra de cooldown: enquanto a janela da aposta corrente do usuário não
// expirou, novas submissões são descartadas (a janela comparada é a da
// aposta JÁ armazenada, não a da submissão nova).
type Gate struct {
	Log         *zap.Logger
	Store       Store
	DefaultWait int

	now func() time.Time
}

func New(log *zap.Logger, st Store, defaultWait int) *Gate {
	return &Gate{Log: log, Store: st, DefaultWait: defaultWait, now: time.Now}
}

// Submit decide o destino de uma submissão:
//   - palpite inválido ou userId vazio => store.ErrInvalidGuess / erro de validação
//   - cooldown ativo => store.ErrRateLimited (submissão perdida, quem reenvia é o usuário)
//   - aceita => aposta PENDING gravada (exatamente uma escrita) e devolvida ao chamador
func (g *Gate) Submit(ctx context.Context, ev events.BetSubmitted) (*store.Bet, error) {
	if ev.UserID == "" {
		return nil, fmt.Errorf("%w: empty userId", store.ErrInvalidGuess)
	}
	guess, err := store.ParseGuess(ev.Guess)
	if err != nil {
		return nil, err
	}

	wait := ev.WaitSeconds
	if wait <= 0 {
		wait = g.DefaultWait
	}

	betID := ev.BetID
	if betID == "" {
		betID = uuid.NewString()
	}

	// Jogador nasce com score zero no primeiro contato
	if err := g.Store.EnsurePlayer(ctx, ev.UserID); err != nil {
		return nil, err
	}

	bet := &store.Bet{
		ID:          betID,
		UserID:      ev.UserID,
		Guess:       guess,
		WaitSeconds: wait,
		PlacedAt:    g.now(),
		Result:      store.ResultPending,
	}

	if err := g.Store.CreatePending(ctx, bet); err != nil {
		return nil, err
	}

	g.Log.Info("bet accepted",
		zap.String("user_id", bet.UserID),
		zap.String("bet_id", bet.ID),
		zap.String("guess", string(bet.Guess)),
		zap.Int("wait_seconds", bet.WaitSeconds),
	)
	return bet, nil
}
