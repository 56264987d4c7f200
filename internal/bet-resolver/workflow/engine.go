package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/btc-bet-poc/internal/bet-resolver/outcome"
	"github.com/radieske/btc-bet-poc/internal/bet-resolver/store"
)

// Oracle fornece o preço corrente da referência (BTC).
type Oracle interface {
	Current(ctx context.Context) (decimal.Decimal, error)
}

// Store é o contrato de persistência usado pelo workflow.
type Store interface {
	SaveResult(ctx context.Context, b *store.Bet) error
	PlayerScore(ctx context.Context, userID string) (int64, error)
	UpdatePlayerScore(ctx context.Context, userID string, score int64) error
}

// Etapas do workflow de resolução. FAILED é alcançável de qualquer etapa.
type stage string

const (
	stageStartSample stage = "START_SAMPLE"
	stageWaiting     stage = "WAITING"
	stageEndSample   stage = "END_SAMPLE"
	stageComputing   stage = "COMPUTING"
	stagePersisting  stage = "PERSISTING"
)

// Engine executa os workflows de resolução: amostra o preço na aceitação,
// suspende até o fim da janela, amostra de novo, calcula e persiste.
//
// Cada aposta aceita roda numa goroutine própria; a suspensão é um park em
// timer, sem lock nem conexão presa, então milhares de apostas pendentes
// custam quase nada.
type Engine struct {
	Log    *zap.Logger
	Store  Store
	Oracle Oracle

	Timeout     time.Duration // teto de wall-clock do workflow inteiro
	MaxAttempts int           // tentativas por chamada externa
	Backoff     time.Duration // backoff base (linear: base, 2x, 3x...)

	OnStarted  func()             // métricas (counter++)
	OnResolved func(result string) // métricas por resultado
	OnFailed   func(stage string)  // métricas por etapa de falha

	wg sync.WaitGroup
}

// Resolve dispara o workflow da aposta numa goroutine própria.
func (e *Engine) Resolve(ctx context.Context, bet *store.Bet) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.run(ctx, bet)
	}()
}

// Wait bloqueia até todos os workflows em voo terminarem (shutdown gracioso).
func (e *Engine) Wait() {
	e.wg.Wait()
}

// run executa a máquina de etapas de uma aposta, do início ao fim.
// Em qualquer falha a aposta fica PENDING no store (nunca resultado parcial).
func (e *Engine) run(ctx context.Context, bet *store.Bet) error {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	log := e.Log.With(zap.String("user_id", bet.UserID), zap.String("bet_id", bet.ID))
	if e.OnStarted != nil {
		e.OnStarted()
	}

	// START_SAMPLE
	var startPrice decimal.Decimal
	if err := e.retry(ctx, func(ctx context.Context) error {
		v, err := e.Oracle.Current(ctx)
		if err == nil {
			startPrice = v
		}
		return err
	}); err != nil {
		return e.fail(log, stageStartSample, err)
	}
	bet.StartPrice = &startPrice

	// WAITING — a janela é ancorada em placedAt, não no início do workflow,
	// então um workflow retomado espera só o que resta.
	if remaining := time.Until(bet.WindowEnd()); remaining > 0 {
		log.Debug("waiting for window", zap.Duration("remaining", remaining))
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return e.fail(log, stageWaiting, ctx.Err())
		case <-timer.C:
		}
	}

	// END_SAMPLE
	var endPrice decimal.Decimal
	if err := e.retry(ctx, func(ctx context.Context) error {
		v, err := e.Oracle.Current(ctx)
		if err == nil {
			endPrice = v
		}
		return err
	}); err != nil {
		return e.fail(log, stageEndSample, err)
	}
	bet.EndPrice = &endPrice

	// COMPUTING — o score é relido aqui, imediatamente antes do commit, pra
	// não aplicar o delta sobre uma base velha depois da longa suspensão.
	var score int64
	if err := e.retry(ctx, func(ctx context.Context) error {
		v, err := e.Store.PlayerScore(ctx, bet.UserID)
		if err == nil {
			score = v
		}
		return err
	}); err != nil {
		return e.fail(log, stageComputing, err)
	}

	out := outcome.Compute(bet.Guess, startPrice, endPrice, score)
	bet.PriceDiff = &out.PriceDiff
	bet.Result = out.Result

	// PERSISTING — aposta primeiro; se a escrita do player falhar, só ela é
	// retentada (reescrever o resultado da aposta é idempotente de todo jeito).
	if err := e.retry(ctx, func(ctx context.Context) error {
		return e.Store.SaveResult(ctx, bet)
	}); err != nil {
		return e.fail(log, stagePersisting, err)
	}
	if err := e.retry(ctx, func(ctx context.Context) error {
		return e.Store.UpdatePlayerScore(ctx, bet.UserID, out.NewScore)
	}); err != nil {
		return e.fail(log, stagePersisting, err)
	}

	log.Info("bet resolved",
		zap.String("result", string(out.Result)),
		zap.String("price_diff", out.PriceDiff.String()),
		zap.Int64("new_score", out.NewScore),
	)
	if e.OnResolved != nil {
		e.OnResolved(string(out.Result))
	}
	return nil
}

// retry executa fn até MaxAttempts vezes com backoff linear entre tentativas.
// Cancelamento/deadline do contexto interrompe na hora.
func (e *Engine) retry(ctx context.Context, fn func(context.Context) error) error {
	attempts := e.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * e.Backoff):
			}
		}
	}
	return err
}

func (e *Engine) fail(log *zap.Logger, st stage, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		log.Error("workflow timeout, bet stays pending", zap.String("stage", string(st)))
	} else {
		log.Error("workflow failed, bet stays pending", zap.String("stage", string(st)), zap.Error(err))
	}
	if e.OnFailed != nil {
		e.OnFailed(string(st))
	}
	return fmt.Errorf("%s: %w", st, err)
}
