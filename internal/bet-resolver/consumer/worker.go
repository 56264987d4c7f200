package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	skafka "github.com/radieske/btc-bet-poc/internal/shared/kafka"

	"github.com/radieske/btc-bet-poc/internal/bet-resolver/store"
	"github.com/radieske/btc-bet-poc/pkg/contracts/events"
)

// Gate decide se a submissão vira aposta (validação + cooldown).
type Gate interface {
	Submit(ctx context.Context, ev events.BetSubmitted) (*store.Bet, error)
}

// Resolver dispara o workflow de resolução de uma aposta aceita.
type Resolver interface {
	Resolve(ctx context.Context, bet *store.Bet)
}

// Worker consome submissões do tópico bet_submitted e alimenta gate + resolver.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Worker struct {
	Log    *zap.Logger
	Reader *kafka.Reader
	Gate   Gate
	Engine Resolver
	DLQ    *kafka.Writer // opcional; recebe submissões que falharam por erro de store

	OnConsumed    func()       // métricas (counter++)
	OnAccepted    func()       // métricas
	OnRateLimited func()       // métricas
	OnError       func(string) // métricas por fase
}

// Run inicia o loop principal de consumo. Retorna quando o contexto é cancelado.
func (w *Worker) Run(ctx context.Context) error {
	for {
		m, err := w.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka read failed", zap.Error(err))
			if w.OnError != nil {
				w.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if w.OnConsumed != nil {
			w.OnConsumed()
		}

		w.handle(ctx, m.Value)
	}
}

// handle processa uma submissão:
//   - decode inválido ou palpite inválido: descarta (log, sem retry)
//   - cooldown ativo: descarta; quem reenvia é o usuário
//   - erro de store: manda pra DLQ pra reprocessamento
//   - aceita: dispara o workflow de resolução
func (w *Worker) handle(ctx context.Context, raw []byte) {
	var ev events.BetSubmitted
	if err := json.Unmarshal(raw, &ev); err != nil {
		w.Log.Warn("invalid bet_submitted payload", zap.Error(err))
		if w.OnError != nil {
			w.OnError("decode")
		}
		return
	}

	bet, err := w.Gate.Submit(ctx, ev)
	switch {
	case err == nil:
		if w.OnAccepted != nil {
			w.OnAccepted()
		}
		w.Engine.Resolve(ctx, bet)

	case errors.Is(err, store.ErrRateLimited):
		w.Log.Warn("bet dropped, cooldown active",
			zap.String("user_id", ev.UserID),
			zap.String("bet_id", ev.BetID),
		)
		if w.OnRateLimited != nil {
			w.OnRateLimited()
		}

	case errors.Is(err, store.ErrInvalidGuess):
		w.Log.Warn("bet dropped, invalid submission",
			zap.String("user_id", ev.UserID),
			zap.Error(err),
		)
		if w.OnError != nil {
			w.OnError("validate")
		}

	default:
		// Falha de store: a submissão ainda pode ser válida, vai pra DLQ
		w.Log.Error("gate failed", zap.String("user_id", ev.UserID), zap.Error(err))
		if w.OnError != nil {
			w.OnError("store")
		}
		if w.DLQ != nil {
			if derr := skafka.WriteJSON(ctx, w.DLQ, ev.UserID, raw); derr != nil {
				w.Log.Error("dlq write failed", zap.Error(derr))
			}
		}
	}
}
