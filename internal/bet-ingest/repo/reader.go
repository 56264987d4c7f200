package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("not found")

// CurrentBet é o snapshot da aposta corrente exposto pela API de leitura.
// Mesmo shape JSON gravado no Redis pelo bet-resolver-worker.
type CurrentBet struct {
	BetID       string           `json:"betId"`
	UserID      string           `json:"userId"`
	Guess       string           `json:"guess"`
	WaitSeconds int              `json:"waitSeconds"`
	PlacedAt    time.Time        `json:"placedAt"`
	StartPrice  *decimal.Decimal `json:"startPrice,omitempty"`
	EndPrice    *decimal.Decimal `json:"endPrice,omitempty"`
	PriceDiff   *decimal.Decimal `json:"priceDiff,omitempty"`
	Result      string           `json:"result"`
}

// Reader é o lado de leitura do ingest: cache Redis primeiro, Postgres no miss.
type Reader struct {
	db  *sql.DB
	rdb *redis.Client
	log *zap.Logger
}

func NewReader(db *sql.DB, rdb *redis.Client, log *zap.Logger) *Reader {
	return &Reader{db: db, rdb: rdb, log: log}
}

// CurrentBet retorna a aposta corrente do usuário. O cache é populado pelo
// resolver a cada escrita; aqui é só leitura, sem backfill.
func (r *Reader) CurrentBet(ctx context.Context, userID string) (*CurrentBet, error) {
	if r.rdb != nil {
		buf, err := r.rdb.Get(ctx, "bet:current:"+userID).Bytes()
		if err == nil {
			var b CurrentBet
			if jerr := json.Unmarshal(buf, &b); jerr == nil {
				return &b, nil
			}
			r.log.Warn("bad cached bet, falling back to db", zap.String("user_id", userID))
		} else if !errors.Is(err, redis.Nil) {
			r.log.Warn("bet cache read failed", zap.Error(err))
		}
	}

	const q = `
		SELECT bet_id, guess, wait_seconds, placed_at, start_price, end_price, price_diff, result
		FROM bets WHERE user_id = $1
	`
	b := CurrentBet{UserID: userID}
	var start, end, diff sql.NullString
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&b.BetID, &b.Guess, &b.WaitSeconds, &b.PlacedAt, &start, &end, &diff, &b.Result,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("current bet: %w", err)
	}
	if b.StartPrice, err = scanDecimal(start); err != nil {
		return nil, fmt.Errorf("current bet: %w", err)
	}
	if b.EndPrice, err = scanDecimal(end); err != nil {
		return nil, fmt.Errorf("current bet: %w", err)
	}
	if b.PriceDiff, err = scanDecimal(diff); err != nil {
		return nil, fmt.Errorf("current bet: %w", err)
	}
	return &b, nil
}

// PlayerScore retorna o placar do jogador direto do Postgres.
func (r *Reader) PlayerScore(ctx context.Context, userID string) (int64, error) {
	var score int64
	err := r.db.QueryRowContext(ctx, `SELECT score FROM players WHERE user_id=$1`, userID).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("player score: %w", err)
	}
	return score, nil
}

func scanDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
