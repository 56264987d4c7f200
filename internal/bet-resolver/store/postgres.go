package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Postgres implementa a persistência de apostas e placares.
// Se cache != nil, o snapshot da aposta corrente é replicado no Redis
// após cada escrita (best effort; falha de cache não falha a operação).
type Postgres struct {
	db    *sql.DB
	cache *BetCache
	log   *zap.Logger
}

func NewPostgres(db *sql.DB, cache *BetCache, log *zap.Logger) *Postgres {
	return &Postgres{db: db, cache: cache, log: log}
}

// CreatePending grava a nova aposta PENDING de forma condicional, numa única
// statement: o upsert só tem efeito se a janela da aposta existente já expirou.
// Isso fecha a corrida entre submissões concorrentes do mesmo usuário sem
// precisar de read-then-write. Zero linhas afetadas => cooldown ativo.
func (p *Postgres) CreatePending(ctx context.Context, b *Bet) error {
	const q = `
		INSERT INTO bets (user_id, bet_id, guess, wait_seconds, placed_at, result)
		VALUES ($1,$2,$3,$4,$5,'PENDING')
		ON CONFLICT (user_id) DO UPDATE SET
		  bet_id       = EXCLUDED.bet_id,
		  guess        = EXCLUDED.guess,
		  wait_seconds = EXCLUDED.wait_seconds,
		  placed_at    = EXCLUDED.placed_at,
		  start_price  = NULL,
		  end_price    = NULL,
		  price_diff   = NULL,
		  result       = 'PENDING',
		  updated_at   = NOW()
		WHERE bets.placed_at + make_interval(secs => bets.wait_seconds::double precision) <= EXCLUDED.placed_at
	`
	res, err := p.db.ExecContext(ctx, q, b.UserID, b.ID, b.Guess, b.WaitSeconds, b.PlacedAt)
	if err != nil {
		return fmt.Errorf("create pending bet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create pending bet: %w", err)
	}
	if n == 0 {
		return ErrRateLimited
	}

	p.refreshCache(ctx, b)
	return nil
}

// GetBet retorna a aposta corrente do usuário, ou ErrNotFound.
func (p *Postgres) GetBet(ctx context.Context, userID string) (*Bet, error) {
	const q = `
		SELECT bet_id, guess, wait_seconds, placed_at, start_price, end_price, price_diff, result
		FROM bets WHERE user_id = $1
	`
	b := Bet{UserID: userID}
	var start, end, diff sql.NullString
	err := p.db.QueryRowContext(ctx, q, userID).Scan(
		&b.ID, &b.Guess, &b.WaitSeconds, &b.PlacedAt, &start, &end, &diff, &b.Result,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bet: %w", err)
	}
	if b.StartPrice, err = scanDecimal(start); err != nil {
		return nil, fmt.Errorf("get bet: %w", err)
	}
	if b.EndPrice, err = scanDecimal(end); err != nil {
		return nil, fmt.Errorf("get bet: %w", err)
	}
	if b.PriceDiff, err = scanDecimal(diff); err != nil {
		return nil, fmt.Errorf("get bet: %w", err)
	}
	return &b, nil
}

// SaveResult grava o desfecho da aposta. Idempotente: reescrever o mesmo
// resultado não muda o estado final. O filtro por bet_id evita sobrescrever
// uma aposta mais nova do mesmo usuário.
func (p *Postgres) SaveResult(ctx context.Context, b *Bet) error {
	const q = `
		UPDATE bets
		SET start_price=$3, end_price=$4, price_diff=$5, result=$6, updated_at=NOW()
		WHERE user_id=$1 AND bet_id=$2
	`
	res, err := p.db.ExecContext(ctx, q,
		b.UserID, b.ID,
		decimalArg(b.StartPrice), decimalArg(b.EndPrice), decimalArg(b.PriceDiff),
		b.Result,
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("save result: bet %s/%s: %w", b.UserID, b.ID, ErrNotFound)
	}

	p.refreshCache(ctx, b)
	return nil
}

// EnsurePlayer cria o registro do jogador com score zero no primeiro contato.
// No original isso acontecia no signup; aqui é feito na aceitação da aposta.
func (p *Postgres) EnsurePlayer(ctx context.Context, userID string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO players (user_id, score) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		return fmt.Errorf("ensure player: %w", err)
	}
	return nil
}

// PlayerScore retorna o placar atual do jogador.
func (p *Postgres) PlayerScore(ctx context.Context, userID string) (int64, error) {
	var score int64
	err := p.db.QueryRowContext(ctx, `SELECT score FROM players WHERE user_id=$1`, userID).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("player score: %w", err)
	}
	return score, nil
}

// UpdatePlayerScore grava o placar absoluto calculado pelo resolver.
// Escrita absoluta (não delta) mantém o replay do commit idempotente.
func (p *Postgres) UpdatePlayerScore(ctx context.Context, userID string, score int64) error {
	res, err := p.db.ExecContext(ctx, `UPDATE players SET score=$2 WHERE user_id=$1`, userID, score)
	if err != nil {
		return fmt.Errorf("update player score: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update player score: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update player score: %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (p *Postgres) refreshCache(ctx context.Context, b *Bet) {
	if p.cache == nil {
		return
	}
	if err := p.cache.SetCurrent(ctx, b); err != nil {
		p.log.Warn("bet cache set failed", zap.String("user_id", b.UserID), zap.Error(err))
	}
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

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
