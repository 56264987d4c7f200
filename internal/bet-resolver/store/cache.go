package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// BetCache mantém no Redis o snapshot da aposta corrente de cada usuário,
// alimentando o endpoint de leitura do bet-ingest-service sem bater no banco.
type BetCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewBetCache(c *redis.Client, ttl time.Duration) *BetCache {
	return &BetCache{Client: c, TTL: ttl}
}

// key gera a chave Redis da aposta corrente de um usuário
func key(userID string) string { return "bet:current:" + userID }

// SetCurrent armazena o snapshot da aposta com TTL definido
func (c *BetCache) SetCurrent(ctx context.Context, b *Bet) error {
	buf, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(b.UserID), buf, c.TTL).Err()
}

// GetCurrent retorna o snapshot cacheado, ou ErrNotFound em cache miss
func (c *BetCache) GetCurrent(ctx context.Context, userID string) (*Bet, error) {
	buf, err := c.Client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var b Bet
	if err := json.Unmarshal(buf, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
