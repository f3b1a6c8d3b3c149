package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/token-pulse/pkg/helius"
)

const keyPrefix = "txs:"

type envelope struct {
	FetchedAt    time.Time            `json:"fetched_at"`
	Transactions []helius.Transaction `json:"transactions"`
}

// Redis backs the transaction cache with a Redis instance so multiple
// analyzer processes share one cache. Same contract as Disk: TTL staleness,
// last writer wins.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, address string, ttl time.Duration, cutoff time.Time) ([]helius.Transaction, bool) {
	data, err := r.client.Get(ctx, keyPrefix+address).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("addr", address).Msg("redis cache read failed")
		}
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if time.Since(env.FetchedAt) > ttl {
		return nil, false
	}

	kept := env.Transactions[:0:0]
	for _, tx := range env.Transactions {
		if !tx.Time().Before(cutoff) {
			kept = append(kept, tx)
		}
	}
	if len(kept) == 0 {
		return nil, false
	}
	return kept, true
}

func (r *Redis) Put(ctx context.Context, address string, txs []helius.Transaction) {
	data, err := json.Marshal(envelope{FetchedAt: time.Now(), Transactions: txs})
	if err != nil {
		return
	}
	// Expiry doubles the TTL check on read; either alone bounds staleness.
	if err := r.client.Set(ctx, keyPrefix+address, data, 24*time.Hour).Err(); err != nil {
		log.Warn().Err(err).Str("addr", address).Msg("redis cache write failed")
	}
}
