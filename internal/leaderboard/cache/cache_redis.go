package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stagevote/internal/leaderboard"
	"stagevote/pkg/domain"
)

// RedisCache shares computed boards across instances. Entries expire on the
// Redis side; a decode failure is treated as a miss so a schema change never
// breaks reads.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

const redisKeyPrefix = "leaderboard:"

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(competitionID domain.CompetitionID) string {
	return redisKeyPrefix + competitionID.String()
}

func (c *RedisCache) Get(ctx context.Context, competitionID domain.CompetitionID) (leaderboard.Board, bool, error) {
	raw, err := c.client.Get(ctx, c.key(competitionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return leaderboard.Board{}, false, nil
		}
		return leaderboard.Board{}, false, fmt.Errorf("leaderboard cache get: %w", err)
	}

	var board leaderboard.Board
	if err := json.Unmarshal(raw, &board); err != nil {
		return leaderboard.Board{}, false, nil
	}
	return board, true, nil
}

func (c *RedisCache) Set(ctx context.Context, competitionID domain.CompetitionID, board leaderboard.Board) error {
	raw, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("leaderboard cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(competitionID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("leaderboard cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, competitionID domain.CompetitionID) error {
	if err := c.client.Del(ctx, c.key(competitionID)).Err(); err != nil {
		return fmt.Errorf("leaderboard cache invalidate: %w", err)
	}
	return nil
}
