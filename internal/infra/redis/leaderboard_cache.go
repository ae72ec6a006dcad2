package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"simulado-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LeaderboardCache is a Redis-backed implementation of app.LeaderboardCache.
// Boards are shared across instances:
//
//	SET  exam:{examID}:leaderboard {json} EX ttl
//	INCR exam:{examID}:leaderboard:gen   (on every submission)
//
// Put runs under WATCH on the generation key, so a board built before an
// invalidation is discarded instead of overwriting the fresh state.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *LeaderboardCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &LeaderboardCache{client: client, ttl: ttl, log: log}
}

func (c *LeaderboardCache) Get(ctx context.Context, examID string) (domain.Leaderboard, bool) {
	raw, err := c.client.Get(ctx, c.key(examID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("leaderboard cache read failed", zap.String("examId", examID), zap.Error(err))
		}
		return domain.Leaderboard{}, false
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		c.log.Warn("leaderboard cache entry unreadable", zap.String("examId", examID), zap.Error(err))
		return domain.Leaderboard{}, false
	}
	return lb, true
}

func (c *LeaderboardCache) Generation(ctx context.Context, examID string) (int64, error) {
	return generation(ctx, c.client, c.genKey(examID))
}

func (c *LeaderboardCache) Put(ctx context.Context, lb domain.Leaderboard, gen int64) error {
	if c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(lb)
	if err != nil {
		return err
	}

	genKey := c.genKey(lb.ExamID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generation(ctx, tx, genKey)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(lb.ExamID), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *LeaderboardCache) Invalidate(ctx context.Context, examID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(examID))
		pipe.Del(ctx, c.key(examID))
		return nil
	})
	return err
}

func (c *LeaderboardCache) key(examID string) string {
	return "exam:" + examID + ":leaderboard"
}

func (c *LeaderboardCache) genKey(examID string) string {
	return "exam:" + examID + ":leaderboard:gen"
}

func generation(ctx context.Context, cmd redis.Cmdable, key string) (int64, error) {
	gen, err := cmd.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}
