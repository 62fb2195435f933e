package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/endolog/internal/storage"
	"github.com/redis/go-redis/v9"
)

const runsIndex = "endolog:runs"

type runStore struct {
	client *redis.Client
}

func runHashKey(id string) string {
	return fmt.Sprintf("endolog:run:%s", id)
}

// Add appends a completed run to the history.
func (s *runStore) Add(ctx context.Context, run storage.Run) error {
	if run.ID == "" {
		suffix := make([]byte, 4)
		if _, err := rand.Read(suffix); err != nil {
			return fmt.Errorf("run id suffix: %w", err)
		}
		run.ID = fmt.Sprintf("%020d-%s", run.StartedAt.UnixNano(), hex.EncodeToString(suffix))
	}

	fields := map[string]any{
		"id":         run.ID,
		"path":       run.Path,
		"username":   run.Username,
		"started_at": run.StartedAt.Format(time.RFC3339Nano),
		"stopped_at": run.StoppedAt.Format(time.RFC3339Nano),
		"records":    strconv.FormatUint(run.Records, 10),
		"reason":     run.Reason,
	}

	if err := s.client.HSet(ctx, runHashKey(run.ID), fields).Err(); err != nil {
		return err
	}

	return s.client.ZAdd(ctx, runsIndex, redis.Z{
		Score:  float64(run.StartedAt.UnixNano()),
		Member: run.ID,
	}).Err()
}

// List returns the most recent runs, newest first. A limit of zero or less
// returns the full history.
func (s *runStore) List(ctx context.Context, limit int) ([]storage.Run, error) {
	count := int64(limit)
	if limit <= 0 {
		count = -1
	}

	ids, err := s.client.ZRevRangeByScore(ctx, runsIndex, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: count,
	}).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.Run{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))

	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, runHashKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	runs := make([]storage.Run, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		run, err := parseRun(data)
		if err == nil {
			runs = append(runs, *run)
		}
	}

	return runs, nil
}

// DeleteBefore removes runs that started before the cutoff and reports how
// many were deleted.
func (s *runStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	max := fmt.Sprintf("(%d", cutoff.UnixNano())

	ids, err := s.client.ZRangeByScore(ctx, runsIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, runHashKey(id))
	}
	pipe.ZRemRangeByScore(ctx, runsIndex, "-inf", max)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, err
	}

	return len(ids), nil
}
