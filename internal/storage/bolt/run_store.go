package bolt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/endolog/internal/storage"
	"go.etcd.io/bbolt"
)

type runStore struct {
	db *bbolt.DB
}

// Add appends a completed run to the history.
func (s *runStore) Add(ctx context.Context, run storage.Run) error {
	key, err := runKey(run.StartedAt)
	if err != nil {
		return err
	}
	if run.ID == "" {
		run.ID = key
	}

	data, err := marshal(run)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketRuns))
		if bucket == nil {
			return fmt.Errorf("runs bucket not found")
		}
		return bucket.Put([]byte(key), data)
	})
}

// List returns the most recent runs, newest first. A limit of zero or less
// returns the full history.
func (s *runStore) List(ctx context.Context, limit int) ([]storage.Run, error) {
	runs := make([]storage.Run, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketRuns))
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run storage.Run
			if err := unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return runs, nil
}

// DeleteBefore removes runs that started before the cutoff and reports how
// many were deleted.
func (s *runStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketRuns))
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ts, ok := parseRunKey(string(k))
			if !ok || !ts.Before(cutoff) {
				continue
			}
			if err := cursor.Delete(); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})

	if err != nil {
		return 0, err
	}

	return deleted, nil
}

func parseRunKey(key string) (time.Time, bool) {
	idx := strings.IndexByte(key, '-')
	if idx < 0 {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(key[:idx], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}
