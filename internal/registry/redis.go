package registry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/entities"
)

const (
	taskKeyPrefix = "resizer:task:"
	reapSetKey    = "resizer:reap"
)

// Redis is the alternative registry backend: job state lives in redis
// hashes, so job status survives a process restart and could be shared by
// several instances. Terminal jobs are scheduled on a sorted set keyed by
// their reap deadline; the reaper drains it and removes the task dirs.
type Redis struct {
	client    redis.UniversalClient
	retention time.Duration
	log       zerolog.Logger
}

func NewRedis(client redis.UniversalClient, retention time.Duration, log zerolog.Logger) *Redis {
	return &Redis{
		client:    client,
		retention: retention,
		log:       log,
	}
}

func taskKey(id string) string { return taskKeyPrefix + id }

func (r *Redis) Create(ctx context.Context, kind entities.MediaKind, taskDir string) (string, error) {
	id := uuid.NewString()

	err := r.client.HSet(ctx, taskKey(id), map[string]interface{}{
		"status":   string(entities.StatusProcessing),
		"progress": 0,
		"kind":     string(kind),
		"task_dir": taskDir,
		"created":  time.Now().Unix(),
	}).Err()
	if err != nil {
		return "", fmt.Errorf("create task entry: %w", err)
	}
	return id, nil
}

func (r *Redis) SetProgress(ctx context.Context, id string, percent int) {
	status, err := r.client.HGet(ctx, taskKey(id), "status").Result()
	if err != nil || status != string(entities.StatusProcessing) {
		return
	}
	if percent > 100 {
		percent = 100
	}

	current, _ := r.client.HGet(ctx, taskKey(id), "progress").Int()
	if percent <= current {
		return
	}
	if err := r.client.HSet(ctx, taskKey(id), "progress", percent).Err(); err != nil {
		r.log.Warn().Err(err).Str("task_id", id).Msg("could not store progress")
	}
}

func (r *Redis) Complete(ctx context.Context, id string, resultPath string) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":      string(entities.StatusCompleted),
		"progress":    100,
		"result_path": resultPath,
	})
}

func (r *Redis) Fail(ctx context.Context, id string) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":   string(entities.StatusFailed),
		"progress": 0,
	})
}

func (r *Redis) finish(ctx context.Context, id string, fields map[string]interface{}) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	deadline := time.Now().Add(r.retention)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, taskKey(id), fields)
	pipe.ZAdd(ctx, reapSetKey, redis.Z{
		Score:  float64(deadline.Unix()),
		Member: id + "|" + job.TaskDir,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store terminal state: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id string) (entities.Job, error) {
	fields, err := r.client.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return entities.Job{}, fmt.Errorf("read task entry: %w", err)
	}
	if len(fields) == 0 {
		return entities.Job{}, ErrNotFound
	}

	progress, _ := strconv.Atoi(fields["progress"])
	created, _ := strconv.ParseInt(fields["created"], 10, 64)
	return entities.Job{
		ID:               id,
		Status:           entities.JobStatus(fields["status"]),
		Progress:         progress,
		ResultPath:       fields["result_path"],
		Kind:             entities.MediaKind(fields["kind"]),
		TaskDir:          fields["task_dir"],
		CreatedTimestamp: time.Unix(created, 0),
	}, nil
}

// StartReaper drains due members from the reap set, deleting the task entry
// and its directory.
func (r *Redis) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.reap(ctx)
			}
		}
	}()
}

func (r *Redis) reap(ctx context.Context) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := r.client.ZRangeByScore(ctx, reapSetKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		r.log.Warn().Err(err).Msg("reap scan failed")
		return
	}

	for _, member := range due {
		id, taskDir, _ := strings.Cut(member, "|")
		if taskDir != "" {
			if err := os.RemoveAll(taskDir); err != nil {
				r.log.Warn().Err(err).Str("task_id", id).Msg("could not remove task dir")
				continue
			}
		}

		pipe := r.client.TxPipeline()
		pipe.Del(ctx, taskKey(id))
		pipe.ZRem(ctx, reapSetKey, member)
		if _, err := pipe.Exec(ctx); err != nil {
			r.log.Warn().Err(err).Str("task_id", id).Msg("could not remove task entry")
			continue
		}
		r.log.Info().Str("task_id", id).Msg("reaped expired task")
	}
}
