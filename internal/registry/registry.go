package registry

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/entities"
)

// ErrNotFound is returned for unknown (or already reaped) task ids.
var ErrNotFound = errors.New("task not found")

// Registry owns the lifecycle of every job: creation, progress, terminal
// state and cleanup. Each job is mutated by exactly one executor, so the
// only synchronization implementations need is around the shared store
// itself. All operations are short; none blocks on job processing.
type Registry interface {
	Create(ctx context.Context, kind entities.MediaKind, taskDir string) (string, error)
	// SetProgress ignores unknown ids and values below the current progress,
	// which keeps polled progress non-decreasing even across a reap race.
	SetProgress(ctx context.Context, id string, percent int)
	Complete(ctx context.Context, id string, resultPath string) error
	Fail(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (entities.Job, error)
}

// Memory is the default registry backend: a mutex-guarded map. Terminal
// entries older than the retention are reaped together with their task dir.
type Memory struct {
	mu        sync.RWMutex
	jobs      map[string]*entities.Job
	retention time.Duration
	log       zerolog.Logger
}

func NewMemory(retention time.Duration, log zerolog.Logger) *Memory {
	return &Memory{
		jobs:      make(map[string]*entities.Job),
		retention: retention,
		log:       log,
	}
}

func (m *Memory) Create(ctx context.Context, kind entities.MediaKind, taskDir string) (string, error) {
	id := uuid.NewString()
	now := time.Now()

	m.mu.Lock()
	m.jobs[id] = &entities.Job{
		ID:               id,
		Status:           entities.StatusProcessing,
		Kind:             kind,
		TaskDir:          taskDir,
		CreatedTimestamp: now,
		UpdatedTimestamp: now,
	}
	m.mu.Unlock()

	return id, nil
}

func (m *Memory) SetProgress(ctx context.Context, id string, percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok || job.Status != entities.StatusProcessing {
		return
	}
	if percent <= job.Progress {
		return
	}
	if percent > 100 {
		percent = 100
	}
	job.Progress = percent
	job.UpdatedTimestamp = time.Now()
}

func (m *Memory) Complete(ctx context.Context, id string, resultPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Status = entities.StatusCompleted
	job.Progress = 100
	job.ResultPath = resultPath
	job.UpdatedTimestamp = time.Now()
	return nil
}

func (m *Memory) Fail(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Status = entities.StatusFailed
	job.Progress = 0
	job.UpdatedTimestamp = time.Now()
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (entities.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return entities.Job{}, ErrNotFound
	}
	return *job, nil
}

// StartReaper evicts terminal jobs older than the retention and removes
// their task dirs. Jobs still processing are never touched.
func (m *Memory) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.reap()
			}
		}
	}()
}

func (m *Memory) reap() {
	cutoff := time.Now().Add(-m.retention)

	m.mu.RLock()
	var expired []*entities.Job
	for _, job := range m.jobs {
		if job.Status.Terminal() && job.UpdatedTimestamp.Before(cutoff) {
			expired = append(expired, job)
		}
	}
	m.mu.RUnlock()

	// Remove the task dir before dropping the entry; a failed removal keeps
	// the entry so the next tick retries instead of leaking the dir forever.
	for _, job := range expired {
		if job.TaskDir != "" {
			if err := os.RemoveAll(job.TaskDir); err != nil {
				m.log.Warn().Err(err).Str("task_id", job.ID).Msg("could not remove task dir")
				continue
			}
		}
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		m.log.Info().Str("task_id", job.ID).Msg("reaped expired task")
	}
}
