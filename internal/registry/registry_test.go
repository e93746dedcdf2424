package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/entities"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	return NewMemory(time.Hour, zerolog.Nop())
}

func TestMemoryCreateAndGet(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	id, err := m.Create(ctx, entities.KindImage, "/tmp/task_x")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == "" {
		t.Fatal("Create() returned empty id")
	}

	job, err := m.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.Status != entities.StatusProcessing || job.Progress != 0 {
		t.Fatalf("new job = %q/%d, want processing/0", job.Status, job.Progress)
	}
	if job.Kind != entities.KindImage || job.TaskDir != "/tmp/task_x" {
		t.Fatalf("job metadata not stored: %+v", job)
	}
}

func TestMemoryGetUnknown(t *testing.T) {
	m := newTestMemory(t)
	if _, err := m.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryProgressMonotonic(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	id, _ := m.Create(ctx, entities.KindVideo, "")

	m.SetProgress(ctx, id, 40)
	m.SetProgress(ctx, id, 25) // stale value must not reappear
	m.SetProgress(ctx, id, 60)
	m.SetProgress(ctx, id, 250) // capped

	job, _ := m.Get(ctx, id)
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want 100 (capped)", job.Progress)
	}
}

func TestMemoryProgressIgnoresUnknown(t *testing.T) {
	m := newTestMemory(t)
	// Guards the reap-during-run corner case; must not panic or create entries.
	m.SetProgress(context.Background(), "ghost", 50)
	if _, err := m.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatal("SetProgress on unknown id created an entry")
	}
}

func TestMemoryComplete(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	id, _ := m.Create(ctx, entities.KindImage, "")

	if err := m.Complete(ctx, id, "/tmp/out.png"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	job, _ := m.Get(ctx, id)
	if job.Status != entities.StatusCompleted || job.Progress != 100 || job.ResultPath != "/tmp/out.png" {
		t.Fatalf("completed job = %+v", job)
	}

	// Terminal state is sticky.
	if err := m.Fail(ctx, id); err != nil {
		t.Fatalf("Fail() after Complete() error = %v", err)
	}
	job, _ = m.Get(ctx, id)
	if job.Status != entities.StatusCompleted {
		t.Fatalf("status flipped after terminal state: %q", job.Status)
	}
	m.SetProgress(ctx, id, 50)
	job, _ = m.Get(ctx, id)
	if job.Progress != 100 {
		t.Fatalf("progress moved after terminal state: %d", job.Progress)
	}
}

func TestMemoryFail(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	id, _ := m.Create(ctx, entities.KindVideo, "")
	m.SetProgress(ctx, id, 70)

	if err := m.Fail(ctx, id); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	job, _ := m.Get(ctx, id)
	if job.Status != entities.StatusFailed || job.Progress != 0 {
		t.Fatalf("failed job = %q/%d, want failed/0", job.Status, job.Progress)
	}
	if job.ResultPath != "" {
		t.Fatalf("failed job has result path %q", job.ResultPath)
	}
}

func TestMemoryConcurrentJobsStayIsolated(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()
	const n = 20

	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.Create(ctx, entities.KindImage, "")
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			ids[i] = id
			for p := 10; p <= 90; p += 10 {
				m.SetProgress(ctx, id, p)
			}
			if i%2 == 0 {
				_ = m.Complete(ctx, id, fmt.Sprintf("/tmp/out_%d", i))
			} else {
				_ = m.Fail(ctx, id)
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate job id %q", id)
		}
		seen[id] = true

		job, err := m.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", id, err)
		}
		if i%2 == 0 {
			if job.Status != entities.StatusCompleted || job.ResultPath != fmt.Sprintf("/tmp/out_%d", i) {
				t.Fatalf("job %d leaked state: %+v", i, job)
			}
		} else if job.Status != entities.StatusFailed || job.Progress != 0 {
			t.Fatalf("job %d leaked state: %+v", i, job)
		}
	}
}

func TestMemoryReap(t *testing.T) {
	m := NewMemory(10*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	dir := filepath.Join(t.TempDir(), "task_old")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	oldID, _ := m.Create(ctx, entities.KindImage, dir)
	_ = m.Complete(ctx, oldID, filepath.Join(dir, "output.png"))
	runningID, _ := m.Create(ctx, entities.KindVideo, "")

	time.Sleep(20 * time.Millisecond)
	m.reap()

	if _, err := m.Get(ctx, oldID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired job still present: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("task dir not removed: %v", err)
	}
	if _, err := m.Get(ctx, runningID); err != nil {
		t.Fatalf("running job was reaped: %v", err)
	}
}

func TestMemoryReapRetriesOnDirRemovalFailure(t *testing.T) {
	m := NewMemory(10*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	// A path whose parent is a regular file: RemoveAll fails with ENOTDIR.
	file := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	blocked := filepath.Join(file, "task_dir")

	id, _ := m.Create(ctx, entities.KindImage, blocked)
	_ = m.Fail(ctx, id)
	time.Sleep(20 * time.Millisecond)

	m.reap()
	if _, err := m.Get(ctx, id); err != nil {
		t.Fatalf("entry dropped despite failed dir removal: %v", err)
	}

	// Once the dir can be removed the next tick finishes the job off.
	m.mu.Lock()
	dir := filepath.Join(t.TempDir(), "task_dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.mu.Unlock()
		t.Fatal(err)
	}
	m.jobs[id].TaskDir = dir
	m.mu.Unlock()

	m.reap()
	if _, err := m.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("entry still present after successful removal: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("task dir not removed: %v", err)
	}
}
