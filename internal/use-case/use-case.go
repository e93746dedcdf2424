package use_case

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/entities"
	"github.com/YashMayekar/Resizer/internal/media"
	"github.com/YashMayekar/Resizer/internal/registry"
	"github.com/YashMayekar/Resizer/internal/transport/handler"
)

// Executor runs one job to a terminal state.
type Executor interface {
	Run(ctx context.Context, id string, kind entities.MediaKind, req media.Request)
}

type useCase struct {
	registry registry.Registry
	executor Executor
	workDir  string
	superRes bool
	baseCtx  context.Context
	log      zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New wires the upload/poll/result orchestration. Job goroutines derive
// from baseCtx, not from request contexts, so a closed upload connection
// never aborts a running job.
func New(baseCtx context.Context, reg registry.Registry, exec Executor, workDir string, superRes bool, log zerolog.Logger) *useCase {
	return &useCase{
		registry: reg,
		executor: exec,
		workDir:  workDir,
		superRes: superRes,
		baseCtx:  baseCtx,
		log:      log,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// StartResize stores the upload in a fresh task dir, registers the job and
// dispatches the executor. It returns as soon as the job is registered; no
// frame processing happens on the request path. Unsupported extensions are
// rejected before any registry entry exists.
func (c *useCase) StartResize(ctx context.Context, file multipart.File, filename string, params handler.ResizeParams) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	kind, ok := media.KindForExtension(ext)
	if !ok {
		return "", fmt.Errorf("%w: %q", media.ErrUnsupportedFormat, ext)
	}

	dir, err := os.MkdirTemp(c.workDir, "task_")
	if err != nil {
		return "", fmt.Errorf("create task dir: %w", err)
	}

	inputPath := filepath.Join(dir, "input."+ext)
	if err := storeUpload(file, inputPath); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	id, err := c.registry.Create(ctx, kind, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	req := media.Request{
		InputPath:   inputPath,
		OutputPath:  filepath.Join(dir, "output."+ext),
		Extension:   ext,
		Percentage:  params.Percentage,
		Upscale:     params.Upscale,
		UseSuperRes: params.Upscale && c.superRes,
	}

	jobCtx, cancel := context.WithCancel(c.baseCtx)
	c.mu.Lock()
	c.cancels[id] = cancel
	c.mu.Unlock()

	c.log.Info().Str("task_id", id).Str("file", filename).Msg("job accepted")

	go func() {
		defer c.dropCancel(id)
		c.executor.Run(jobCtx, id, kind, req)
	}()

	return id, nil
}

// Progress returns the polling snapshot for a job.
func (c *useCase) Progress(ctx context.Context, id string) (entities.JobView, error) {
	job, err := c.registry.Get(ctx, id)
	if err != nil {
		return entities.JobView{}, err
	}
	return job.View(), nil
}

// Result returns the job once its artifact can be served. A job that is
// still processing or has failed yields ErrNotCompleted; a completed job
// whose file was reaped yields ErrNotFound.
func (c *useCase) Result(ctx context.Context, id string) (entities.Job, error) {
	job, err := c.registry.Get(ctx, id)
	if err != nil {
		return entities.Job{}, err
	}
	if job.Status != entities.StatusCompleted {
		return entities.Job{}, entities.ErrNotCompleted
	}
	if _, err := os.Stat(job.ResultPath); err != nil {
		return entities.Job{}, fmt.Errorf("%w: result file missing", registry.ErrNotFound)
	}
	return job, nil
}

// Cancel aborts a running job; the executor notices between frames and the
// job lands in the failed terminal state.
func (c *useCase) Cancel(ctx context.Context, id string) error {
	job, err := c.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return entities.ErrAlreadyFinished
	}

	c.mu.Lock()
	cancel, ok := c.cancels[id]
	c.mu.Unlock()
	if !ok {
		// Entry exists but no executor runs in this process, e.g. a redis
		// backend shared with another instance.
		return entities.ErrAlreadyFinished
	}

	cancel()
	c.log.Info().Str("task_id", id).Msg("job cancellation requested")
	return nil
}

func (c *useCase) dropCancel(id string) {
	c.mu.Lock()
	if cancel, ok := c.cancels[id]; ok {
		cancel()
		delete(c.cancels, id)
	}
	c.mu.Unlock()
}

func storeUpload(file multipart.File, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}
