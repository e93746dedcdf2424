package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/artifact"
	"github.com/YashMayekar/Resizer/internal/config"
	"github.com/YashMayekar/Resizer/internal/executor"
	"github.com/YashMayekar/Resizer/internal/media"
	"github.com/YashMayekar/Resizer/internal/processor"
	"github.com/YashMayekar/Resizer/internal/redisholder"
	"github.com/YashMayekar/Resizer/internal/registry"
	"github.com/YashMayekar/Resizer/internal/superres"
	"github.com/YashMayekar/Resizer/internal/transport/handler"
	"github.com/YashMayekar/Resizer/internal/transport/router"
	use_case "github.com/YashMayekar/Resizer/internal/use-case"
)

type App struct {
	HttpServer *http.Server
	log        zerolog.Logger
}

// New wires the whole service: registry backend, codec adapters, executor,
// orchestration and HTTP surface. ctx bounds every background loop (reaper,
// redis health, artifact workers) and every running job.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	workDir := cfg.Jobs.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	retention := cfg.Jobs.Retention * time.Second
	reapInterval := cfg.Jobs.ReapInterval * time.Second

	var reg registry.Registry
	switch cfg.Jobs.Backend {
	case "", "memory":
		mem := registry.NewMemory(retention, log)
		mem.StartReaper(ctx, reapInterval)
		reg = mem
	case "redis":
		holder, err := redisholder.Build(ctx, &cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("connect registry backend: %w", err)
		}
		red := registry.NewRedis(holder.Get(), retention, log)
		red.StartReaper(ctx, reapInterval)
		reg = red
	default:
		return nil, fmt.Errorf("unknown jobs backend %q", cfg.Jobs.Backend)
	}

	var upsampler superres.Upsampler
	if cfg.SuperRes.Enabled {
		upsampler = superres.NewEngine(cfg.SuperRes.Binary, cfg.SuperRes.ModelDir, cfg.SuperRes.ModelName, log)
	}
	pipeline := processor.New(upsampler)
	adapters := media.NewDispatcher(pipeline, cfg.Media.FFmpegPath, cfg.Media.FFprobePath)

	var mirror executor.Mirror
	if cfg.Artifact.Enabled {
		store, err := artifact.NewStorage(&cfg.Artifact, log)
		if err != nil {
			return nil, fmt.Errorf("init artifact mirror: %w", err)
		}
		store.Start(ctx)
		mirror = store
	}

	exec := executor.New(reg, adapters, mirror, cfg.Jobs.MaxConcurrent, log)
	uc := use_case.New(ctx, reg, exec, workDir, cfg.SuperRes.Enabled, log)

	h := handler.New(uc, cfg, log)
	r := router.NewRouter(h, log)

	s := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout * time.Second,
	}

	return &App{HttpServer: s, log: log}, nil
}

func (a *App) Run() error {
	a.log.Info().Str("addr", a.HttpServer.Addr).Msg("starting server")
	return a.HttpServer.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.HttpServer.Shutdown(ctx)
}
