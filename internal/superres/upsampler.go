package superres

import (
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// ErrModelUnavailable is returned when super-resolution is requested but the
// model could not be initialized. Jobs that don't ask for super-resolution
// are unaffected.
var ErrModelUnavailable = errors.New("super-resolution model unavailable")

// Upsampler enlarges a single frame with higher fidelity than plain
// interpolation. Implementations take a 3-channel frame; callers strip
// alpha before invoking it.
type Upsampler interface {
	Upsample(img image.Image) (image.Image, error)
}

// Engine drives an external Real-ESRGAN style binary over temp files. The
// model is probed lazily on first use and shared read-only between jobs.
type Engine struct {
	binary    string
	modelDir  string
	modelName string
	log       zerolog.Logger

	once    sync.Once
	initErr error
}

func NewEngine(binary, modelDir, modelName string, log zerolog.Logger) *Engine {
	return &Engine{
		binary:    binary,
		modelDir:  modelDir,
		modelName: modelName,
		log:       log,
	}
}

func (e *Engine) init() {
	if e.binary == "" {
		e.initErr = fmt.Errorf("%w: no engine binary configured", ErrModelUnavailable)
		return
	}
	if _, err := exec.LookPath(e.binary); err != nil {
		e.initErr = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		return
	}
	if e.modelDir != "" {
		if _, err := os.Stat(e.modelDir); err != nil {
			e.initErr = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
			return
		}
	}
	e.log.Info().Str("binary", e.binary).Str("model", e.modelName).Msg("super-resolution engine ready")
}

func (e *Engine) Upsample(img image.Image) (image.Image, error) {
	e.once.Do(e.init)
	if e.initErr != nil {
		return nil, e.initErr
	}

	dir, err := os.MkdirTemp("", "superres_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "frame.png")
	out := filepath.Join(dir, "frame_up.png")

	if err := imaging.Save(img, in); err != nil {
		return nil, fmt.Errorf("write engine input: %w", err)
	}

	args := []string{"-i", in, "-o", out}
	if e.modelDir != "" {
		args = append(args, "-m", e.modelDir)
	}
	if e.modelName != "" {
		args = append(args, "-n", e.modelName)
	}

	if output, err := exec.Command(e.binary, args...).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("super-resolution engine failed: %v: %s", err, output)
	}

	up, err := imaging.Open(out)
	if err != nil {
		return nil, fmt.Errorf("read engine output: %w", err)
	}
	return up, nil
}
