package media

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/YashMayekar/Resizer/internal/entities"
	"github.com/YashMayekar/Resizer/internal/processor"
)

var (
	// ErrUnsupportedFormat is reported synchronously at upload time; no job
	// is created for an extension outside the supported set.
	ErrUnsupportedFormat = errors.New("unsupported media format")
	// ErrDecodeFailure means the source file is unreadable or corrupt.
	ErrDecodeFailure = errors.New("could not decode source media")
	// ErrEncodeFailure means the output container could not be written.
	ErrEncodeFailure = errors.New("could not write output media")
)

// Request carries everything an adapter needs to resize one source file.
// Target dimensions are computed once per job from the first decoded frame
// so every frame of a sequence comes out the same size.
type Request struct {
	InputPath   string
	OutputPath  string
	Extension   string
	Percentage  int
	Upscale     bool
	UseSuperRes bool
}

// Adapter decodes one source into frames, pushes each frame through the
// transform pipeline and re-encodes the output container. Progress is
// reported through onProgress as a percentage in [0,100]; adapters check ctx
// between frames so long jobs can be cancelled.
type Adapter interface {
	Process(ctx context.Context, req Request, onProgress func(int)) error
}

var kindByExtension = map[string]entities.MediaKind{
	"jpg":  entities.KindImage,
	"jpeg": entities.KindImage,
	"png":  entities.KindImage,
	"gif":  entities.KindAnimated,
	"mp4":  entities.KindVideo,
	"mov":  entities.KindVideo,
	"avi":  entities.KindVideo,
	"mkv":  entities.KindVideo,
	"3gp":  entities.KindVideo,
}

// KindForExtension maps a lowercase file extension (without the dot) onto
// the media kind handled by one of the adapters.
func KindForExtension(ext string) (entities.MediaKind, bool) {
	kind, ok := kindByExtension[ext]
	return kind, ok
}

// Dispatcher hands out the adapter matching a media kind.
type Dispatcher struct {
	image    *ImageAdapter
	animated *GIFAdapter
	video    *VideoAdapter
}

func NewDispatcher(pipeline *processor.Pipeline, ffmpegPath, ffprobePath string) *Dispatcher {
	return &Dispatcher{
		image:    &ImageAdapter{pipeline: pipeline},
		animated: &GIFAdapter{pipeline: pipeline},
		video:    &VideoAdapter{pipeline: pipeline, ffmpeg: ffmpegPath, ffprobe: ffprobePath},
	}
}

func (d *Dispatcher) AdapterFor(kind entities.MediaKind) (Adapter, error) {
	switch kind {
	case entities.KindImage:
		return d.image, nil
	case entities.KindAnimated:
		return d.animated, nil
	case entities.KindVideo:
		return d.video, nil
	default:
		return nil, fmt.Errorf("%w: no adapter for kind %q", ErrUnsupportedFormat, kind)
	}
}

// restoreAlpha re-applies the original frame's transparency onto a resized
// result. The super-resolution collaborator drops the alpha channel, so
// formats that carry transparency scale the source alpha to the output size
// and merge it back.
func restoreAlpha(result *image.NRGBA, original image.Image) *image.NRGBA {
	src := imaging.Clone(original)
	opaque := true
	for i := 3; i < len(src.Pix); i += 4 {
		if src.Pix[i] != 255 {
			opaque = false
			break
		}
	}
	if opaque {
		return result
	}

	b := result.Bounds()
	mask := imaging.Resize(src, b.Dx(), b.Dy(), imaging.Box)
	for i := 3; i < len(result.Pix) && i < len(mask.Pix); i += 4 {
		result.Pix[i] = mask.Pix[i]
	}
	return result
}
