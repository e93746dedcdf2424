package media

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/YashMayekar/Resizer/internal/processor"
	"github.com/YashMayekar/Resizer/internal/scale"
)

// ImageAdapter resizes a single-frame still image, preserving the source
// format on the output. Progress is staged at the decode / transform /
// encode boundaries.
type ImageAdapter struct {
	pipeline *processor.Pipeline
}

func (a *ImageAdapter) Process(ctx context.Context, req Request, onProgress func(int)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(req.InputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	defer in.Close()

	var frame image.Image
	switch req.Extension {
	case "png":
		frame, err = png.Decode(in)
	case "jpg", "jpeg":
		frame, err = jpeg.Decode(in)
	default:
		return fmt.Errorf("%w: %q is not a still image", ErrUnsupportedFormat, req.Extension)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	onProgress(20)

	b := frame.Bounds()
	tw, th, filter := scale.ComputeTarget(b.Dx(), b.Dy(), req.Percentage, req.Upscale)

	resized, err := a.pipeline.Transform(frame, tw, th, filter, req.UseSuperRes)
	if err != nil {
		return err
	}
	if req.UseSuperRes && req.Extension == "png" {
		resized = restoreAlpha(resized, frame)
	}
	onProgress(80)

	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := os.Create(req.OutputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}
	defer out.Close()

	switch req.Extension {
	case "png":
		err = png.Encode(out, resized)
	case "jpg", "jpeg":
		err = jpeg.Encode(out, resized, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}
	return nil
}
