package media

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"os"

	"github.com/YashMayekar/Resizer/internal/processor"
	"github.com/YashMayekar/Resizer/internal/scale"
)

// GIFAdapter resizes every frame of an animated GIF in original order,
// preserving per-frame delays and forcing the loop count to infinite on the
// output, which is the common convention for resized animations.
type GIFAdapter struct {
	pipeline *processor.Pipeline
}

func (a *GIFAdapter) Process(ctx context.Context, req Request, onProgress func(int)) error {
	in, err := os.Open(req.InputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	defer in.Close()

	src, err := gif.DecodeAll(in)
	if err != nil || len(src.Image) == 0 {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	// Frames of an optimized GIF can be partial patches; composite each one
	// over the running canvas so every output frame is full size.
	canvasW, canvasH := src.Config.Width, src.Config.Height
	if canvasW == 0 || canvasH == 0 {
		b := src.Image[0].Bounds()
		canvasW, canvasH = b.Max.X, b.Max.Y
	}
	tw, th, filter := scale.ComputeTarget(canvasW, canvasH, req.Percentage, req.Upscale)

	canvas := image.NewNRGBA(image.Rect(0, 0, canvasW, canvasH))
	total := len(src.Image)

	out := &gif.GIF{
		Delay:     src.Delay,
		LoopCount: 0,
		Config: image.Config{
			Width:  tw,
			Height: th,
		},
	}

	for i, frame := range src.Image {
		if err := ctx.Err(); err != nil {
			return err
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		resized, err := a.pipeline.Transform(canvas, tw, th, filter, req.UseSuperRes)
		if err != nil {
			return err
		}
		if req.UseSuperRes {
			resized = restoreAlpha(resized, canvas)
		}

		paletted := image.NewPaletted(image.Rect(0, 0, tw, th), frame.Palette)
		draw.FloydSteinberg.Draw(paletted, paletted.Rect, resized, image.Point{})
		out.Image = append(out.Image, paletted)

		onProgress((i + 1) * 100 / total)
	}

	f, err := os.Create(req.OutputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}
	defer f.Close()

	if err := gif.EncodeAll(f, out); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}
	return nil
}
