package processor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/YashMayekar/Resizer/internal/scale"
	"github.com/YashMayekar/Resizer/internal/superres"
)

// Pipeline turns one decoded frame into one resized frame. It is stateless
// per call and shared by the image, GIF and video adapters; the input frame
// is never mutated.
type Pipeline struct {
	upsampler superres.Upsampler
}

func New(upsampler superres.Upsampler) *Pipeline {
	return &Pipeline{upsampler: upsampler}
}

// Transform resamples frame to exactly (targetWidth, targetHeight) using the
// given filter. When useSuperRes is set the frame passes through the
// super-resolution collaborator first; the collaborator only accepts
// 3-channel input, so alpha is flattened here and adapters re-apply alpha
// semantics where the output format needs them.
func (p *Pipeline) Transform(frame image.Image, targetWidth, targetHeight int, filter scale.Filter, useSuperRes bool) (*image.NRGBA, error) {
	src := frame
	if useSuperRes {
		if p.upsampler == nil {
			return nil, superres.ErrModelUnavailable
		}
		up, err := p.upsampler.Upsample(flatten(frame))
		if err != nil {
			return nil, err
		}
		src = up
	}
	return imaging.Resize(src, targetWidth, targetHeight, filter.Resample()), nil
}

// flatten composites the frame onto an opaque canvas, dropping the alpha
// channel and expanding grayscale to color on the way.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := imaging.New(b.Dx(), b.Dy(), color.NRGBA{A: 255})
	return imaging.Overlay(dst, img, image.Pt(0, 0), 1.0)
}
