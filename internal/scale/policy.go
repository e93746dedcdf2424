package scale

import "github.com/disintegration/imaging"

// Filter selects the resampling kernel for a resize direction.
type Filter string

const (
	// Cubic produces smoother results when enlarging.
	Cubic Filter = "cubic"
	// AreaAverage minimizes aliasing when shrinking.
	AreaAverage Filter = "area"
)

// Resample maps the filter onto the imaging kernel used by the pipeline.
func (f Filter) Resample() imaging.ResampleFilter {
	if f == Cubic {
		return imaging.CatmullRom
	}
	return imaging.Box
}

// ComputeTarget maps a requested percentage onto output dimensions and a
// resampling filter. Upscaling adds the percentage on top of the original
// size (50% upscale means 150% of the source); downscaling uses the
// percentage directly as the target fraction, clamped to 1% so the output
// never collapses to zero. Dimensions are floored to at least one pixel.
//
// The function is pure; adapters call it once per job so every frame of a
// video or animation comes out with the same dimensions.
func ComputeTarget(srcWidth, srcHeight, percentage int, upscale bool) (int, int, Filter) {
	var effective int
	var filter Filter
	if upscale {
		effective = 100 + percentage
		filter = Cubic
	} else {
		effective = percentage
		if effective < 1 {
			effective = 1
		}
		filter = AreaAverage
	}

	w := srcWidth * effective / 100
	h := srcHeight * effective / 100
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h, filter
}
