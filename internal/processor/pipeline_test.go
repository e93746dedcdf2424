package processor

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/YashMayekar/Resizer/internal/scale"
	"github.com/YashMayekar/Resizer/internal/superres"
)

type doublingUpsampler struct {
	calls int
}

func (d *doublingUpsampler) Upsample(img image.Image) (image.Image, error) {
	d.calls++
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*2, b.Dy()*2, imaging.NearestNeighbor), nil
}

type brokenUpsampler struct{}

func (brokenUpsampler) Upsample(image.Image) (image.Image, error) {
	return nil, superres.ErrModelUnavailable
}

func testFrame(w, h int) *image.NRGBA {
	frame := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			frame.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 20), B: 100, A: 255})
		}
	}
	return frame
}

func TestTransformResizesToExactTarget(t *testing.T) {
	p := New(nil)

	out, err := p.Transform(testFrame(10, 10), 20, 20, scale.Cubic, false)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got := out.Bounds(); got.Dx() != 20 || got.Dy() != 20 {
		t.Fatalf("Transform() bounds = %dx%d, want 20x20", got.Dx(), got.Dy())
	}
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	p := New(nil)

	frame := testFrame(8, 8)
	before := make([]byte, len(frame.Pix))
	copy(before, frame.Pix)

	if _, err := p.Transform(frame, 4, 4, scale.AreaAverage, false); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	for i := range before {
		if frame.Pix[i] != before[i] {
			t.Fatal("Transform() mutated the input frame")
		}
	}
}

func TestTransformSuperResThenResample(t *testing.T) {
	up := &doublingUpsampler{}
	p := New(up)

	out, err := p.Transform(testFrame(10, 10), 15, 15, scale.Cubic, true)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if up.calls != 1 {
		t.Fatalf("upsampler called %d times, want 1", up.calls)
	}
	// The super-resolved frame still lands on the exact requested target.
	if got := out.Bounds(); got.Dx() != 15 || got.Dy() != 15 {
		t.Fatalf("Transform() bounds = %dx%d, want 15x15", got.Dx(), got.Dy())
	}
}

func TestTransformNoUpsamplerConfigured(t *testing.T) {
	p := New(nil)

	_, err := p.Transform(testFrame(10, 10), 20, 20, scale.Cubic, true)
	if !errors.Is(err, superres.ErrModelUnavailable) {
		t.Fatalf("Transform() error = %v, want ErrModelUnavailable", err)
	}
}

func TestTransformUpsamplerFailurePropagates(t *testing.T) {
	p := New(brokenUpsampler{})

	_, err := p.Transform(testFrame(10, 10), 20, 20, scale.Cubic, true)
	if !errors.Is(err, superres.ErrModelUnavailable) {
		t.Fatalf("Transform() error = %v, want ErrModelUnavailable", err)
	}
}

func TestFlattenDropsAlpha(t *testing.T) {
	frame := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	frame.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 10, B: 10, A: 128})

	flat := flatten(frame)
	for i := 3; i < len(flat.Pix); i += 4 {
		if flat.Pix[i] != 255 {
			t.Fatalf("flatten() left alpha %d at offset %d, want 255", flat.Pix[i], i)
		}
	}
}
