package media

import (
	"context"
	"image"
	"image/color/palette"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/YashMayekar/Resizer/internal/processor"
)

func writeTestGIF(t *testing.T, path string, w, h, frames int) {
	t.Helper()
	out := &gif.GIF{LoopCount: 3}
	for i := 0; i < frames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), palette.Plan9)
		for p := range frame.Pix {
			frame.Pix[p] = uint8((p + i*7) % 256)
		}
		out.Image = append(out.Image, frame)
		out.Delay = append(out.Delay, 10+i)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := gif.EncodeAll(f, out); err != nil {
		t.Fatal(err)
	}
}

func TestGIFAdapterResizesEveryFrame(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.gif")
	out := filepath.Join(dir, "output.gif")
	writeTestGIF(t, in, 20, 10, 3)

	a := &GIFAdapter{pipeline: processor.New(nil)}
	var progress []int
	err := a.Process(context.Background(), Request{
		InputPath:  in,
		OutputPath: out,
		Extension:  "gif",
		Percentage: 50,
	}, func(p int) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("output not decodable: %v", err)
	}

	if len(decoded.Image) != 3 {
		t.Fatalf("output has %d frames, want 3", len(decoded.Image))
	}
	for i, frame := range decoded.Image {
		if b := frame.Bounds(); b.Dx() != 10 || b.Dy() != 5 {
			t.Fatalf("frame %d = %dx%d, want 10x5", i, b.Dx(), b.Dy())
		}
	}
	if decoded.LoopCount != 0 {
		t.Fatalf("output loop count = %d, want 0 (infinite)", decoded.LoopCount)
	}

	want := []int{33, 66, 100}
	if len(progress) != len(want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress = %v, want %v", progress, want)
		}
	}
}

func TestGIFAdapterPreservesDelays(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.gif")
	out := filepath.Join(dir, "output.gif")
	writeTestGIF(t, in, 8, 8, 2)

	a := &GIFAdapter{pipeline: processor.New(nil)}
	err := a.Process(context.Background(), Request{
		InputPath:  in,
		OutputPath: out,
		Extension:  "gif",
		Percentage: 50,
	}, func(int) {})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Delay) != 2 || decoded.Delay[0] != 10 || decoded.Delay[1] != 11 {
		t.Fatalf("output delays = %v, want [10 11]", decoded.Delay)
	}
}

func TestGIFAdapterCorruptSource(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.gif")
	if err := os.WriteFile(in, []byte("gibberish"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := &GIFAdapter{pipeline: processor.New(nil)}
	err := a.Process(context.Background(), Request{
		InputPath:  in,
		OutputPath: filepath.Join(dir, "output.gif"),
		Extension:  "gif",
		Percentage: 50,
	}, func(int) {})
	if err == nil {
		t.Fatal("Process() expected decode error")
	}
}
