package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/YashMayekar/Resizer/internal/processor"
	"github.com/YashMayekar/Resizer/internal/scale"
)

// VideoAdapter resizes video clips frame by frame. Demuxing and muxing are
// delegated to external ffmpeg/ffprobe engines: one ffmpeg process feeds raw
// RGBA frames over a pipe, a second one re-encodes the transformed frames at
// the original frame rate. Only spatial dimensions change.
type VideoAdapter struct {
	pipeline *processor.Pipeline
	ffmpeg   string
	ffprobe  string
}

type videoMeta struct {
	Width  int
	Height int
	// FrameRate is kept as ffprobe's rational string (e.g. "30000/1001")
	// and handed back to the encoder untouched.
	FrameRate string
	// Frames is 0 when the container does not declare a frame count; the
	// adapter then degrades to indeterminate progress.
	Frames int
}

func (a *VideoAdapter) Process(ctx context.Context, req Request, onProgress func(int)) error {
	meta, err := a.probe(ctx, req.InputPath)
	if err != nil {
		return err
	}

	tw, th, filter := scale.ComputeTarget(meta.Width, meta.Height, req.Percentage, req.Upscale)
	// yuv420p needs even dimensions; grow by one pixel here so the encoded
	// container matches the frames byte for byte.
	tw, th = evenDimensions(tw, th)

	// Both engines hang off this context so that any early return kills
	// them; decode otherwise blocks forever on a stdout pipe nobody drains
	// and Wait never comes back.
	procCtx, stop := context.WithCancel(ctx)
	defer stop()

	decode := exec.CommandContext(procCtx, a.ffmpegBin(), "-v", "error",
		"-i", req.InputPath,
		"-f", "rawvideo", "-pix_fmt", "rgba", "pipe:1")
	var decodeErr bytes.Buffer
	decode.Stderr = &decodeErr
	frames, err := decode.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	encode := exec.CommandContext(procCtx, a.ffmpegBin(), "-v", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", tw, th),
		"-r", meta.FrameRate,
		"-i", "pipe:0",
		"-pix_fmt", "yuv420p",
		req.OutputPath)
	var encodeErr bytes.Buffer
	encode.Stderr = &encodeErr
	sink, err := encode.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}

	if err := decode.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if err := encode.Start(); err != nil {
		stop()
		_ = decode.Wait()
		return fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}

	err = a.pump(ctx, frames, sink, meta, tw, th, filter, req.UseSuperRes, onProgress)
	_ = sink.Close()
	if err != nil {
		stop()
	}

	if werr := decode.Wait(); err == nil && werr != nil {
		err = fmt.Errorf("%w: %v: %s", ErrDecodeFailure, werr, decodeErr.Bytes())
	}
	if werr := encode.Wait(); err == nil && werr != nil {
		err = fmt.Errorf("%w: %v: %s", ErrEncodeFailure, werr, encodeErr.Bytes())
	}
	return err
}

// evenDimensions rounds a target size up to the next even width and height.
func evenDimensions(w, h int) (int, int) {
	return w + w%2, h + h%2
}

// pump iterates decoded frames, transforms each one and writes it to the
// encoder. The frame buffer is re-allocated per frame so a frame is never
// shared between pipeline stages.
func (a *VideoAdapter) pump(ctx context.Context, frames io.Reader, sink io.Writer, meta videoMeta, tw, th int, filter scale.Filter, useSuperRes bool, onProgress func(int)) error {
	frameSize := meta.Width * meta.Height * 4
	done := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(frames, buf); err != nil {
			if err == io.EOF {
				return nil
			}
			if err == io.ErrUnexpectedEOF {
				return fmt.Errorf("%w: truncated frame after %d frames", ErrDecodeFailure, done)
			}
			return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
		}

		frame := &image.NRGBA{
			Pix:    buf,
			Stride: meta.Width * 4,
			Rect:   image.Rect(0, 0, meta.Width, meta.Height),
		}

		resized, err := a.pipeline.Transform(frame, tw, th, filter, useSuperRes)
		if err != nil {
			return err
		}
		if _, err := sink.Write(resized.Pix); err != nil {
			return fmt.Errorf("%w: %v", ErrEncodeFailure, err)
		}

		done++
		if meta.Frames > 0 {
			onProgress(done * 100 / meta.Frames)
		}
	}
}

func (a *VideoAdapter) probe(ctx context.Context, path string) (videoMeta, error) {
	out, err := exec.CommandContext(ctx, a.ffprobeBin(), "-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-of", "json", path).Output()
	if err != nil {
		return videoMeta{}, fmt.Errorf("%w: ffprobe: %v", ErrDecodeFailure, err)
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (videoMeta, error) {
	var probe struct {
		Streams []struct {
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			FrameRate string `json:"r_frame_rate"`
			NBFrames  string `json:"nb_frames"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || len(probe.Streams) == 0 {
		return videoMeta{}, fmt.Errorf("%w: no video stream found", ErrDecodeFailure)
	}

	s := probe.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return videoMeta{}, fmt.Errorf("%w: stream has no dimensions", ErrDecodeFailure)
	}

	meta := videoMeta{
		Width:     s.Width,
		Height:    s.Height,
		FrameRate: s.FrameRate,
	}
	if meta.FrameRate == "" || strings.EqualFold(meta.FrameRate, "0/0") {
		meta.FrameRate = "25/1"
	}
	if n, err := strconv.Atoi(s.NBFrames); err == nil && n > 0 {
		meta.Frames = n
	}
	return meta, nil
}

func (a *VideoAdapter) ffmpegBin() string {
	if a.ffmpeg != "" {
		return a.ffmpeg
	}
	return "ffmpeg"
}

func (a *VideoAdapter) ffprobeBin() string {
	if a.ffprobe != "" {
		return a.ffprobe
	}
	return "ffprobe"
}
