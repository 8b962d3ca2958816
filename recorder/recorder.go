// Package recorder drives an engine.Engine offscreen and pipes its
// rendered frames into ffmpeg. Grounded verbatim on
// renderer/offscreen.go's OffscreenRenderer (PBO double-buffering,
// readPixelsAsync) and RunOffscreen's ffmpeg-go pipeline, generalized
// from "one hardcoded renderer" to "any engine.Engine", and from a
// single hardcoded HEVC/videotoolbox profile to a caller-supplied
// codec so the recorder is usable outside macOS.
package recorder

import (
	"fmt"
	"io"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/shadermp/engine/engine"
	"github.com/shadermp/engine/gpu"
)

// Options configures one offscreen recording run.
type Options struct {
	Width, Height int
	Duration      time.Duration
	FPS           int
	OutputFile    string
	FFmpegPath    string // optional override; empty uses $PATH.
	VideoCodec    string // e.g. "libx264"
	BitrateKbps   int
}

// PixelReader reads back a completed frame. It is supplied separately
// from engine.Engine's own command surface, which has no read-back
// call; glhost.PBOReader is the implementation cmd/shadermp uses.
type PixelReader interface {
	ReadPixelsRGBA8(fbo gpu.Framebuffer, width, height int) []byte
}

// Recorder holds the pixel reader and the framebuffer it reads each
// rendered frame back from.
type Recorder struct {
	reader PixelReader
	fbo    gpu.Framebuffer
	width, height int
}

// New wraps reader and the framebuffer fbo that frames are read back
// from. Run does not bind fbo: the engine draws its Image pass into
// whatever framebuffer is bound when Render is called, and cmd/shadermp
// passes 0, the hidden window's default framebuffer.
func New(reader PixelReader, fbo gpu.Framebuffer, width, height int) *Recorder {
	return &Recorder{reader: reader, fbo: fbo, width: width, height: height}
}

// Run drives eng at opts.FPS for opts.Duration, writing raw RGBA
// frames into an ffmpeg subprocess over a pipe, exactly as
// RunOffscreen does, generalized to an arbitrary video codec.
func (r *Recorder) Run(eng *engine.Engine, opts Options) error {
	pipeReader, pipeWriter := io.Pipe()

	codec := opts.VideoCodec
	if codec == "" {
		codec = "libx264"
	}
	bitrate := opts.BitrateKbps
	if bitrate == 0 {
		bitrate = 8000
	}

	cmd := ffmpeg.Input("pipe:",
		ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": "rgba",
			"s":       fmt.Sprintf("%dx%d", opts.Width, opts.Height),
			"r":       fmt.Sprintf("%d", opts.FPS),
		},
	).Output(opts.OutputFile,
		ffmpeg.KwArgs{
			"c:v":     codec,
			"b:v":     fmt.Sprintf("%dk", bitrate),
			"pix_fmt": "yuv420p",
		},
	).OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()

	if opts.FFmpegPath != "" {
		cmd = cmd.SetFfmpegPath(opts.FFmpegPath)
	}

	errc := make(chan error, 1)
	go func() { errc <- cmd.Run() }()

	totalFrames := int(opts.Duration.Seconds() * float64(opts.FPS))
	timeStep := 1.0 / float64(opts.FPS)

	for i := 0; i < totalFrames; i++ {
		currentTime := float64(i) * timeStep
		eng.Render(currentTime, -1, -1, false)

		pixels := r.reader.ReadPixelsRGBA8(r.fbo, r.width, r.height)
		if i > 0 {
			if _, err := pipeWriter.Write(pixels); err != nil {
				pipeWriter.Close()
				return fmt.Errorf("recorder: write frame %d: %w", i, err)
			}
		}
	}

	pixels := r.reader.ReadPixelsRGBA8(r.fbo, r.width, r.height)
	if _, err := pipeWriter.Write(pixels); err != nil {
		pipeWriter.Close()
		return fmt.Errorf("recorder: write final frame: %w", err)
	}

	pipeWriter.Close()
	return <-errc
}
