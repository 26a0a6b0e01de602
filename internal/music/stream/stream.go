// Package stream turns a media locator into Opus frames for a voice connection.
//
// Decoding is done by an ffmpeg child process producing 48 kHz stereo s16le
// PCM on stdout; frames are Opus-encoded in process.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

const (
	Channels   = 2
	SampleRate = 48000
	FrameSize  = 960 // 20ms at 48kHz

	frameBytes = FrameSize * Channels * 2
)

// Opener starts a PCM stream for locator, seekSec seconds in.
type Opener func(ctx context.Context, locator string, seekSec float64) (io.ReadCloser, error)

// FFmpegArgs builds the ffmpeg command line for a remote locator.
func FFmpegArgs(locator string, seekSec float64) []string {
	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
	}
	if seekSec > 0 {
		args = append(args, "-ss", strconv.FormatFloat(seekSec, 'f', 2, 64))
	}
	return append(args,
		"-i", locator,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "warning",
		"pipe:1",
	)
}

// FFmpeg returns an Opener running the given ffmpeg binary.
func FFmpeg(binary string) Opener {
	if binary == "" {
		binary = "ffmpeg"
	}
	return func(ctx context.Context, locator string, seekSec float64) (io.ReadCloser, error) {
		if locator == "" {
			return nil, errors.New("empty locator")
		}

		cmd := exec.CommandContext(ctx, binary, FFmpegArgs(locator, seekSec)...)
		reader, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe error: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("command start error: %w", err)
		}
		return &processStream{ReadCloser: reader, cmd: cmd}, nil
	}
}

// processStream kills and reaps the child process on Close.
type processStream struct {
	io.ReadCloser
	cmd  *exec.Cmd
	once sync.Once
}

func (p *processStream) Close() error {
	p.once.Do(func() {
		_ = p.cmd.Process.Kill()
		_ = p.ReadCloser.Close()
		_ = p.cmd.Wait()
	})
	return nil
}
