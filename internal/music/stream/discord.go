package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"layeh.com/gopus"
)

// Encoder turns one PCM frame into an Opus packet.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

func NewOpusEncoder() (Encoder, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}
	return enc, nil
}

// Playback controls one running stream: stop, pause and resume.
type Playback struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once

	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func NewPlayback() *Playback {
	return &Playback{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Stop asks the stream to end. It does not wait; see Done.
func (p *Playback) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Finish marks the stream as fully ended.
func (p *Playback) Finish() {
	p.doneOnce.Do(func() { close(p.done) })
}

func (p *Playback) Done() <-chan struct{} { return p.done }

func (p *Playback) Stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

// Pause reports false if already paused.
func (p *Playback) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return false
	}
	p.paused = true
	p.resume = make(chan struct{})
	return true
}

// Resume reports false if not paused.
func (p *Playback) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return false
	}
	p.paused = false
	close(p.resume)
	return true
}

func (p *Playback) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// waitIfPaused blocks while paused. Returns false once stopped.
func (p *Playback) waitIfPaused() bool {
	p.mu.Lock()
	paused, resume := p.paused, p.resume
	p.mu.Unlock()

	if paused {
		select {
		case <-resume:
		case <-p.stop:
			return false
		}
	}
	return !p.Stopped()
}

// Pump reads PCM frames from src, encodes them and sends them to out until
// the stream ends or pb is stopped. A clean end of input returns nil.
func Pump(pb *Playback, src io.Reader, enc Encoder, out chan<- []byte) error {
	pcmBuf := make([]byte, frameBytes)
	intBuf := make([]int16, FrameSize*Channels)

	for {
		if !pb.waitIfPaused() {
			return nil
		}

		_, err := io.ReadFull(src, pcmBuf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			if pb.Stopped() {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := enc.Encode(intBuf, FrameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case out <- opus:
		case <-pb.stop:
			return nil
		}
	}
}
