package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/keshon/musicbot/internal/music/stream"
	"github.com/rs/zerolog"
)

const pcmFrame = stream.FrameSize * stream.Channels * 2

type fakeConn struct {
	send chan []byte

	mu          sync.Mutex
	disconnects int
}

func (c *fakeConn) Speaking(bool) error { return nil }
func (c *fakeConn) Opus() chan<- []byte { return c.send }

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	return nil
}

type fakeJoiner struct {
	err   error
	calls int
}

func (f *fakeJoiner) join(guildID, channelID string) (conn, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &fakeConn{send: make(chan []byte, 1)}, nil
}

type nopEncoder struct{}

func (nopEncoder) Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error) {
	return []byte{0}, nil
}

// finiteOpener yields the given number of PCM frames and then EOF.
func finiteOpener(frames int) stream.Opener {
	return func(ctx context.Context, locator string, seekSec float64) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(make([]byte, frames*pcmFrame))), nil
	}
}

// stalledReader never produces data; only its context ends the read, as
// with a decoder whose source went silent.
type stalledReader struct{ ctx context.Context }

func (r stalledReader) Read([]byte) (int, error) {
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func (r stalledReader) Close() error { return nil }

func stalledOpener(ctx context.Context, locator string, seekSec float64) (io.ReadCloser, error) {
	return stalledReader{ctx: ctx}, nil
}

func newStreamingSession(t *testing.T, open stream.Opener) (*Session, *fakeConn) {
	t.Helper()

	c := &fakeConn{send: make(chan []byte, 64)}
	s := &Session{
		join:       func(string, string) (conn, error) { return c, nil },
		guildID:    testGuild,
		open:       open,
		newEncoder: func() (stream.Encoder, error) { return nopEncoder{}, nil },
		log:        zerolog.Nop(),
	}
	if err := s.Connect(context.Background(), "music"); err != nil {
		t.Fatal(err)
	}
	return s, c
}

// within fails the test if fn does not return in time.
func within(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s did not return within %v", what, d)
	}
}

var track = queue.Item{Title: "a", Locator: "https://media/a"}

func TestSessionConnect(t *testing.T) {
	j := &fakeJoiner{}
	s := &Session{join: j.join, guildID: testGuild, log: zerolog.Nop()}

	if err := s.Connect(context.Background(), "music"); err != nil {
		t.Fatal(err)
	}
	if err := s.Connect(context.Background(), "music"); err != nil {
		t.Fatal(err)
	}
	if j.calls != 1 {
		t.Errorf("joined %d times, want 1", j.calls)
	}
	if s.CurrentChannel() != "music" {
		t.Errorf("CurrentChannel() = %q", s.CurrentChannel())
	}
}

func TestSessionConnectFailure(t *testing.T) {
	boom := errors.New("gateway down")
	j := &fakeJoiner{err: boom}
	s := &Session{join: j.join, guildID: testGuild, log: zerolog.Nop()}

	if err := s.Connect(context.Background(), "music"); !errors.Is(err, boom) {
		t.Fatalf("Connect() error = %v", err)
	}
	if s.CurrentChannel() != "" {
		t.Error("channel set after failed join")
	}
}

func TestSessionIdleState(t *testing.T) {
	s := &Session{guildID: testGuild, log: zerolog.Nop()}

	if err := s.Play(track, func(error) {}); !errors.Is(err, ErrNoConnection) {
		t.Fatalf("Play() without connection error = %v", err)
	}
	if s.IsPlaying() || s.IsPaused() {
		t.Error("idle session reports activity")
	}

	// No stream running: all of these are no-ops.
	s.Stop()
	s.Pause()
	s.Resume()
	if err := s.Disconnect(context.Background(), false); err != nil {
		t.Errorf("Disconnect() idle error = %v", err)
	}
}

func TestSessionPlaysToEnd(t *testing.T) {
	s, c := newStreamingSession(t, finiteOpener(3))

	var calls atomic.Int32
	done := make(chan error, 2)
	if err := s.Play(track, func(err error) {
		calls.Add(1)
		done <- err
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("onComplete error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("onComplete not called at end of input")
	}

	within(t, time.Second, "Stop after end", s.Stop)
	if n := calls.Load(); n != 1 {
		t.Errorf("onComplete called %d times, want 1", n)
	}
	if len(c.send) != 3 {
		t.Errorf("sent %d frames, want 3", len(c.send))
	}
	if s.IsPlaying() || s.IsPaused() {
		t.Error("session still active after the stream ended")
	}
}

func TestSessionPlayWhileBusy(t *testing.T) {
	s, _ := newStreamingSession(t, stalledOpener)
	if err := s.Play(track, func(error) {}); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.Play(track, func(error) {}); !errors.Is(err, ErrBusy) {
		t.Errorf("second Play() error = %v, want ErrBusy", err)
	}
}

func TestSessionStopStalledStream(t *testing.T) {
	s, _ := newStreamingSession(t, stalledOpener)

	var completed atomic.Bool
	if err := s.Play(track, func(error) { completed.Store(true) }); err != nil {
		t.Fatal(err)
	}
	if !s.IsPlaying() {
		t.Fatal("IsPlaying() = false after Play")
	}

	within(t, 3*time.Second, "Stop", s.Stop)
	if !completed.Load() {
		t.Error("Stop returned before onComplete ran")
	}
	if s.IsPlaying() {
		t.Error("IsPlaying() = true after Stop")
	}
}

func TestSessionPauseResume(t *testing.T) {
	s, _ := newStreamingSession(t, stalledOpener)
	if err := s.Play(track, func(error) {}); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	s.Pause()
	if s.IsPlaying() || !s.IsPaused() {
		t.Errorf("after Pause: playing=%v paused=%v", s.IsPlaying(), s.IsPaused())
	}
	s.Resume()
	if !s.IsPlaying() || s.IsPaused() {
		t.Errorf("after Resume: playing=%v paused=%v", s.IsPlaying(), s.IsPaused())
	}
}

func TestSessionDisconnectStopsStream(t *testing.T) {
	s, c := newStreamingSession(t, stalledOpener)

	var completed atomic.Bool
	if err := s.Play(track, func(error) { completed.Store(true) }); err != nil {
		t.Fatal(err)
	}

	within(t, 3*time.Second, "Disconnect", func() {
		if err := s.Disconnect(context.Background(), false); err != nil {
			t.Errorf("Disconnect() error = %v", err)
		}
	})
	if !completed.Load() {
		t.Error("stream still running after Disconnect")
	}
	if s.CurrentChannel() != "" {
		t.Errorf("CurrentChannel() = %q after Disconnect", s.CurrentChannel())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnects != 1 {
		t.Errorf("connection closed %d times, want 1", c.disconnects)
	}
}
