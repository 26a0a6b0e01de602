package stream

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
)

const maxRecoveryAttempts = 3

// endSlack is how close to the known duration an EOF counts as a normal end.
const endSlack = 5.0

// RecoveryStream reopens a stream that ended before its known duration,
// seeking to where it stopped.
type RecoveryStream struct {
	ctx      context.Context
	open     Opener
	locator  string
	duration float64 // seconds, 0 = unknown

	stream  io.ReadCloser
	seekSec float64
	retries int
	log     zerolog.Logger
}

func NewRecoveryStream(ctx context.Context, open Opener, locator string, durationSec int, log zerolog.Logger) *RecoveryStream {
	return &RecoveryStream{
		ctx:      ctx,
		open:     open,
		locator:  locator,
		duration: float64(durationSec),
		log:      log,
	}
}

// Open starts the first stream.
func (rs *RecoveryStream) Open() error {
	s, err := rs.open(rs.ctx, rs.locator, 0)
	if err != nil {
		return err
	}
	rs.stream = s
	return nil
}

func (rs *RecoveryStream) Read(p []byte) (int, error) {
	if rs.stream == nil {
		return 0, errors.New("stream not opened")
	}

	n, err := rs.stream.Read(p)
	rs.seekSec += float64(n) / (SampleRate * Channels * 2)
	if err == io.EOF && n == 0 && rs.endedEarly() {
		return rs.handleRecovery(p)
	}
	return n, err
}

// Position returns the approximate playback position in seconds.
func (rs *RecoveryStream) Position() float64 { return rs.seekSec }

func (rs *RecoveryStream) endedEarly() bool {
	return rs.duration > 0 && rs.seekSec < rs.duration-endSlack
}

func (rs *RecoveryStream) handleRecovery(p []byte) (int, error) {
	if rs.retries >= maxRecoveryAttempts || rs.ctx.Err() != nil {
		rs.log.Warn().Int("attempts", rs.retries).Msg("giving up on early stream end")
		return 0, io.EOF
	}
	rs.retries++
	rs.log.Info().Int("attempt", rs.retries).Float64("seek", rs.seekSec).Msg("stream ended prematurely, reopening")

	_ = rs.stream.Close()
	s, err := rs.open(rs.ctx, rs.locator, rs.seekSec)
	if err != nil {
		rs.log.Warn().Err(err).Msg("recovery failed")
		rs.stream = eofReader{}
		return 0, io.EOF
	}
	rs.stream = s
	return rs.Read(p)
}

func (rs *RecoveryStream) Close() error {
	if rs.stream != nil {
		return rs.stream.Close()
	}
	return nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
func (eofReader) Close() error             { return nil }
