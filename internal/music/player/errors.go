package player

import (
	"errors"
	"fmt"
)

// PreconditionError is a rejected command. Nothing was changed.
type PreconditionError struct {
	Code    string
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

var (
	ErrNotInVoice      = &PreconditionError{Code: "not_in_voice", Message: "You must be in a voice channel to use this command."}
	ErrWrongChannel    = &PreconditionError{Code: "wrong_channel", Message: "You must be in the same voice channel as the bot."}
	ErrNotConnected    = &PreconditionError{Code: "not_connected", Message: "Not connected to a voice channel."}
	ErrNothingPlaying  = &PreconditionError{Code: "nothing_playing", Message: "No music is currently playing."}
	ErrNotPaused       = &PreconditionError{Code: "not_paused", Message: "Music is not paused."}
	ErrInvalidPosition = &PreconditionError{Code: "invalid_position", Message: "Invalid position in queue."}
)

// ErrClosed is returned once the controller has shut down.
var ErrClosed = errors.New("player: controller closed")

// TransportError wraps a voice transport failure (connect, disconnect, stream start).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("voice %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
