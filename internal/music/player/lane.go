package player

import "context"

const laneBuffer = 64

// lane runs one guild's jobs one at a time, in submission order.
type lane struct {
	jobs chan func()
	done <-chan struct{}
}

func newLane(done <-chan struct{}) *lane {
	l := &lane{
		jobs: make(chan func(), laneBuffer),
		done: done,
	}
	go l.run()
	return l
}

func (l *lane) run() {
	for {
		select {
		case <-l.done:
			return
		default:
		}

		select {
		case <-l.done:
			return
		case fn := <-l.jobs:
			fn()
		}
	}
}

// do submits fn and waits until it has run. Once submitted, fn always runs
// to completion unless the lane shuts down first.
func (l *lane) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// post submits fn without waiting. Safe to call from inside a lane job.
func (l *lane) post(fn func()) {
	select {
	case l.jobs <- fn:
	default:
		go func() {
			select {
			case l.jobs <- fn:
			case <-l.done:
			}
		}()
	}
}
