// Package retrylimit retries Discord REST calls under an adaptive rate limit.
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 20)
//	err := retrylimit.Do(ctx, lim, retrylimit.RegisterBudget, log, func() error {
//	    _, err := dg.ApplicationCommandBulkOverwrite(appID, guildID, cmds)
//	    return err
//	})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// quietPeriod is how long after a rate limit the limiter stays put.
const quietPeriod = 10 * time.Second

// AdaptiveLimiter is shared by every guild's registration. It gains one
// request per second after each success and halves on 429s and 5xx.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	min, max  rate.Limit
	lastError time.Time
}

func NewAdaptiveLimiter(initial, lo, hi rate.Limit) *AdaptiveLimiter {
	initial = max1(initial)
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(initial, int(initial)),
		min:     max1(lo),
		max:     hi,
	}
}

func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *AdaptiveLimiter) success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > quietPeriod {
		a.set(a.limiter.Limit() + 1)
	}
}

func (a *AdaptiveLimiter) slowDown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.set(a.limiter.Limit() / 2)
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) set(l rate.Limit) {
	l = min(max(l, a.min), a.max)
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		a.limiter.SetBurst(int(max1(l)))
	}
}

func max1(l rate.Limit) rate.Limit {
	return max(l, 1)
}

// Budget bounds how hard a call is retried. The delay after a failure
// starts at Backoff and doubles up to MaxBackoff.
type Budget struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// RegisterBudget fits a per-guild bulk overwrite: a handful of tries,
// finished well inside a minute.
var RegisterBudget = Budget{
	Attempts:   5,
	Backoff:    500 * time.Millisecond,
	MaxBackoff: 10 * time.Second,
}

type outcome int

const (
	retryable outcome = iota
	throttled
	fatal
)

// classify sorts a discordgo error. Client errors other than 429 won't
// change on retry; 429s and 5xx slow the limiter down.
func classify(err error) outcome {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) || rerr.Response == nil {
		return retryable
	}
	switch code := rerr.Response.StatusCode; {
	case code == http.StatusTooManyRequests, code >= 500:
		return throttled
	case code >= 400:
		return fatal
	}
	return retryable
}

// Do runs fn until it succeeds, fails permanently, the budget runs out or
// ctx ends. lim may be nil.
func Do(ctx context.Context, lim *AdaptiveLimiter, b Budget, log zerolog.Logger, fn func() error) error {
	delay := b.Backoff
	attempts := max(b.Attempts, 1)
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		if lim != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return werr
			}
		} else if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		if err = fn(); err == nil {
			if lim != nil {
				lim.success()
			}
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("retry succeeded")
			}
			return nil
		}

		switch classify(err) {
		case fatal:
			return err
		case throttled:
			if lim != nil {
				lim.slowDown()
			}
		}
		if attempt == attempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("sleep", delay).Msg("request failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, b.MaxBackoff)
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}
