// Package resolver turns a user query or link into a playable queue.Item.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/rs/zerolog"
)

var (
	ErrResolveTimeout = errors.New("timeout while fetching media, try another song or check your connection")
	ErrNoResults      = errors.New("could not find any audio to play")
	ErrNoEntries      = errors.New("no playable entries found")
	ErrUnsupported    = errors.New("input not supported by this source")
)

// ResolveError carries the human-readable reason a query could not be resolved.
type ResolveError struct {
	Query  string
	Source string
	Cause  error
}

func (e *ResolveError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("failed to resolve %q: %v", e.Query, e.Cause)
	}
	return fmt.Sprintf("%s: failed to resolve %q: %v", e.Source, e.Query, e.Cause)
}

func (e *ResolveError) Unwrap() error { return e.Cause }

// Source resolves a single query.
type Source interface {
	Name() string
	Resolve(ctx context.Context, query string) (queue.Item, error)
}

// Chain tries each source in order and returns the first success.
type Chain struct {
	sources []Source
	log     zerolog.Logger
}

func NewChain(log zerolog.Logger, sources ...Source) *Chain {
	return &Chain{
		sources: sources,
		log:     log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve implements the player's media resolver
func (c *Chain) Resolve(ctx context.Context, query string) (queue.Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return queue.Item{}, &ResolveError{Query: query, Cause: ErrNoResults}
	}

	var last error
	for _, src := range c.sources {
		item, err := src.Resolve(ctx, query)
		if err == nil {
			c.log.Debug().Str("source", src.Name()).Str("title", item.Title).Msg("resolved")
			return item, nil
		}
		if ctx.Err() != nil {
			return queue.Item{}, ctx.Err()
		}
		if errors.Is(err, ErrUnsupported) {
			continue
		}
		c.log.Warn().Err(err).Str("source", src.Name()).Str("query", query).Msg("source failed, trying next")
		last = err
	}

	if last == nil {
		last = &ResolveError{Query: query, Cause: ErrNoResults}
	}
	return queue.Item{}, last
}

var youtubeURL = regexp.MustCompile(`^(?:https?://)?(?:www\.|music\.|m\.)?(?:youtube\.com|youtu\.be)/\S+`)

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isYouTubeURL(s string) bool {
	return youtubeURL.MatchString(s)
}
