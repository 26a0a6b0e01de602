package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/rs/zerolog"
)

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantTitle string
		wantURL   string
		wantDur   int
		wantErr   error
	}{
		{
			name:      "single video",
			raw:       `{"title":"Song","uploader":"Band","duration":215.4,"thumbnail":"https://i/1.jpg","url":"https://cdn/a","webpage_url":"https://yt/watch?v=1"}`,
			wantTitle: "Song",
			wantURL:   "https://cdn/a",
			wantDur:   215,
		},
		{
			name:      "search result takes first entry",
			raw:       `{"title":"ytsearch1:x","entries":[{"title":"First","url":"https://cdn/1"},{"title":"Second","url":"https://cdn/2"}]}`,
			wantTitle: "First",
			wantURL:   "https://cdn/1",
		},
		{
			name:    "empty entries",
			raw:     `{"title":"ytsearch1:x","entries":[]}`,
			wantErr: ErrNoEntries,
		},
		{
			name:      "falls back to last format url",
			raw:       `{"title":"Radio","formats":[{"url":"https://low"},{"url":"https://best"}]}`,
			wantTitle: "Radio",
			wantURL:   "https://best",
		},
		{
			name:    "no url at all",
			raw:     `{"title":"Nothing"}`,
			wantErr: ErrNoResults,
		},
		{
			name:    "empty output",
			raw:     "  ",
			wantErr: ErrNoResults,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInfo([]byte(tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseInfo() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseInfo() unexpected error: %v", err)
			}
			if got.Title != tt.wantTitle || got.Locator != tt.wantURL || got.Duration != tt.wantDur {
				t.Errorf("parseInfo() = %+v", got)
			}
		})
	}
}

func TestParseInfoDefaultsUnknownFields(t *testing.T) {
	got, err := parseInfo([]byte(`{"url":"https://cdn/a"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Unknown" || got.Uploader != "Unknown" {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestParseInfoInvalidJSON(t *testing.T) {
	if _, err := parseInfo([]byte("{not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestIsYouTubeURL(t *testing.T) {
	tests := map[string]bool{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": true,
		"https://youtu.be/dQw4w9WgXcQ":                true,
		"https://music.youtube.com/watch?v=abc":       true,
		"https://soundcloud.com/artist/track":         false,
		"never gonna give you up":                     false,
	}
	for in, want := range tests {
		if got := isYouTubeURL(in); got != want {
			t.Errorf("isYouTubeURL(%q) = %v, want %v", in, got, want)
		}
	}
}

type fakeSource struct {
	name  string
	item  queue.Item
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Resolve(ctx context.Context, query string) (queue.Item, error) {
	f.calls++
	return f.item, f.err
}

func TestChainFallsThrough(t *testing.T) {
	broken := &fakeSource{name: "broken", err: &ResolveError{Query: "q", Cause: errors.New("boom")}}
	skip := &fakeSource{name: "skip", err: ErrUnsupported}
	good := &fakeSource{name: "good", item: queue.Item{Title: "ok"}}

	c := NewChain(zerolog.Nop(), broken, skip, good)
	got, err := c.Resolve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Title != "ok" {
		t.Errorf("Resolve() = %+v", got)
	}
	if broken.calls != 1 || skip.calls != 1 || good.calls != 1 {
		t.Errorf("calls = %d/%d/%d", broken.calls, skip.calls, good.calls)
	}
}

func TestChainReturnsLastRealError(t *testing.T) {
	cause := &ResolveError{Query: "q", Source: "a", Cause: ErrNoResults}
	c := NewChain(zerolog.Nop(),
		&fakeSource{name: "a", err: cause},
		&fakeSource{name: "b", err: ErrUnsupported},
	)

	_, err := c.Resolve(context.Background(), "q")
	var re *ResolveError
	if !errors.As(err, &re) || !errors.Is(err, ErrNoResults) {
		t.Fatalf("Resolve() error = %v", err)
	}
}

func TestChainEmptyQuery(t *testing.T) {
	src := &fakeSource{name: "a"}
	_, err := NewChain(zerolog.Nop(), src).Resolve(context.Background(), "   ")
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("Resolve() error = %v", err)
	}
	if src.calls != 0 {
		t.Error("source called for empty query")
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := &fakeSource{name: "b"}
	c := NewChain(zerolog.Nop(), &fakeSource{name: "a", err: errors.New("killed")}, second)

	if _, err := c.Resolve(ctx, "q"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve() error = %v", err)
	}
	if second.calls != 0 {
		t.Error("chain kept going after cancellation")
	}
}
