package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/rs/zerolog"
)

type fakeSession struct {
	mu         sync.Mutex
	channel    string
	playing    bool
	paused     bool
	item       queue.Item
	onComplete func(error)
	lastCB     func(error)
	played     []string

	connectErr    error
	disconnectErr error
	playErr       func(queue.Item) error
}

func (s *fakeSession) Connect(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.channel = channelID
	return nil
}

func (s *fakeSession) Disconnect(ctx context.Context, force bool) error {
	s.mu.Lock()
	err := s.disconnectErr
	if err == nil {
		s.channel = ""
	}
	s.mu.Unlock()

	s.Stop()
	return err
}

func (s *fakeSession) Play(item queue.Item, onComplete func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		if err := s.playErr(item); err != nil {
			return err
		}
	}
	s.item = item
	s.playing = true
	s.paused = false
	s.onComplete = onComplete
	s.lastCB = onComplete
	s.played = append(s.played, item.Title)
	return nil
}

// finish simulates the stream ending on its own.
func (s *fakeSession) finish(err error) {
	s.mu.Lock()
	cb := s.onComplete
	s.onComplete = nil
	s.playing = false
	s.paused = false
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// endQuietly ends the stream but holds back its completion callback, as if
// the advance job had not reached the lane yet.
func (s *fakeSession) endQuietly() func(error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb := s.onComplete
	s.onComplete = nil
	s.playing, s.paused = false, false
	return cb
}

func (s *fakeSession) Stop() { s.finish(nil) }

func (s *fakeSession) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		s.playing, s.paused = false, true
	}
}

func (s *fakeSession) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		s.playing, s.paused = true, false
	}
}

func (s *fakeSession) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSession) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *fakeSession) CurrentChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

func (s *fakeSession) playedTitles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...)
}

func (s *fakeSession) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing && !s.paused {
		return ""
	}
	return s.item.Title
}

type fakePlatform struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	members  map[string]string // guild/user -> channel
	humans   map[string]int    // guild/channel -> count
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		sessions: make(map[string]*fakeSession),
		members:  make(map[string]string),
		humans:   make(map[string]int),
	}
}

func (p *fakePlatform) Voice(guildID string) VoiceSession { return p.session(guildID) }

func (p *fakePlatform) session(guildID string) *fakeSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[guildID]
	if !ok {
		s = &fakeSession{}
		p.sessions[guildID] = s
	}
	return s
}

func (p *fakePlatform) ConnectedGuilds() []string {
	p.mu.Lock()
	sessions := make(map[string]*fakeSession, len(p.sessions))
	for id, s := range p.sessions {
		sessions[id] = s
	}
	p.mu.Unlock()

	var out []string
	for id, s := range sessions {
		if s.CurrentChannel() != "" {
			out = append(out, id)
		}
	}
	return out
}

func (p *fakePlatform) MemberChannel(guildID, userID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.members[guildID+"/"+userID]
	return ch, ok
}

func (p *fakePlatform) HumanCount(guildID, channelID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.humans[guildID+"/"+channelID]
}

func (p *fakePlatform) join(guildID, userID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[guildID+"/"+userID] = channelID
}

func (p *fakePlatform) setHumans(guildID, channelID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.humans[guildID+"/"+channelID] = n
}

// fakeResolver echoes the query as the item title.
type fakeResolver struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, query string) (queue.Item, error)
}

func (r *fakeResolver) Resolve(ctx context.Context, query string) (queue.Item, error) {
	r.mu.Lock()
	r.calls++
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		return fn(ctx, query)
	}
	return queue.Item{Title: query, Locator: "https://media/" + query}, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var errFake = errors.New("fake failure")

const (
	guildA   = "g1"
	userA    = "u1"
	channelA = "c1"
)

type harness struct {
	ctrl     *Controller
	platform *fakePlatform
	resolver *fakeResolver
	queues   *queue.Registry
}

func newHarness() *harness {
	p := newFakePlatform()
	p.join(guildA, userA, channelA)
	p.setHumans(guildA, channelA, 1)

	r := &fakeResolver{}
	qs := queue.NewRegistry()
	c := NewController(p, r, qs, Options{ResolveTimeout: time.Second, Logger: zerolog.Nop()})
	return &harness{ctrl: c, platform: p, resolver: r, queues: qs}
}

func (h *harness) session() *fakeSession { return h.platform.session(guildA) }

// settle waits for lane jobs posted so far to finish.
func (h *harness) settle() Snapshot {
	snap, err := h.ctrl.Snapshot(context.Background(), guildA)
	if err != nil {
		panic(err)
	}
	return snap
}

func titles(items []queue.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}
