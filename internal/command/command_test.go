package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/metrics"
	"github.com/keshon/musicbot/internal/music/player"
	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/rs/zerolog"
)

type fakeCommand struct {
	name  string
	mu    sync.Mutex
	runs  int
	comps int
	err   error
}

func (c *fakeCommand) Name() string        { return c.name }
func (c *fakeCommand) Description() string { return "fake " + c.name }
func (c *fakeCommand) Aliases() []string   { return []string{c.name + "-alias"} }
func (c *fakeCommand) Group() string       { return "test" }
func (c *fakeCommand) Category() string    { return musicCategory }

func (c *fakeCommand) Run(ctx interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	return c.err
}

func (c *fakeCommand) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

type fakeComponentCommand struct{ fakeCommand }

func (c *fakeComponentCommand) Component(*ComponentInteractionContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comps++
	return nil
}

func slashEvent(guildID, userID, name string) *SlashInteractionContext {
	return &SlashInteractionContext{
		Ctx: context.Background(),
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: guildID,
			Member:  &discordgo.Member{User: &discordgo.User{ID: userID, Username: "user-" + userID}},
			Data:    discordgo.ApplicationCommandInteractionData{Name: name},
		}},
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := &fakeCommand{name: "a"}
	b := &fakeCommand{name: "b"}
	r.Register(a)
	r.Register(b)

	if got, ok := r.Get("a-alias"); !ok || got != a {
		t.Errorf("Get(alias) = %v, %v", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) found a command")
	}

	a2 := &fakeCommand{name: "a"}
	r.Register(a2)
	all := r.All()
	if len(all) != 2 || all[0] != b || all[1] != a2 {
		t.Errorf("All() = %v, want [b a2]", all)
	}
}

func TestRegistryForComponent(t *testing.T) {
	r := NewRegistry()
	plain := &fakeCommand{name: "plain"}
	comp := &fakeComponentCommand{fakeCommand{name: "music"}}
	r.Register(ApplyMiddlewares(plain, WithGuildOnly()))
	r.Register(ApplyMiddlewares(comp, WithGuildOnly()))

	tests := []struct {
		customID string
		want     bool
	}{
		{"music:pause", true},
		{"plain:x", false},
		{"music", false},
		{"other:pause", false},
	}
	for _, tt := range tests {
		t.Run(tt.customID, func(t *testing.T) {
			if _, ok := r.ForComponent(tt.customID); ok != tt.want {
				t.Errorf("ForComponent(%q) = %v, want %v", tt.customID, ok, tt.want)
			}
		})
	}
}

func TestWithGuildOnly(t *testing.T) {
	cmd := &fakeCommand{name: "x"}
	wrapped := ApplyMiddlewares(cmd, WithGuildOnly())

	if err := wrapped.Run(slashEvent("", "u1", "x")); err != nil {
		t.Fatal(err)
	}
	if cmd.count() != 0 {
		t.Error("command ran outside a guild")
	}
	if err := wrapped.Run(slashEvent("g1", "u1", "x")); err != nil {
		t.Fatal(err)
	}
	if cmd.count() != 1 {
		t.Error("command did not run in a guild")
	}
}

func TestComponentsPassThroughMiddlewares(t *testing.T) {
	cmd := &fakeComponentCommand{fakeCommand{name: "music"}}
	wrapped := ApplyMiddlewares(cmd, WithGuildOnly(), WithCommandLogger(zerolog.Nop()))

	ch, ok := wrapped.(ComponentInteractionHandler)
	if !ok {
		t.Fatal("wrapped command lost its component handler")
	}
	ctx := &ComponentInteractionContext{Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "g1",
		Data:    discordgo.MessageComponentInteractionData{CustomID: "music:skip"},
	}}}
	if err := ch.Component(ctx); err != nil {
		t.Fatal(err)
	}
	if cmd.comps != 1 || cmd.count() != 0 {
		t.Errorf("comps=%d runs=%d, want 1 and 0", cmd.comps, cmd.count())
	}
}

func commandsTotal(t *testing.T, name string) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != "musicbot_commands_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "command" && l.GetValue() == name {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestWithCommandLogger(t *testing.T) {
	errBoom := errors.New("boom")
	cmd := &fakeCommand{name: "logged", err: errBoom}
	wrapped := ApplyMiddlewares(cmd, WithCommandLogger(zerolog.Nop()))

	before := commandsTotal(t, "logged")
	if err := wrapped.Run(slashEvent("g1", "u1", "logged")); !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want the command's error", err)
	}
	if got := commandsTotal(t, "logged"); got != before+1 {
		t.Errorf("commands_total = %v, want %v", got, before+1)
	}
}

func TestWithRateLimit(t *testing.T) {
	cmd := &fakeCommand{name: "x"}
	wrapped := ApplyMiddlewares(cmd, WithRateLimit(NewUserLimiter(0.001, 2)))

	for i := 0; i < 3; i++ {
		_ = wrapped.Run(slashEvent("g1", "u1", "x"))
	}
	if cmd.count() != 2 {
		t.Errorf("runs = %d, want 2 within the burst", cmd.count())
	}

	_ = wrapped.Run(slashEvent("g1", "u2", "x"))
	if cmd.count() != 3 {
		t.Error("another user was limited by u1's budget")
	}
}

func TestUserLimiterDisabled(t *testing.T) {
	l := NewUserLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("u1") {
			t.Fatal("zero rate should not limit")
		}
	}
}

type fakePlayer struct {
	err   error
	calls []string
}

func (p *fakePlayer) record(name string) error {
	p.calls = append(p.calls, name)
	return p.err
}

func (p *fakePlayer) Play(ctx context.Context, guildID, userID, query string) (player.PlayResult, error) {
	return player.PlayResult{}, p.record("play")
}
func (p *fakePlayer) Skip(ctx context.Context, guildID string) (queue.Item, error) {
	return queue.Item{}, p.record("skip")
}
func (p *fakePlayer) Stop(ctx context.Context, guildID string) error   { return p.record("stop") }
func (p *fakePlayer) Pause(ctx context.Context, guildID string) error  { return p.record("pause") }
func (p *fakePlayer) Resume(ctx context.Context, guildID string) error { return p.record("resume") }
func (p *fakePlayer) Leave(ctx context.Context, guildID string) error  { return p.record("leave") }
func (p *fakePlayer) Remove(ctx context.Context, guildID string, pos int) (queue.Item, error) {
	return queue.Item{}, p.record("remove")
}
func (p *fakePlayer) ToggleLoop(ctx context.Context, guildID string) (bool, error) {
	return true, p.record("loop")
}
func (p *fakePlayer) Snapshot(ctx context.Context, guildID string) (player.Snapshot, error) {
	return player.Snapshot{}, p.record("snapshot")
}

func TestControlsPress(t *testing.T) {
	tests := []struct {
		customID string
		call     string
		reply    string
	}{
		{controlPause, "pause", "⏸️ Music paused!"},
		{controlResume, "resume", "▶️ Music resumed!"},
		{controlSkip, "skip", "⏭️ Skipped the current song!"},
		{controlLeave, "leave", "👋 Disconnected and cleared queue!"},
		{"music:unknown", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.customID, func(t *testing.T) {
			p := &fakePlayer{}
			c := &ControlsCommand{Player: p, Log: zerolog.Nop()}
			reply, err := c.press(context.Background(), "g1", tt.customID)
			if err != nil {
				t.Fatal(err)
			}
			if reply != tt.reply {
				t.Errorf("reply = %q, want %q", reply, tt.reply)
			}
			if tt.call == "" && len(p.calls) != 0 || tt.call != "" && (len(p.calls) != 1 || p.calls[0] != tt.call) {
				t.Errorf("calls = %v, want %q", p.calls, tt.call)
			}
		})
	}
}

func TestControlsPressError(t *testing.T) {
	c := &ControlsCommand{Player: &fakePlayer{err: player.ErrNotPaused}, Log: zerolog.Nop()}
	_, err := c.press(context.Background(), "g1", controlResume)
	if got := ErrorText(err); got != "❗ Music is not paused." {
		t.Errorf("ErrorText = %q", got)
	}
}

func TestControlRow(t *testing.T) {
	for _, disabled := range []bool{false, true} {
		row := ControlRow(disabled)
		if len(row.Components) != 4 {
			t.Fatalf("buttons = %d, want 4", len(row.Components))
		}
		for _, c := range row.Components {
			b := c.(discordgo.Button)
			if b.Disabled != disabled {
				t.Errorf("%s disabled = %v, want %v", b.CustomID, b.Disabled, disabled)
			}
		}
	}
}

func TestMusicCommandsDefinitions(t *testing.T) {
	controls := &ControlsCommand{Player: &fakePlayer{}}
	names := map[string]bool{}
	for _, cmd := range MusicCommands(&fakePlayer{}, controls) {
		names[cmd.Name()] = true
		sp, ok := cmd.(SlashProvider)
		if cmd == Command(controls) {
			if ok {
				t.Error("controls should not register a slash command")
			}
			continue
		}
		if !ok || sp.SlashDefinition().Name != cmd.Name() {
			t.Errorf("%s: missing or mismatched slash definition", cmd.Name())
		}
	}
	for _, want := range []string{"play", "skip", "stop", "pause", "resume", "queue", "remove", "loop", "leave"} {
		if !names[want] {
			t.Errorf("missing /%s", want)
		}
	}
}
