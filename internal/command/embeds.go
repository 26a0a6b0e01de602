package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/music/player"
	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/keshon/musicbot/internal/music/resolver"
	"github.com/samber/lo"
)

// EmbedColor is used for informational embeds. Overridden from config.
var EmbedColor = 0x3498db

const (
	colorRed    = 0xe74c3c
	colorGreen  = 0x2ecc71
	colorOrange = 0xe67e22
	colorGrey   = 0x979c9f

	queuePreview = 10
)

// Requester is who asked for a track, shown in the embed footer.
type Requester struct {
	Name      string
	AvatarURL string
}

// RequesterOf builds the footer identity of the interaction author.
func RequesterOf(e *discordgo.InteractionCreate) Requester {
	u := interactionUser(e)
	if u == nil {
		return Requester{}
	}
	name := u.Username
	if u.GlobalName != "" {
		name = u.GlobalName
	}
	if e.Member != nil && e.Member.Nick != "" {
		name = e.Member.Nick
	}
	return Requester{Name: name, AvatarURL: u.AvatarURL("")}
}

func (r Requester) footer() *discordgo.MessageEmbedFooter {
	if r.Name == "" {
		return nil
	}
	return &discordgo.MessageEmbedFooter{Text: "Requested by " + r.Name, IconURL: r.AvatarURL}
}

func messageEmbed(text string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: color}
}

func thumbnail(item queue.Item) *discordgo.MessageEmbedThumbnail {
	if item.Thumbnail == "" {
		return nil
	}
	return &discordgo.MessageEmbedThumbnail{URL: item.Thumbnail}
}

func durationField(item queue.Item) []*discordgo.MessageEmbedField {
	if item.Duration <= 0 {
		return nil
	}
	return []*discordgo.MessageEmbedField{{Name: "⏱️ Duration", Value: item.FormatDuration(), Inline: true}}
}

// EnqueuedEmbed answers a /play that went to the queue.
func EnqueuedEmbed(item queue.Item, position int, by Requester) *discordgo.MessageEmbed {
	fields := durationField(item)
	fields = append(fields, &discordgo.MessageEmbedField{
		Name: "📍 Position in Queue", Value: fmt.Sprint(position), Inline: true,
	})
	return &discordgo.MessageEmbed{
		Title:       player.StatusAdded.StringEmoji() + " " + string(player.StatusAdded),
		Description: fmt.Sprintf("🎵 **%s**\n🎤 Uploader: %s", item.Title, uploader(item)),
		Color:       colorGreen,
		Fields:      fields,
		Thumbnail:   thumbnail(item),
		Footer:      by.footer(),
	}
}

// NowPlayingEmbed announces a track that just started. The footer is left
// out when by is empty.
func NowPlayingEmbed(item queue.Item, next queue.Item, hasNext bool, by Requester) *discordgo.MessageEmbed {
	nextTitle := "Nothing in queue"
	if hasNext {
		nextTitle = next.Title
	}
	fields := durationField(item)
	fields = append(fields, &discordgo.MessageEmbedField{Name: "📅 Next Up", Value: nextTitle, Inline: true})
	return &discordgo.MessageEmbed{
		Title:       player.StatusPlaying.StringEmoji() + " " + string(player.StatusPlaying),
		Description: fmt.Sprintf("**%s**\n🎤 Uploader: %s", item.Title, uploader(item)),
		Color:       EmbedColor,
		Fields:      fields,
		Thumbnail:   thumbnail(item),
		Footer:      by.footer(),
	}
}

func uploader(item queue.Item) string {
	if item.Uploader == "" {
		return "Unknown"
	}
	return item.Uploader
}

// QueueEmbed lists the current track and up to ten pending ones.
func QueueEmbed(snap player.Snapshot) *discordgo.MessageEmbed {
	if !snap.HasCurrent && len(snap.Pending) == 0 {
		return messageEmbed("📭 The queue is empty and nothing is playing.", colorGrey)
	}

	embed := &discordgo.MessageEmbed{Title: "📜 Music Queue", Color: colorGreen}
	if snap.HasCurrent {
		c := snap.Current
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "🎵 Now Playing",
			Value: fmt.Sprintf("**%s**\n🎤 %s\n⏱️ %s", c.Title, uploader(c), c.FormatDuration()),
		})
	}

	upNext := "Nothing in queue"
	if len(snap.Pending) > 0 {
		lines := lo.Map(lo.Slice(snap.Pending, 0, queuePreview), func(it queue.Item, i int) string {
			return fmt.Sprintf("%d. **%s** - %s", i+1, it.Title, it.FormatDuration())
		})
		if extra := len(snap.Pending) - queuePreview; extra > 0 {
			lines = append(lines, fmt.Sprintf("... and %d more songs", extra))
		}
		upNext = strings.Join(lines, "\n")
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "📅 Up Next", Value: upNext})

	footer := fmt.Sprintf("Total songs in queue: %d", len(snap.Pending))
	if snap.Loop {
		footer += " | 🔁 Loop on"
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	return embed
}

// ErrorText turns a command error into the line shown to the user.
func ErrorText(err error) string {
	var (
		pe *player.PreconditionError
		te *player.TransportError
		re *resolver.ResolveError
	)
	switch {
	case errors.As(err, &pe):
		return "❗ " + pe.Message
	case errors.Is(err, resolver.ErrResolveTimeout):
		return "❌ " + sentence(resolver.ErrResolveTimeout.Error())
	case errors.As(err, &re):
		return "❌ " + sentence(re.Cause.Error())
	case errors.As(err, &te) && te.Op == "connect":
		return fmt.Sprintf("❌ Failed to connect to voice channel: %v", te.Err)
	case errors.As(err, &te):
		return fmt.Sprintf("❌ Voice %s failed: %v", te.Op, te.Err)
	case errors.Is(err, player.ErrClosed):
		return "❌ The player is shutting down."
	}
	return "❌ Something went wrong, please try again."
}

func ErrorEmbed(err error) *discordgo.MessageEmbed {
	return messageEmbed(ErrorText(err), colorRed)
}

// sentence capitalizes s and ends it with a period.
func sentence(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	s = string(unicode.ToUpper(r)) + s[n:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}
