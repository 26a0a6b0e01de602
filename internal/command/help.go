package command

import (
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/config"
	"github.com/keshon/musicbot/internal/version"
)

type HelpCommand struct {
	Registry *Registry
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "ℹ️ Show help information" }
func (c *HelpCommand) Aliases() []string   { return []string{} }
func (c *HelpCommand) Group() string       { return "core" }
func (c *HelpCommand) Category() string    { return "🕯️ Information" }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *HelpCommand) Run(ctx interface{}) error {
	sc, ok := slashContext(ctx)
	if !ok {
		return nil
	}
	return RespondEmbedEphemeral(sc.Session, sc.Event, HelpEmbed(c.Registry.All()))
}

// HelpEmbed lists the slash commands ordered by category weight.
func HelpEmbed(cmds []Command) *discordgo.MessageEmbed {
	type entry struct {
		weight int
		def    *discordgo.ApplicationCommand
	}

	var entries []entry
	for _, cmd := range cmds {
		sp, ok := cmd.(SlashProvider)
		if !ok {
			continue
		}
		def := sp.SlashDefinition()
		if def == nil {
			continue
		}
		entries = append(entries, entry{weight: config.CategoryWeights[cmd.Category()], def: def})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].weight < entries[j].weight })

	embed := &discordgo.MessageEmbed{
		Title:  "📖 Music Bot Commands",
		Color:  EmbedColor,
		Footer: &discordgo.MessageEmbedFooter{Text: version.AppName + " | Use these commands to control music playback"},
	}
	for _, en := range entries {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  usage(en.def),
			Value: en.def.Description,
		})
	}
	return embed
}

// usage renders "/name [option]..." for a slash definition.
func usage(def *discordgo.ApplicationCommand) string {
	var sb strings.Builder
	sb.WriteString("/" + def.Name)
	for _, opt := range def.Options {
		sb.WriteString(" [" + opt.Name + "]")
	}
	return sb.String()
}
