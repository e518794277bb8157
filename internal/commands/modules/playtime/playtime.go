package playtime

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jvanvolken/pandacogs/internal/commands/types"
	"github.com/jvanvolken/pandacogs/internal/utils"
)

const defaultTopN = 5

// Module implements the playtime command: ranked playtime reports for the
// server or for the invoking member.
type Module struct {
	deps *types.Dependencies
}

// Register adds the playtime command to the command map
func (m *Module) Register(cmds map[string]*types.Command, deps *types.Dependencies) {
	m.deps = deps

	cmds["playtime"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "playtime",
			Description: "Show the most-played games over a time window",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "window",
					Description: "How far back to look (e.g. \"last week\", \"30 days ago\")",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "scope",
					Description: "Whose playtime to report",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "server", Value: "server"},
						{Name: "self", Value: "self"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "How many games to list (default 5)",
					Required:    false,
				},
			},
		},
		HandlerFunc: m.handlePlaytime,
	}
}

func (m *Module) handlePlaytime(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var window, scope string
	topN := defaultTopN
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "window":
			window = opt.StringValue()
		case "scope":
			scope = opt.StringValue()
		case "count":
			if n := int(opt.IntValue()); n > 0 {
				topN = n
			}
		}
	}

	days, err := utils.ParseWindowDays(window)
	if err != nil {
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: fmt.Sprintf("I can't make sense of `%s` as a time window. Try something like `last week` or `30 days ago`.", window),
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		return
	}

	user := utils.InteractionUser(i)
	member := ""
	if scope == "self" {
		member = user.Username
	}

	top := m.deps.Registry.Ledger().TotalPlaytime(m.deps.Registry.Histories(), days, member, topN)
	if len(top) == 0 {
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{
					utils.NewNoResultsEmbed(fmt.Sprintf("No playtime recorded in the last %d day(s).", days)),
				},
			},
		})
		return
	}

	var sb strings.Builder
	if member == "" {
		fmt.Fprintf(&sb, "**Most played over the last %d day(s):**\n", days)
	} else {
		fmt.Fprintf(&sb, "**%s's most played over the last %d day(s):**\n", user.Mention(), days)
	}
	for rank, gh := range top {
		fmt.Fprintf(&sb, "%d. `%s` — %.2f hours\n", rank+1, gh.Game, gh.Hours)
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: sb.String(),
		},
	})
}
