package aliases

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jvanvolken/pandacogs/internal/commands/types"
	"github.com/jvanvolken/pandacogs/internal/utils"
)

// Module implements the alias command: map activity names that the catalog
// doesn't recognize onto tracked games.
type Module struct {
	deps *types.Dependencies
}

// Register adds the alias command to the command map
func (m *Module) Register(cmds map[string]*types.Command, deps *types.Dependencies) {
	m.deps = deps

	cmds["alias"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "alias",
			Description: "Map unrecognized activity names onto tracked games",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Map an alias to a game (omit game to search interactively)",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "alias",
							Description: "The activity name to map",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "game",
							Description: "The tracked game it should map to",
							Required:    false,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List the known aliases",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Select aliases to remove",
				},
			},
		},
		HandlerFunc: m.handleAlias,
	}
}

func (m *Module) handleAlias(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}

	switch options[0].Name {
	case "set":
		m.handleSet(s, i, options[0].Options)
	case "list":
		m.handleList(s, i)
	case "remove":
		m.handleRemove(s, i)
	}
}

func (m *Module) handleSet(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	var alias, game string
	for _, opt := range opts {
		switch opt.Name {
		case "alias":
			alias = strings.TrimSpace(opt.StringValue())
		case "game":
			game = strings.TrimSpace(opt.StringValue())
		}
	}

	if alias == "" {
		respond(s, i, "An alias can't be empty!")
		return
	}

	if game == "" {
		// No target named; open the interactive admin-channel flow instead.
		m.deps.Reconciler.BeginManualAliasFlow(alias)
		respond(s, i, fmt.Sprintf("I've opened a lookup for `%s` in the admin channel — reply there with the game it should map to.", alias))
		return
	}

	if err := m.deps.Registry.SetAlias(alias, game); err != nil {
		respond(s, i, fmt.Sprintf("I can't map `%s` to `%s`: %v", alias, game, err))
		return
	}
	respond(s, i, fmt.Sprintf("Done! `%s` now maps to `%s`.", alias, game))
}

func (m *Module) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	mapping := m.deps.Registry.Aliases()
	if len(mapping) == 0 {
		respond(s, i, "I don't have any aliases yet.")
		return
	}

	keys := make([]string, 0, len(mapping))
	for alias := range mapping {
		keys = append(keys, alias)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("Here are the aliases I know about:\n")
	for _, alias := range keys {
		fmt.Fprintf(&sb, "- `%s` → `%s`\n", alias, mapping[alias])
	}
	respond(s, i, sb.String())
}

func (m *Module) handleRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	mapping := m.deps.Registry.Aliases()
	if len(mapping) == 0 {
		respond(s, i, "I don't have any aliases yet.")
		return
	}

	keys := make([]string, 0, len(mapping))
	for alias := range mapping {
		keys = append(keys, alias)
	}
	sort.Strings(keys)

	buttons := make([]discordgo.Button, 0, len(keys))
	for _, alias := range keys {
		buttons = append(buttons, discordgo.Button{
			Label:    fmt.Sprintf("%s → %s", alias, mapping[alias]),
			Style:    discordgo.DangerButton,
			CustomID: "aliases:remove:" + alias,
		})
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "Please select the alias(es) you'd like to remove...",
			Components: utils.ButtonRows(buttons),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}
