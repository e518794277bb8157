package games

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/bwmarrin/discordgo"

	"github.com/jvanvolken/pandacogs/internal/commands/types"
	"github.com/jvanvolken/pandacogs/internal/registry"
	"github.com/jvanvolken/pandacogs/internal/utils"
)

// maxGamesPerAdd bounds one /games add invocation.
const maxGamesPerAdd = 10

// Module implements the games command: add, list, and remove tracked games.
type Module struct {
	deps *types.Dependencies
}

// Register adds the games command to the command map
func (m *Module) Register(cmds map[string]*types.Command, deps *types.Dependencies) {
	m.deps = deps

	cmds["games"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "games",
			Description: "Manage the tracked games and their roles",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add up to 10 games, separated by commas",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "names",
							Description: "game_1, game_2, ..., game_10",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List the tracked games and claim their roles",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Select tracked games to remove (requires Manage Roles)",
				},
			},
		},
		HandlerFunc: m.handleGames,
	}
}

func (m *Module) handleGames(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}

	switch options[0].Name {
	case "add":
		m.handleAdd(s, i, options[0].Options)
	case "list":
		m.handleList(s, i)
	case "remove":
		m.handleRemove(s, i)
	}
}

func (m *Module) handleAdd(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})

	var arg string
	if len(opts) > 0 {
		arg = opts[0].StringValue()
	}

	names := splitNames(arg)
	if len(names) == 0 {
		_, _ = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: utils.StringPtr("You need to actually tell me what you want to add!"),
		})
		return
	}

	result, err := m.deps.Registry.AddGames(names)
	if err != nil {
		m.deps.Config.Logger.Errorf("games add failed: %v", err)
		_, _ = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Embeds: &[]*discordgo.MessageEmbed{utils.NewErrorEmbed("The game database rejected our credentials; resolution is down until they're rotated.", err)},
		})
		return
	}

	content := addSummary(utils.InteractionUser(i).Mention(), result)

	claimable := append(append([]*registry.GameRecord{}, result.Created...), result.Existing...)
	components := utils.ButtonRows(claimButtons(claimable))

	_, _ = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:    utils.StringPtr(content),
		Components: &components,
	})
}

func (m *Module) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	records := m.deps.Registry.Games()
	if len(records) == 0 {
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "This is where I would list my games... IF I HAD ANY!",
			},
		})
		return
	}

	// First page rides the interaction response; the rest follow as messages.
	pages := pageRecords(records, 25)

	first := pages[0]
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    fmt.Sprintf("Here's your game list, %s!\n*Please select the games that you're interested in playing:*", utils.InteractionUser(i).Mention()),
			Components: utils.ButtonRows(claimButtons(first)),
		},
	})

	for _, page := range pages[1:] {
		_, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
			Components: utils.ButtonRows(claimButtons(page)),
		})
		if err != nil {
			m.deps.Config.Logger.Warnf("failed to send game list page: %v", err)
		}
	}
}

func (m *Module) handleRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil || i.Member.Permissions&discordgo.PermissionManageRoles == 0 {
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "❌ You need the Manage Roles permission to remove games.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		return
	}

	records := m.deps.Registry.Games()
	if len(records) == 0 {
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "This is where I would list my games... IF I HAD ANY!",
			},
		})
		return
	}

	pages := pageRecords(records, 25)
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "Please select the game(s) you'd like to remove...",
			Components: utils.ButtonRows(removeButtons(pages[0])),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})

	for _, page := range pages[1:] {
		_, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
			Components: utils.ButtonRows(removeButtons(page)),
		})
		if err != nil {
			m.deps.Config.Logger.Warnf("failed to send removal page: %v", err)
		}
	}
}

// splitNames parses the comma-separated names argument.
func splitNames(arg string) []string {
	parts := strings.Split(arg, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	if len(names) > maxGamesPerAdd {
		names = names[:maxGamesPerAdd]
	}
	return names
}

// addSummary builds the reply for an add call from its classifications.
func addSummary(mention string, result *registry.AddResult) string {
	if result.Empty() {
		return fmt.Sprintf("%s, you need to actually tell me what you want to add!", mention)
	}

	var parts []string
	if len(result.Created) > 0 {
		parts = append(parts, fmt.Sprintf("I've added %s to the list of games!", nameList(result.Created)))
	}
	if len(result.Existing) > 0 {
		parts = append(parts, fmt.Sprintf("I already have %s.", nameList(result.Existing)))
	}
	if len(result.NotFound) > 0 {
		parts = append(parts, fmt.Sprintf("I don't recognize %s.", nameList(result.NotFound)))
	}

	if len(result.Created) == 0 && len(result.Existing) == 0 {
		return fmt.Sprintf("I don't recognize any of these games, %s. Are you sure you know what you're talking about?", mention)
	}

	return heredoc.Docf(`
		Thanks for the contribution, %s! %s
		*Please select any of the games you're interested in playing below.*
	`, mention, strings.Join(parts, " "))
}

func nameList(records []*registry.GameRecord) string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	return "`" + strings.Join(names, "`, `") + "`"
}

func claimButtons(records []*registry.GameRecord) []discordgo.Button {
	buttons := make([]discordgo.Button, 0, len(records))
	for _, rec := range records {
		buttons = append(buttons, discordgo.Button{
			Label:    rec.Name,
			Style:    discordgo.SecondaryButton,
			CustomID: "games:claim:" + rec.Name,
		})
	}
	return buttons
}

func removeButtons(records []*registry.GameRecord) []discordgo.Button {
	buttons := make([]discordgo.Button, 0, len(records))
	for _, rec := range records {
		buttons = append(buttons, discordgo.Button{
			Label:    rec.Name,
			Style:    discordgo.DangerButton,
			CustomID: "games:remove:" + rec.Name,
		})
	}
	return buttons
}

func pageRecords(records []*registry.GameRecord, size int) [][]*registry.GameRecord {
	var pages [][]*registry.GameRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		pages = append(pages, records[start:end])
	}
	return pages
}
