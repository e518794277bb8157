package optout

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jvanvolken/pandacogs/internal/commands/types"
	"github.com/jvanvolken/pandacogs/internal/registry"
	"github.com/jvanvolken/pandacogs/internal/utils"
)

// Module implements the opt-out and opt-in commands: members control whether
// the bot tracks their activity and offers them roles.
type Module struct {
	deps *types.Dependencies
}

// Register adds both commands to the command map
func (m *Module) Register(cmds map[string]*types.Command, deps *types.Dependencies) {
	m.deps = deps

	cmds["opt-out"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "opt-out",
			Description: "Stop tracking your game activity and offering roles",
		},
		HandlerFunc: m.makeHandler(true),
	}
	cmds["opt-in"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "opt-in",
			Description: "Resume tracking your game activity and offering roles",
		},
		HandlerFunc: m.makeHandler(false),
	}
}

func (m *Module) makeHandler(optOut bool) func(*discordgo.Session, *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		user := utils.InteractionUser(i)

		displayName := user.Username
		var joinedAt time.Time
		if i.Member != nil {
			if i.Member.Nick != "" {
				displayName = i.Member.Nick
			}
			joinedAt = i.Member.JoinedAt
		}

		m.deps.Members.Ensure(user.Username, displayName, user.ID, createdAt(user.ID), joinedAt)
		m.deps.Members.Apply(user.Username, registry.MemberPatch{OptOut: &optOut})

		content := "Got it — I'll keep tracking your games and offering roles. Welcome back!"
		if optOut {
			content = "Understood. I won't track your game activity or bug you about roles anymore. Use `/opt-in` if you change your mind."
		}

		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
	}
}

// createdAt derives the account creation time from the snowflake ID.
func createdAt(userID string) time.Time {
	ts, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return time.Time{}
	}
	return ts
}
