package refreshcatalog

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/jvanvolken/pandacogs/internal/commands/types"
	"github.com/jvanvolken/pandacogs/internal/utils"
)

// Module implements the refresh-catalog command: rotates the catalog access
// token when the upstream credentials expire.
type Module struct {
	deps *types.Dependencies
}

// Register adds the refresh-catalog command to the command map
func (m *Module) Register(cmds map[string]*types.Command, deps *types.Dependencies) {
	m.deps = deps

	cmds["refresh-catalog"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "refresh-catalog",
			Description: "Rotate the game catalog access token (super admins only)",
		},
		HandlerFunc: m.handleRefresh,
	}
}

func (m *Module) handleRefresh(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := utils.InteractionUser(i)
	if !m.isSuperAdmin(user.ID) {
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "❌ Only super admins can rotate the catalog credentials.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})

	secret := m.deps.Config.GetIGDBClientSecret()
	if secret == "" {
		_, _ = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: utils.StringPtr("No client secret configured; set `igdb_client_secret` first."),
		})
		return
	}

	token, expiresIn, err := m.deps.Catalog.RefreshToken(secret)
	if err != nil {
		m.deps.Config.Logger.Errorf("catalog token refresh failed: %v", err)
		_, _ = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: utils.StringPtr(fmt.Sprintf("Token refresh failed: %v", err)),
		})
		return
	}

	m.deps.Config.Set("igdb_client_token", token)
	m.deps.Config.Logger.Infof("catalog token rotated, expires in %d seconds", expiresIn)

	_, _ = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: utils.StringPtr(fmt.Sprintf("✅ Catalog token rotated. It expires in roughly %d day(s).", expiresIn/86400)),
	})
}

func (m *Module) isSuperAdmin(userID string) bool {
	for _, id := range m.deps.Config.GetSuperAdminIDs() {
		if id == userID {
			return true
		}
	}
	return false
}
