package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jvanvolken/pandacogs/internal/registry"
	"github.com/jvanvolken/pandacogs/internal/roles"
	"github.com/jvanvolken/pandacogs/internal/utils"
)

// componentHandler is one button action. Custom IDs follow the
// "<source>:<action>:<argument>" convention; handlers receive the argument.
type componentHandler func(s *discordgo.Session, i *discordgo.InteractionCreate, arg string)

// componentHandlers builds the dispatch table keyed by "<source>:<action>".
func (b *Bot) componentHandlers() map[string]componentHandler {
	return map[string]componentHandler{
		"games:claim":    b.onClaimGame,
		"games:remove":   b.onRemoveGame,
		"aliases:remove": b.onRemoveAlias,
		"dm:yes":         b.onOfferAccept,
		"dm:no":          b.onOfferDecline,
		"dm:optout":      b.onOfferOptOut,
	}
}

// onComponentInteraction routes a button press to its handler.
func (b *Bot) onComponentInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	parts := strings.SplitN(customID, ":", 3)
	if len(parts) != 3 {
		b.config.Logger.Warnf("malformed component id: %s", customID)
		return
	}

	handler, ok := b.componentHandlers()[parts[0]+":"+parts[1]]
	if !ok {
		b.config.Logger.Warnf("unknown component id: %s", customID)
		return
	}
	handler(s, i, parts[2])
}

// onClaimGame grants the invoking member the game's role, recreating it if an
// eviction removed it.
func (b *Bot) onClaimGame(s *discordgo.Session, i *discordgo.InteractionCreate, game string) {
	user := utils.InteractionUser(i)

	roleID, err := b.registry.ClaimRole(game)
	if err != nil {
		content := fmt.Sprintf("I couldn't get you the `%s` role: %v", game, err)
		if errors.Is(err, roles.ErrRoleCapacity) {
			content = fmt.Sprintf("The server is at its role cap and nothing was quiet enough to retire, so `%s` can't have a role right now.", game)
		}
		respondEphemeral(s, i, content)
		return
	}

	if err := s.GuildMemberRoleAdd(b.config.GetServerID(), user.ID, roleID); err != nil {
		b.config.Logger.Errorf("failed to grant role %s to %s: %v", game, user.Username, err)
		respondEphemeral(s, i, fmt.Sprintf("Something went wrong assigning the `%s` role. Try again in a bit.", game))
		return
	}

	b.rememberAnswer(i, user, game, true)
	respondEphemeral(s, i, fmt.Sprintf("You now have the `%s` role. Happy gaming!", game))
}

// onRemoveGame deletes the game's Discord role and drops the record.
func (b *Bot) onRemoveGame(s *discordgo.Session, i *discordgo.InteractionCreate, game string) {
	if i.Member == nil || i.Member.Permissions&discordgo.PermissionManageRoles == 0 {
		respondEphemeral(s, i, "❌ You need the Manage Roles permission to remove games.")
		return
	}

	rec := b.registry.FindGame(game)
	if rec == nil {
		respondEphemeral(s, i, fmt.Sprintf("`%s` isn't tracked anymore.", game))
		return
	}

	if rec.HasRole() {
		if err := s.GuildRoleDelete(b.config.GetServerID(), rec.RoleID); err != nil {
			b.config.Logger.Warnf("failed to delete role for %s: %v", rec.Name, err)
		}
	}
	b.registry.RemoveGame(rec.Name)
	respondEphemeral(s, i, fmt.Sprintf("`%s` and its role are gone.", rec.Name))
}

func (b *Bot) onRemoveAlias(s *discordgo.Session, i *discordgo.InteractionCreate, alias string) {
	if !b.registry.RemoveAlias(alias) {
		respondEphemeral(s, i, fmt.Sprintf("`%s` isn't an alias I know.", alias))
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("Removed the `%s` alias.", alias))
}

// onOfferAccept handles the "yes" DM button: grant the role and remember the
// answer.
func (b *Bot) onOfferAccept(s *discordgo.Session, i *discordgo.InteractionCreate, game string) {
	user := utils.InteractionUser(i)

	roleID, err := b.registry.ClaimRole(game)
	if err != nil {
		b.config.Logger.Errorf("role claim failed for %s: %v", game, err)
		respondEphemeral(s, i, fmt.Sprintf("I couldn't get you the `%s` role right now, sorry!", game))
		return
	}
	if err := s.GuildMemberRoleAdd(b.config.GetServerID(), user.ID, roleID); err != nil {
		b.config.Logger.Errorf("failed to grant role %s to %s: %v", game, user.Username, err)
		respondEphemeral(s, i, fmt.Sprintf("Something went wrong assigning the `%s` role. Try again in a bit.", game))
		return
	}

	b.rememberAnswer(i, user, game, true)
	respondEphemeral(s, i, fmt.Sprintf("You now have the `%s` role. Happy gaming!", game))
}

// onOfferDecline remembers a "no" so the member is never asked about this game
// again.
func (b *Bot) onOfferDecline(s *discordgo.Session, i *discordgo.InteractionCreate, game string) {
	user := utils.InteractionUser(i)
	b.rememberAnswer(i, user, game, false)
	respondEphemeral(s, i, fmt.Sprintf("No problem — I won't ask about `%s` again.", game))
}

// onOfferOptOut turns off tracking for the member entirely.
func (b *Bot) onOfferOptOut(s *discordgo.Session, i *discordgo.InteractionCreate, game string) {
	user := utils.InteractionUser(i)
	b.rememberAnswer(i, user, game, false)

	optOut := true
	b.members.Apply(user.Username, registry.MemberPatch{OptOut: &optOut})
	respondEphemeral(s, i, "Understood. I won't track your game activity or bug you about roles anymore. Use `/opt-in` if you change your mind.")
}

// rememberAnswer records the member's standing yes/no for one game. Accepting
// also stamps the moment of the answer as the game's last-played time, so a
// freshly claimed role starts out safe from eviction.
func (b *Bot) rememberAnswer(i *discordgo.InteractionCreate, user *discordgo.User, game string, tracked bool) {
	displayName := user.Username
	if i.Member != nil && i.Member.Nick != "" {
		displayName = i.Member.Nick
	}
	b.members.Ensure(user.Username, displayName, user.ID, time.Time{}, time.Time{})

	patch := registry.MemberGamePatch{Tracked: &tracked}
	if tracked {
		now := time.Now()
		patch.LastPlayed = &now
	}
	b.members.Apply(user.Username, registry.MemberPatch{
		Games: map[string]registry.MemberGamePatch{game: patch},
	})
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
