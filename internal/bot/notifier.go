package bot

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/bwmarrin/discordgo"

	"github.com/jvanvolken/pandacogs/internal/config"
	"github.com/jvanvolken/pandacogs/internal/reconciler"
	"github.com/jvanvolken/pandacogs/internal/registry"
	"github.com/jvanvolken/pandacogs/internal/utils"
)

// discordNotifier renders reconciler side effects as Discord messages: public
// announcements, role-offer DMs, and the admin-channel alias dialogue.
type discordNotifier struct {
	session *discordgo.Session
	config  *config.Config
}

var _ reconciler.Notifier = (*discordNotifier)(nil)

func newDiscordNotifier(session *discordgo.Session, cfg *config.Config) *discordNotifier {
	return &discordNotifier{session: session, config: cfg}
}

// AnnounceNewGame posts the new game to the bot channel with a claim button.
func (n *discordNotifier) AnnounceNewGame(game *registry.GameRecord) {
	channelID := n.config.GetBotChannelID()
	if channelID == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       game.Name,
		Description: game.Summary,
		Color:       utils.Colors.Fancy(),
	}
	if game.CoverURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: game.CoverURL}
	}
	if game.RoleID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Role",
			Value: fmt.Sprintf("<@&%s>", game.RoleID),
		})
	}

	_, err := n.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("I've just added `%s` to the server!", game.Name),
		Embeds:  []*discordgo.MessageEmbed{embed},
		Components: utils.ButtonRows([]discordgo.Button{{
			Label:    "Add me!",
			Style:    discordgo.PrimaryButton,
			CustomID: "games:claim:" + game.Name,
		}}),
	})
	if err != nil {
		n.config.Logger.Warnf("failed to announce %s: %v", game.Name, err)
	}
}

// OfferRole DMs a member an accept/decline/opt-out prompt for a game role.
func (n *discordNotifier) OfferRole(member *registry.MemberRecord, game *registry.GameRecord) {
	if member.UserID == "" {
		n.config.Logger.Warnf("cannot DM %s, no user id on record", member.Name)
		return
	}

	channel, err := n.session.UserChannelCreate(member.UserID)
	if err != nil {
		n.config.Logger.Warnf("failed to open DM with %s: %v", member.Name, err)
		return
	}

	content := heredoc.Docf(`
		Hey %s! I noticed you were playing `+"`%s`"+`.
		Would you like the game's role so other members can find you?
	`, displayName(member), game.Name)
	if link := n.config.GetGeneralChannelLink(); link != "" {
		content += fmt.Sprintf("\nCome hang out with us: %s", link)
	}

	_, err = n.session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: content,
		Components: utils.ButtonRows([]discordgo.Button{
			{Label: "Yes please!", Style: discordgo.SuccessButton, CustomID: "dm:yes:" + game.Name},
			{Label: "No thanks", Style: discordgo.SecondaryButton, CustomID: "dm:no:" + game.Name},
			{Label: "Stop asking me", Style: discordgo.DangerButton, CustomID: "dm:optout:" + game.Name},
		}),
	})
	if err != nil {
		n.config.Logger.Warnf("failed to DM role offer to %s: %v", member.Name, err)
	}
}

// PromptAlias opens the admin-channel alias dialogue for an unknown activity.
func (n *discordNotifier) PromptAlias(memberName, alias string) (string, error) {
	channelID := n.config.GetAdminChannelID()
	if channelID == "" {
		return "", fmt.Errorf("no admin channel configured")
	}

	var content string
	if memberName != "" {
		content = heredoc.Docf(`
			`+"`%s`"+` is playing `+"`%s`"+`, but I can't find it in the game catalog.
			**Reply to this message** with the game's real title (or its catalog ID) and I'll map it.
		`, memberName, alias)
	} else {
		content = heredoc.Docf(`
			I can't find `+"`%s`"+` in the game catalog.
			**Reply to this message** with the game's real title (or its catalog ID) and I'll map it.
		`, alias)
	}

	msg, err := n.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", fmt.Errorf("failed to post alias prompt: %w", err)
	}
	return msg.ID, nil
}

// FollowUpAlias reports a failed attempt and asks again.
func (n *discordNotifier) FollowUpAlias(replyToID, alias, attempted string, remaining int) (string, error) {
	channelID := n.config.GetAdminChannelID()
	msg, err := n.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("No luck with `%s` either. Reply to this message to try again — %d attempt(s) left for `%s`.", attempted, remaining, alias),
		Reference: &discordgo.MessageReference{
			MessageID: replyToID,
			ChannelID: channelID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to post alias follow-up: %w", err)
	}
	return msg.ID, nil
}

// ConfirmAlias acknowledges a stored mapping.
func (n *discordNotifier) ConfirmAlias(replyToID, alias string, game *registry.GameRecord) {
	channelID := n.config.GetAdminChannelID()
	_, err := n.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("Got it! `%s` now maps to `%s`.", alias, game.Name),
		Reference: &discordgo.MessageReference{
			MessageID: replyToID,
			ChannelID: channelID,
		},
	})
	if err != nil {
		n.config.Logger.Warnf("failed to confirm alias %s: %v", alias, err)
	}
}

// AbandonAlias acknowledges an exhausted flow.
func (n *discordNotifier) AbandonAlias(replyToID, alias string) {
	channelID := n.config.GetAdminChannelID()
	_, err := n.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("I'm giving up on `%s` for now. Use `/alias set` if you ever figure out what it is.", alias),
		Reference: &discordgo.MessageReference{
			MessageID: replyToID,
			ChannelID: channelID,
		},
	})
	if err != nil {
		n.config.Logger.Warnf("failed to abandon alias %s: %v", alias, err)
	}
}

// AdminReport sends an operational note to the admin channel.
func (n *discordNotifier) AdminReport(text string) {
	channelID := n.config.GetAdminChannelID()
	if channelID == "" {
		return
	}
	if _, err := n.session.ChannelMessageSend(channelID, text); err != nil {
		n.config.Logger.Warnf("failed to send admin report: %v", err)
	}
}

func displayName(member *registry.MemberRecord) string {
	if member.DisplayName != "" {
		return member.DisplayName
	}
	return member.Name
}
