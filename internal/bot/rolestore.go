package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/jvanvolken/pandacogs/internal/roles"
)

// guildRoleStore backs the role lifecycle with real Discord guild roles.
type guildRoleStore struct {
	session *discordgo.Session
	guildID string
}

var _ roles.RoleStore = (*guildRoleStore)(nil)

func newGuildRoleStore(session *discordgo.Session, guildID string) *guildRoleStore {
	return &guildRoleStore{session: session, guildID: guildID}
}

func (g *guildRoleStore) Create(name string, color int, mentionable bool) (string, error) {
	role, err := g.session.GuildRoleCreate(g.guildID, &discordgo.RoleParams{
		Name:        name,
		Color:       &color,
		Mentionable: &mentionable,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create role %q: %w", name, err)
	}
	return role.ID, nil
}

func (g *guildRoleStore) Delete(id string) error {
	if err := g.session.GuildRoleDelete(g.guildID, id); err != nil {
		return fmt.Errorf("failed to delete role %s: %w", id, err)
	}
	return nil
}

func (g *guildRoleStore) Edit(id string, color int) error {
	_, err := g.session.GuildRoleEdit(g.guildID, id, &discordgo.RoleParams{Color: &color})
	if err != nil {
		return fmt.Errorf("failed to recolor role %s: %w", id, err)
	}
	return nil
}

// Get scans the guild's roles by name. The session state cache serves most
// lookups; the REST fallback covers a cold cache.
func (g *guildRoleStore) Get(name string) (string, bool) {
	if guild, err := g.session.State.Guild(g.guildID); err == nil {
		for _, role := range guild.Roles {
			if role.Name == name {
				return role.ID, true
			}
		}
		return "", false
	}

	guildRoles, err := g.session.GuildRoles(g.guildID)
	if err != nil {
		return "", false
	}
	for _, role := range guildRoles {
		if role.Name == name {
			return role.ID, true
		}
	}
	return "", false
}
