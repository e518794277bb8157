// Package commands hosts the modular slash-command layer: each module
// registers its commands and handlers into a shared map.
package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/jvanvolken/pandacogs/internal/commands/modules/aliases"
	"github.com/jvanvolken/pandacogs/internal/commands/modules/games"
	"github.com/jvanvolken/pandacogs/internal/commands/modules/optout"
	"github.com/jvanvolken/pandacogs/internal/commands/modules/playtime"
	"github.com/jvanvolken/pandacogs/internal/commands/modules/refreshcatalog"
	"github.com/jvanvolken/pandacogs/internal/commands/types"
	"github.com/jvanvolken/pandacogs/internal/config"
)

// ModuleHandler routes slash-command interactions to registered modules.
type ModuleHandler struct {
	commands map[string]*types.Command
	config   *config.Config
	deps     *types.Dependencies

	registered []*discordgo.ApplicationCommand
}

// NewModuleHandler creates the handler and registers every module.
func NewModuleHandler(cfg *config.Config, deps *types.Dependencies) *ModuleHandler {
	h := &ModuleHandler{
		commands: make(map[string]*types.Command),
		config:   cfg,
		deps:     deps,
	}
	h.registerModules()
	return h
}

// registerModules registers all command modules
func (h *ModuleHandler) registerModules() {
	modules := []types.CommandModule{
		&games.Module{},
		&aliases.Module{},
		&playtime.Module{},
		&optout.Module{},
		&refreshcatalog.Module{},
	}
	for _, m := range modules {
		m.Register(h.commands, h.deps)
	}
}

// RegisterCommands pushes the application commands to Discord.
func (h *ModuleHandler) RegisterCommands(s *discordgo.Session) error {
	guildID := h.config.GetServerID()
	for name, cmd := range h.commands {
		created, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, cmd.ApplicationCommand)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", name, err)
		}
		h.registered = append(h.registered, created)
	}
	return nil
}

// UnregisterCommands removes the commands created by RegisterCommands.
func (h *ModuleHandler) UnregisterCommands(s *discordgo.Session) {
	guildID := h.config.GetServerID()
	for _, cmd := range h.registered {
		if err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID); err != nil {
			h.config.Logger.Warnf("failed to unregister command %s: %v", cmd.Name, err)
		}
	}
}

// HandleInteraction dispatches a slash-command interaction.
func (h *ModuleHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	cmd, ok := h.commands[name]
	if !ok {
		h.config.Logger.Warnf("unknown command: %s", name)
		return
	}
	cmd.HandlerFunc(s, i)
}
