package types

import (
	"github.com/bwmarrin/discordgo"

	"github.com/jvanvolken/pandacogs/internal/catalog"
	"github.com/jvanvolken/pandacogs/internal/config"
	"github.com/jvanvolken/pandacogs/internal/database"
	"github.com/jvanvolken/pandacogs/internal/reconciler"
	"github.com/jvanvolken/pandacogs/internal/registry"
)

// Command represents a Discord application command with its handler
type Command struct {
	ApplicationCommand *discordgo.ApplicationCommand
	HandlerFunc        func(s *discordgo.Session, i *discordgo.InteractionCreate)
}

// CommandModule represents a module that can register commands
type CommandModule interface {
	// Register adds the module's commands to the provided map
	Register(commands map[string]*Command, deps *Dependencies)
}

// Dependencies contains shared dependencies that command modules may need
type Dependencies struct {
	Config     *config.Config
	Registry   *registry.Registry
	Members    *registry.MemberStore
	Reconciler *reconciler.Reconciler
	Catalog    *catalog.Client
	DB         *database.DB
	Session    *discordgo.Session // Set after bot initialization
}
