// Package bot wires the Discord session to the tracking engine: presence
// events feed the reconciler, replies feed alias flows, and interactions feed
// the command modules and button handlers.
package bot

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"

	"github.com/jvanvolken/pandacogs/internal/catalog"
	"github.com/jvanvolken/pandacogs/internal/commands"
	"github.com/jvanvolken/pandacogs/internal/commands/types"
	"github.com/jvanvolken/pandacogs/internal/config"
	"github.com/jvanvolken/pandacogs/internal/database"
	"github.com/jvanvolken/pandacogs/internal/reconciler"
	"github.com/jvanvolken/pandacogs/internal/registry"
	"github.com/jvanvolken/pandacogs/internal/store"
)

// Bot owns the Discord session and the object graph behind it.
type Bot struct {
	session    *discordgo.Session
	config     *config.Config
	db         *database.DB
	store      *store.Store
	registry   *registry.Registry
	members    *registry.MemberStore
	reconciler *reconciler.Reconciler
	handler    *commands.ModuleHandler
	cron       *cron.Cron

	ready atomic.Bool // guards interaction handling until startup completes
}

// New builds the bot and its full dependency graph.
func New(cfg *config.Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.GetBotToken())
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	db, err := database.NewDB(cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("error opening change-log database: %w", err)
	}

	persist, err := store.New(cfg.GetDataDir(), db, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("error opening data store: %w", err)
	}

	members, err := registry.NewMemberStore(persist, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("error loading members: %w", err)
	}

	cat := catalog.New(cfg.GetIGDBClientID(), cfg.GetIGDBClientToken(), cfg.GetCatalogExcludeAdult(), cfg.Logger)

	roleStore := newGuildRoleStore(session, cfg.GetServerID())
	reg, err := registry.New(cat, roleStore, members, persist, cfg.GetMaxRoleCount(), cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("error loading game registry: %w", err)
	}

	notifier := newDiscordNotifier(session, cfg)
	reg.SetReporter(notifier.AdminReport)

	rec := reconciler.New(reg, members, notifier,
		cfg.GetActivityBlacklist(), cfg.GetMemberWhitelist(),
		cfg.GetAliasMaxAttempts(), cfg.Logger)

	handler := commands.NewModuleHandler(cfg, &types.Dependencies{
		Config:     cfg,
		Registry:   reg,
		Members:    members,
		Reconciler: rec,
		Catalog:    cat,
		DB:         db,
		Session:    session,
	})

	bot := &Bot{
		session:    session,
		config:     cfg,
		db:         db,
		store:      persist,
		registry:   reg,
		members:    members,
		reconciler: rec,
		handler:    handler,
		cron:       cron.New(),
	}
	bot.ready.Store(false)

	// Presence tracking needs guilds, members, presences, and messages for
	// the alias reply flow.
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsDirectMessages

	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onInteractionCreate)
	session.AddHandler(bot.onPresenceUpdate)
	session.AddHandler(bot.onMessageCreate)

	return bot, nil
}

// Start opens the connection and blocks until interrupted.
func (b *Bot) Start() error {
	err := b.session.Open()
	if err != nil {
		return fmt.Errorf("error opening Discord connection: %w", err)
	}
	defer func() {
		if err := b.session.Close(); err != nil {
			b.config.Logger.Warn("error closing Discord session:", err)
		}
	}()

	if err := b.handler.RegisterCommands(b.session); err != nil {
		return fmt.Errorf("error registering commands: %w", err)
	}

	if err := b.store.Start(b.config.GetBackupFrequency()); err != nil {
		return fmt.Errorf("error starting backup routine: %w", err)
	}
	defer b.store.Stop()
	defer func() {
		if err := b.db.Close(); err != nil {
			b.config.Logger.Warnf("error closing database: %v", err)
		}
	}()

	// Log rotation is not part of the data-store cycle.
	if _, err := b.cron.AddFunc("@hourly", func() {
		if err := b.config.RotateAndPruneLogs(); err != nil {
			b.config.Logger.Errorf("log rotation failed: %v", err)
		}
	}); err != nil {
		b.config.Logger.Errorf("failed to register log rotation: %v", err)
	}
	b.cron.Start()
	defer b.cron.Stop()

	if err := b.session.UpdateGameStatus(0, "Watching for gamers..."); err != nil {
		b.config.Logger.Warn("error updating bot status:", err)
	}

	b.ready.Store(true)
	b.config.Logger.Info("Initialization complete; interactions enabled")
	b.config.Logger.Info("Autoroler is now running. Press CTRL+C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	if os.Getenv("UNREGISTER_COMMANDS") == "true" {
		b.handler.UnregisterCommands(b.session)
	}

	return nil
}

// onReady handles the ready event
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.config.Logger.Infof("Bot received ready signal! Logged in as: %s#%s", r.User.Username, r.User.Discriminator)
}

// onPresenceUpdate maps a raw presence change onto a reconciler event. Only
// "playing" activities count; everything else reads as idle.
func (b *Bot) onPresenceUpdate(s *discordgo.Session, p *discordgo.PresenceUpdate) {
	if p.GuildID != b.config.GetServerID() {
		return
	}
	if p.User == nil {
		return
	}

	activity := ""
	for _, a := range p.Activities {
		if a.Type == discordgo.ActivityTypeGame && a.Name != "" {
			activity = a.Name
			break
		}
	}

	username := p.User.Username
	displayName := p.User.GlobalName
	if username == "" {
		// Presence payloads may carry a partial user; fill from state.
		if member, err := s.State.Member(p.GuildID, p.User.ID); err == nil && member.User != nil {
			username = member.User.Username
			if member.Nick != "" {
				displayName = member.Nick
			}
		}
	}
	if username == "" {
		return
	}

	b.reconciler.HandlePresence(reconciler.PresenceEvent{
		Member:      username,
		DisplayName: displayName,
		UserID:      p.User.ID,
		Activity:    activity,
		Bot:         p.User.Bot,
	})
}

// onMessageCreate feeds admin-channel replies into pending alias flows.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.MessageReference == nil || m.MessageReference.MessageID == "" {
		return
	}
	if m.ChannelID != b.config.GetAdminChannelID() {
		return
	}

	b.reconciler.HandleReply(m.MessageReference.MessageID, m.Author.Username, m.Content)
}

// onInteractionCreate handles slash command and component interactions
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	// Initialization guard: reject interactions until startup has completed.
	if !b.ready.Load() {
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "⏳ Bot is starting up, try again in a few seconds.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handler.HandleInteraction(s, i)
	case discordgo.InteractionMessageComponent:
		b.onComponentInteraction(s, i)
	}
}
