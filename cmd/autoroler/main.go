package main

import (
	"log"

	"github.com/jvanvolken/pandacogs/internal/bot"
	"github.com/jvanvolken/pandacogs/internal/config"
)

func main() {
	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Create and start bot
	autoroler, err := bot.New(cfg)
	if err != nil {
		log.Fatal("Failed to create bot:", err)
	}

	if err := autoroler.Start(); err != nil {
		log.Fatal("Failed to start bot:", err)
	}
}
