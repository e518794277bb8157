package utils

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// StringPtr returns a pointer to the given string, for discordgo's
// pointer-typed webhook edit fields.
func StringPtr(s string) *string {
	return &s
}

// NewErrorEmbed creates a standard error embed.
func NewErrorEmbed(message string, err error) *discordgo.MessageEmbed {
	description := message
	if err != nil {
		description = fmt.Sprintf("%s\n```%v```", message, err)
	}
	return &discordgo.MessageEmbed{
		Title:       "❌ Something went wrong",
		Description: description,
		Color:       Colors.Error(),
	}
}

// NewNoResultsEmbed creates a standard empty-result embed.
func NewNoResultsEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🔍 No results",
		Description: message,
		Color:       Colors.Warning(),
	}
}
