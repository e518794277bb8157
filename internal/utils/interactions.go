package utils

import "github.com/bwmarrin/discordgo"

// InteractionUser returns the invoking user for both guild and DM
// interactions.
func InteractionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// ButtonRows packs buttons into action rows of five, capped at the 25
// components one message may carry.
func ButtonRows(buttons []discordgo.Button) []discordgo.MessageComponent {
	if len(buttons) > 25 {
		buttons = buttons[:25]
	}

	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += 5 {
		end := start + 5
		if end > len(buttons) {
			end = len(buttons)
		}
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			button := b
			row.Components = append(row.Components, button)
		}
		rows = append(rows, row)
	}
	return rows
}
