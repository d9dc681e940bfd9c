package roost

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

func (r *Roost) handleChat(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	user *User,
) (*discordgo.WebhookEdit, error) {
	prompt := discordInteractionOptions(i)[optionPrompt].StringValue()

	response, err := r.openai.Chat(ctx, user, i.GuildID, prompt)
	if err != nil {
		return nil, err
	}

	content := minifyString(response, discordMaxMessageLength)
	return &discordgo.WebhookEdit{Content: &content}, nil
}

func (r *Roost) handleUsage(
	ctx context.Context,
	_ *discordgo.InteractionCreate,
	user *User,
) (*discordgo.WebhookEdit, error) {
	usage, err := r.openai.Usage(ctx, user)
	if err != nil {
		return nil, err
	}

	embeds := []*discordgo.MessageEmbed{
		{
			Title: "💬 Chat usage",
			Color: embedColorGreen,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "Used",
					Value:  fmt.Sprintf("%d", usage.Used),
					Inline: true,
				},
				{
					Name:   "Limit",
					Value:  fmt.Sprintf("%d", usage.Limit),
					Inline: true,
				},
				{
					Name:   "Remaining",
					Value:  fmt.Sprintf("%d", usage.Remaining),
					Inline: true,
				},
			},
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf(
					"Rolling %d-hour window",
					int(chatLimitWindow.Hours()),
				),
			},
		},
	}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}
