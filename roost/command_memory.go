package roost

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// discordMaxEmbedFields is the Discord-imposed cap on embed fields.
const discordMaxEmbedFields = 25

const (
	embedColorBlue  = 0x3498db
	embedColorGreen = 0x2ecc71
)

// guildScope returns the guild ID for a memory command, rejecting DMs -
// memories are scoped to a server.
func guildScope(i *discordgo.InteractionCreate) (string, error) {
	if i.GuildID == "" {
		return "", fmt.Errorf(
			"%w: memory commands only work in a server",
			ErrValidation,
		)
	}
	return i.GuildID, nil
}

func (r *Roost) handleRemember(
	i *discordgo.InteractionCreate,
	user *User,
) (*discordgo.WebhookEdit, error) {
	guildID, err := guildScope(i)
	if err != nil {
		return nil, err
	}
	options := discordInteractionOptions(i)

	nickname := options[optionNickname].StringValue()
	text := options[optionText].StringValue()
	overwrite := true
	if opt, ok := options[optionOverwrite]; ok {
		overwrite = opt.BoolValue()
	}

	rec, err := r.memories.Remember(guildID, nickname, text, user.ID, overwrite)
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf("Stored a note under **%s**.", rec.Nickname)
	if rec.UpdatedAt > rec.CreatedAt {
		content = fmt.Sprintf("Updated the note under **%s**.", rec.Nickname)
	}
	return &discordgo.WebhookEdit{Content: &content}, nil
}

func (r *Roost) handleRecall(
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	guildID, err := guildScope(i)
	if err != nil {
		return nil, err
	}
	nickname := discordInteractionOptions(i)[optionNickname].StringValue()

	rec, err := r.memories.Recall(guildID, nickname)
	if err != nil {
		return nil, err
	}

	embeds := []*discordgo.MessageEmbed{
		{
			Title:       rec.Nickname,
			Description: rec.Text,
			Color:       embedColorBlue,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "Saved by",
					Value:  fmt.Sprintf("<@%s>", rec.OwnerID),
					Inline: true,
				},
				{
					Name:   "Updated",
					Value:  fmt.Sprintf("<t:%d:R>", rec.UpdatedAt/1000),
					Inline: true,
				},
			},
		},
	}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}

func (r *Roost) handleForget(
	i *discordgo.InteractionCreate,
	user *User,
) (*discordgo.WebhookEdit, error) {
	guildID, err := guildScope(i)
	if err != nil {
		return nil, err
	}
	nickname := discordInteractionOptions(i)[optionNickname].StringValue()

	if err = r.memories.Forget(guildID, nickname, user.ID); err != nil {
		return nil, err
	}
	content := fmt.Sprintf("Forgot **%s**.", strings.TrimSpace(nickname))
	return &discordgo.WebhookEdit{Content: &content}, nil
}

func (r *Roost) handleMemories(
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	guildID, err := guildScope(i)
	if err != nil {
		return nil, err
	}

	records := r.memories.List(guildID)
	if len(records) == 0 {
		content := "No notes stored for this server yet. Add one with /remember!"
		return &discordgo.WebhookEdit{Content: &content}, nil
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(records))
	for _, rec := range records {
		if len(fields) >= discordMaxEmbedFields {
			break
		}
		fields = append(
			fields, &discordgo.MessageEmbedField{
				Name:  rec.Nickname,
				Value: truncate(rec.Text, 200),
			},
		)
	}

	embed := &discordgo.MessageEmbed{
		Title:  "📝 Server notes",
		Color:  embedColorBlue,
		Fields: fields,
	}
	if len(records) > discordMaxEmbedFields {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf(
				"Showing %d of %d notes",
				discordMaxEmbedFields,
				len(records),
			),
		}
	}
	embeds := []*discordgo.MessageEmbed{embed}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}
