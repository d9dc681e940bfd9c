package roost

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func (r *Roost) handleExchange(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	options := discordInteractionOptions(i)

	currency := ""
	amount := 1.0
	if opt, ok := options[optionCurrency]; ok {
		currency = opt.StringValue()
	}
	if opt, ok := options[optionAmount]; ok {
		amount = opt.FloatValue()
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	rates, err := r.exchange.Rates(ctx)
	if err != nil {
		return nil, err
	}

	if currency != "" {
		for _, rt := range rates {
			if rt.Currency != currency {
				continue
			}
			content := fmt.Sprintf(
				"%.2f %s = %.2f KRW",
				amount,
				rt.Currency,
				amount*rt.KRW,
			)
			return &discordgo.WebhookEdit{Content: &content}, nil
		}
		return nil, fmt.Errorf("%w: currency %q", ErrNotFound, currency)
	}

	var b strings.Builder
	for _, rt := range rates {
		fmt.Fprintf(&b, "**%s**: %.2f KRW\n", rt.Currency, amount*rt.KRW)
	}

	title := "💱 KRW per unit"
	if amount != 1 {
		title = fmt.Sprintf("💱 KRW per %.2f units", amount)
	}
	embeds := []*discordgo.MessageEmbed{
		{
			Title:       title,
			Description: b.String(),
			Color:       embedColorBlue,
			Footer: &discordgo.MessageEmbedFooter{
				Text: "Source: open.er-api.com",
			},
		},
	}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}

func (r *Roost) handlePopulation(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	name := discordInteractionOptions(i)[optionCountry].StringValue()

	info, err := r.population.Country(ctx, name)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title:       info.Name,
		Description: info.Official,
		Color:       embedColorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Population",
				Value:  formatCount(info.Population),
				Inline: true,
			},
		},
	}
	if info.Capital != "" {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:   "Capital",
				Value:  info.Capital,
				Inline: true,
			},
		)
	}
	if info.Region != "" {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:   "Region",
				Value:  info.Region,
				Inline: true,
			},
		)
	}
	if info.FlagURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: info.FlagURL}
	}

	embeds := []*discordgo.MessageEmbed{embed}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}

func (r *Roost) handleSteam(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	name := discordInteractionOptions(i)[optionGame].StringValue()

	best, alternates, err := r.steam.FindGame(ctx, name)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title: best.Name,
		URL:   best.StoreURL(),
		Color: embedColorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Playing now",
				Value: formatCount(int64(best.PlayerCount)),
			},
		},
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: best.HeaderImageURL(),
		},
	}
	if len(alternates) > 0 {
		names := make([]string, len(alternates))
		for n, game := range alternates {
			names[n] = fmt.Sprintf("[%s](%s)", game.Name, game.StoreURL())
		}
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  "Other matches",
				Value: strings.Join(names, "\n"),
			},
		)
	}

	embeds := []*discordgo.MessageEmbed{embed}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}
