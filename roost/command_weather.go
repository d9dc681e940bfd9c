package roost

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

func (r *Roost) handleWeather(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	place := discordInteractionOptions(i)[optionCity].StringValue()

	report, err := r.weather.Current(ctx, place)
	if err != nil {
		return nil, err
	}

	title := report.Location
	if report.Country != "" {
		title = fmt.Sprintf("%s, %s", report.Location, report.Country)
	}

	embeds := []*discordgo.MessageEmbed{
		{
			Title:       fmt.Sprintf("⛅ %s", title),
			Description: report.Description,
			Color:       embedColorBlue,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "Temperature",
					Value:  fmt.Sprintf("%.1f°C", report.TemperatureC),
					Inline: true,
				},
				{
					Name:   "Feels like",
					Value:  fmt.Sprintf("%.1f°C", report.FeelsLikeC),
					Inline: true,
				},
				{
					Name:   "Humidity",
					Value:  fmt.Sprintf("%d%%", report.Humidity),
					Inline: true,
				},
				{
					Name:   "Wind",
					Value:  fmt.Sprintf("%.1f km/h", report.WindSpeedKMH),
					Inline: true,
				},
			},
			Footer: &discordgo.MessageEmbedFooter{
				Text: "Source: open-meteo.com",
			},
		},
	}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}
