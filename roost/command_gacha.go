package roost

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

func (r *Roost) handleGacha(
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	options := discordInteractionOptions(i)
	ratePercent := options[optionRate].FloatValue()
	pulls := int(options[optionPulls].IntValue())

	result, err := GachaProbability(ratePercent/100, pulls)
	if err != nil {
		return nil, err
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "At least one",
			Value:  fmt.Sprintf("%.2f%%", result.SuccessChance*100),
			Inline: true,
		},
		{
			Name:   "None at all",
			Value:  fmt.Sprintf("%.2f%%", result.FailureChance*100),
			Inline: true,
		},
		{
			Name:   "Expected successes",
			Value:  fmt.Sprintf("%.2f", result.ExpectedSuccesses),
			Inline: true,
		},
	}

	// Milestone pull counts are only meaningful below a 100% rate.
	if result.Rate < 1 {
		for _, desired := range []float64{0.5, 0.9, 0.99} {
			attempts, milestoneErr := GachaAttemptsFor(result.Rate, desired)
			if milestoneErr != nil {
				continue
			}
			fields = append(
				fields, &discordgo.MessageEmbedField{
					Name:   fmt.Sprintf("Pulls for %.0f%%", desired*100),
					Value:  formatCount(int64(attempts)),
					Inline: true,
				},
			)
		}
	}

	embeds := []*discordgo.MessageEmbed{
		{
			Title: fmt.Sprintf(
				"✨ %.4g%% rate, %s pulls",
				ratePercent,
				formatCount(int64(pulls)),
			),
			Color:  embedColorGreen,
			Fields: fields,
		},
	}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}

func (r *Roost) handleResources(
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	options := discordInteractionOptions(i)
	var orundum, originite, permits int
	if opt, ok := options[optionOrundum]; ok {
		orundum = int(opt.IntValue())
	}
	if opt, ok := options[optionOriginite]; ok {
		originite = int(opt.IntValue())
	}
	if opt, ok := options[optionPermits]; ok {
		permits = int(opt.IntValue())
	}
	if orundum < 0 || originite < 0 || permits < 0 {
		return nil, fmt.Errorf(
			"%w: resource amounts can't be negative",
			ErrValidation,
		)
	}

	pulls := BannerPulls(orundum, originite, permits)
	if pulls < 1 {
		return nil, fmt.Errorf(
			"%w: not enough for a single pull (%d orundum each)",
			ErrValidation,
			bannerOrundumPerPull,
		)
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Orundum",
			Value:  formatCount(int64(orundum)),
			Inline: true,
		},
		{
			Name:   "Originite Prime",
			Value:  formatCount(int64(originite)),
			Inline: true,
		},
		{
			Name:   "Headhunting permits",
			Value:  formatCount(int64(permits)),
			Inline: true,
		},
	}
	if result, perr := BannerProbability(pulls, false); perr == nil {
		fields = append(
			fields, &discordgo.MessageEmbedField{
				Name:   "Rate-up at least once",
				Value:  fmt.Sprintf("%.2f%%", result.TargetChance*100),
				Inline: true,
			},
		)
	}

	embeds := []*discordgo.MessageEmbed{
		{
			Title: fmt.Sprintf(
				"🧮 Enough for %s pulls",
				formatCount(int64(pulls)),
			),
			Color:  embedColorGreen,
			Fields: fields,
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf(
					"%d orundum per pull, %d per originite prime",
					bannerOrundumPerPull,
					bannerOrundumPerPrime,
				),
			},
		},
	}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}

func (r *Roost) handleBanner(
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	options := discordInteractionOptions(i)
	pulls := int(options[optionPulls].IntValue())
	limited := false
	if opt, ok := options[optionLimited]; ok {
		limited = opt.BoolValue()
	}

	result, err := BannerProbability(pulls, limited)
	if err != nil {
		return nil, err
	}

	bannerKind := "standard"
	if result.Limited {
		bannerKind = "limited"
	}

	embeds := []*discordgo.MessageEmbed{
		{
			Title: fmt.Sprintf(
				"🎯 %s pulls on a %s banner",
				formatCount(int64(result.Pulls)),
				bannerKind,
			),
			Color: embedColorGreen,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "Rate-up at least once",
					Value:  fmt.Sprintf("%.2f%%", result.TargetChance*100),
					Inline: true,
				},
				{
					Name:   "Expected 6★",
					Value:  fmt.Sprintf("%.2f", result.ExpectedSixStars),
					Inline: true,
				},
				{
					Name:   "Expected rate-up",
					Value:  fmt.Sprintf("%.2f", result.ExpectedTargets),
					Inline: true,
				},
			},
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf(
					"%.0f%% base 6★ rate, pity ramp after %d pulls",
					bannerBaseRate*100,
					bannerPityStart,
				),
			},
		},
	}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}
