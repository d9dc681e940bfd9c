package roost

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	diceMinSides = 2
	diceMaxSides = 100
	diceMaxRolls = 10
)

func (r *Roost) handleRoll(
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	options := discordInteractionOptions(i)

	sides := 6
	times := 1
	if opt, ok := options[optionSides]; ok {
		sides = int(opt.IntValue())
	}
	if opt, ok := options[optionTimes]; ok {
		times = int(opt.IntValue())
	}
	if sides < diceMinSides || sides > diceMaxSides {
		return nil, fmt.Errorf(
			"%w: dice have %d-%d sides",
			ErrValidation,
			diceMinSides,
			diceMaxSides,
		)
	}
	if times < 1 || times > diceMaxRolls {
		return nil, fmt.Errorf(
			"%w: roll 1-%d times",
			ErrValidation,
			diceMaxRolls,
		)
	}

	results := make([]string, times)
	sum := 0
	for n := 0; n < times; n++ {
		roll := rand.Intn(sides) + 1
		sum += roll
		results[n] = strconv.Itoa(roll)
	}

	embed := &discordgo.MessageEmbed{
		Title: "🎲 Dice roll",
		Color: embedColorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  fmt.Sprintf("D%d × %d", sides, times),
				Value: strings.Join(results, ", "),
			},
		},
	}
	if times > 1 {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  "Total",
				Value: strconv.Itoa(sum),
			},
		)
	}
	embeds := []*discordgo.MessageEmbed{embed}
	return &discordgo.WebhookEdit{Embeds: &embeds}, nil
}

func (r *Roost) handleChoose(
	i *discordgo.InteractionCreate,
) (*discordgo.WebhookEdit, error) {
	raw := discordInteractionOptions(i)[optionChoices].StringValue()
	choices := strings.Fields(raw)
	if len(choices) < 2 {
		return nil, fmt.Errorf(
			"%w: give me at least two options to pick from",
			ErrValidation,
		)
	}

	pick := choices[rand.Intn(len(choices))]
	content := fmt.Sprintf("Hmm... I pick **%s**!", pick)
	return &discordgo.WebhookEdit{Content: &content}, nil
}
