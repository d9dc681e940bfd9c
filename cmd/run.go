package cmd

import (
	"log"

	"github.com/roostbot/roost/roost"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags]",
	Short: "Starts the Roost bot and (optionally) the status API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		bot, err := roost.New(cfg)
		if err != nil {
			log.Fatalf("error creating roost: %s", err.Error())
		}

		if err = bot.Run(ctx); err != nil {
			log.Fatalf("error running roost: %s", err.Error())
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
