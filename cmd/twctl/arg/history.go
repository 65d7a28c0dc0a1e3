package arg

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"tabwarden/internal/config"
	"tabwarden/internal/journal"
)

var (
	historyLimit  int
	historyConfig string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent enforcement and flush activity",
	Long: `Show recent enforcement and flush activity from the local journal.
Reads the journal file directly, so it works while the daemon is stopped.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadFromFile(historyConfig)
		if err != nil {
			log.Fatal("Failed to load config:", err)
		}

		j, err := journal.Open(cfg.Storage.JournalPath)
		if err != nil {
			log.Fatal("Failed to open journal:", err)
		}
		defer j.Close()

		events, err := j.Recent(context.Background(), historyLimit)
		if err != nil {
			log.Fatal("Failed to read journal:", err)
		}
		if len(events) == 0 {
			fmt.Println("No journal entries yet")
			return
		}

		for _, e := range events {
			line := fmt.Sprintf("%s  %-18s", e.At.Local().Format(time.DateTime), e.Kind)
			if e.Domain != "" {
				line += "  " + e.Domain
			}
			if e.GoalID != "" {
				line += "  goal=" + e.GoalID
			}
			if e.Detail != "" {
				line += "  " + e.Detail
			}
			fmt.Println(line)
		}
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 25, "Maximum entries to show")
	historyCmd.Flags().StringVarP(&historyConfig, "config", "c", config.DefaultPath(), "Config file path")
	rootCmd.AddCommand(historyCmd)
}
