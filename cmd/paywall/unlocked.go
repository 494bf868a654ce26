package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/lockstate/paywall/internal/config"
	"github.com/lockstate/paywall/internal/unlock"
	"github.com/spf13/cobra"
)

var (
	unlockedUser    string
	unlockedPaywall string
)

var unlockedCmd = &cobra.Command{
	Use:   "unlocked",
	Short: "Evaluate which configured locks a user may access",
	Long: `Reads a paywall configuration file, checks chain state and the
transaction ledger, and prints the unlocked lock addresses as JSON.`,
	Run: func(cmd *cobra.Command, args []string) {
		if unlockedUser == "" {
			log.Fatal("--user is required")
		}

		raw, err := os.ReadFile(unlockedPaywall)
		if err != nil {
			log.Fatalf("Error reading paywall config: %v", err)
		}
		var paywall unlock.PaywallConfig
		if err := json.Unmarshal(raw, &paywall); err != nil {
			log.Fatalf("Error parsing paywall config: %v", err)
		}

		engine := unlock.NewEngine(config.Networks())
		addresses, err := engine.Unlocked(context.Background(), unlockedUser, paywall)
		if err != nil {
			log.Fatalf("Error evaluating paywall: %v", err)
		}

		out, err := json.Marshal(addresses)
		if err != nil {
			log.Fatalf("Error encoding result: %v", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	unlockedCmd.Flags().StringVar(&unlockedUser, "user", "", "user address to evaluate")
	unlockedCmd.Flags().StringVar(&unlockedPaywall, "paywall", "paywall.json", "path to the paywall configuration file")
}
