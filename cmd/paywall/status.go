package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/lockstate/paywall/internal/cache"
	"github.com/lockstate/paywall/internal/status"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	statusSnapshot string
	statusLock     string
	statusOwner    string
)

// snapshot is the on-disk shape of a cache dump: the flat transaction
// table plus the key table, exactly what the linker consumes.
type snapshot struct {
	Transactions map[string]*cache.Transaction `json:"transactions"`
	Keys         map[string]*cache.Key         `json:"keys"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Derive the status of one membership key from a state snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		if statusLock == "" || statusOwner == "" {
			log.Fatal("--lock and --owner are required")
		}

		raw, err := os.ReadFile(statusSnapshot)
		if err != nil {
			log.Fatalf("Error reading snapshot: %v", err)
		}
		var snap snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			log.Fatalf("Error parsing snapshot: %v", err)
		}

		linked := cache.LinkTransactionsToKeys(snap.Transactions, snap.Keys)
		keyID := cache.KeyID(statusLock, statusOwner)
		result := status.Derive(keyID, linked, viper.GetInt("required_confirmations"))

		fmt.Println(result)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusSnapshot, "snapshot", "state.json", "path to a cache snapshot file")
	statusCmd.Flags().StringVar(&statusLock, "lock", "", "lock address")
	statusCmd.Flags().StringVar(&statusOwner, "owner", "", "owner address")
}
