package main

import (
	"log"

	"github.com/lockstate/paywall/internal/ledger"
	"github.com/lockstate/paywall/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transaction ledger service",
	Long: `Runs the HTTP service that durably records submitted purchases so
other sessions and devices can be optimistic about them.`,
	Run: func(cmd *cobra.Command, args []string) {
		defer logger.Cleanup()

		dbPath := viper.GetString("ledger_db_path")
		if err := ledger.InitLedgerDB(dbPath); err != nil {
			log.Fatalf("Error initializing ledger database: %v", err)
		}
		logger.Infof("Ledger database ready at %s", dbPath)

		api := ledger.NewAPI()
		if err := api.Start(viper.GetInt("api_port")); err != nil {
			log.Fatalf("Ledger service stopped: %v", err)
		}
	},
}
