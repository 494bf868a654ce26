package main

import (
	"fmt"
	"log"
	"os"

	"github.com/lockstate/paywall/internal/config"
	"github.com/lockstate/paywall/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "paywall",
	Short: "Membership paywall toolkit",
	Long:  `Tracks membership key purchases and decides, per lock, whether a user is currently unlocked.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(unlockedCmd)
	rootCmd.AddCommand(statusCmd)
}

func initConfig() {
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	if err := logger.Init(viper.GetString("log_file")); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
