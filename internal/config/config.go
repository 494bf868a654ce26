package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Network describes one supported chain: where to read state from and
// which transaction ledger service remembers submitted purchases for it.
type Network struct {
	Name             string
	ReadOnlyProvider string
	LocksmithURI     string
}

// LoadConfig loads the configuration and sets default values for development/production
func LoadConfig() error {
	// .env first so viper picks up any overrides exported there
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".") // Path to look for the config file in
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create a default one
			return createDefaultConfig()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	// Ensure we have sensible defaults in case they are not in the config file
	setDefaults()

	return nil
}

// setDefaults sets default configuration values based on the environment
func setDefaults() {
	// Check the current environment (default is development)
	env := viper.GetString("ENV")
	if env == "" {
		env = "development"
		viper.Set("ENV", env)
	}

	if env == "development" {
		viper.SetDefault("allowed_origin", "http://localhost:3000")
		viper.SetDefault("ledger_db_path", "./dev_ledger.db")
		viper.SetDefault("log_level", "debug")
	} else if env == "production" {
		viper.SetDefault("allowed_origin", "https://my-production-site.com")
		viper.SetDefault("ledger_db_path", "/var/lib/paywall/ledger.db")
		viper.SetDefault("log_level", "info")
	}

	// Common defaults for both environments
	viper.SetDefault("api_port", 8084)
	viper.SetDefault("use_https", false)
	viper.SetDefault("cert_file", "server.crt")
	viper.SetDefault("key_file", "server.key")
	viper.SetDefault("log_file", "")
	viper.SetDefault("required_confirmations", 12)
	viper.SetDefault("pessimistic", false)
	// Bearer secret for the ledger write route; empty disables auth
	viper.SetDefault("ledger_api_secret", "")
	viper.SetDefault("default_network", 1)

	viper.SetDefault("networks", map[string]interface{}{
		"1": map[string]interface{}{
			"name":               "mainnet",
			"read_only_provider": "https://cloudflare-eth.com",
			"locksmith_uri":      "http://localhost:8084",
		},
		"11155111": map[string]interface{}{
			"name":               "sepolia",
			"read_only_provider": "https://rpc.sepolia.org",
			"locksmith_uri":      "http://localhost:8084",
		},
	})
}

// Networks returns the configured chain table keyed by chain id
func Networks() map[int]Network {
	out := make(map[int]Network)
	raw := viper.GetStringMap("networks")
	for id, v := range raw {
		chainID, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		entry, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		out[chainID] = Network{
			Name:             stringField(entry, "name"),
			ReadOnlyProvider: stringField(entry, "read_only_provider"),
			LocksmithURI:     stringField(entry, "locksmith_uri"),
		}
	}
	return out
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// createDefaultConfig creates a new configuration file if it doesn't exist
func createDefaultConfig() error {
	setDefaults()

	err := viper.SafeWriteConfig()
	if err != nil {
		if os.IsExist(err) {
			// If the config already exists, attempt to overwrite it
			err = viper.WriteConfig()
			if err != nil {
				return fmt.Errorf("error writing config file: %w", err)
			}
		} else {
			return fmt.Errorf("error creating config file: %w", err)
		}
	}

	fmt.Println("Created default configuration file")
	return nil
}
