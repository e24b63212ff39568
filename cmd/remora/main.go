package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tazhate/remora/config"
	"github.com/tazhate/remora/internal/clients/remora"
)

var configPath string

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "remora",
		Short:         "Reminders that ring on time",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ~/.remora/config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newListCmd(),
		newAddCmd(),
		newDoneCmd(),
		newRemoveCmd(),
		newStopCmd(),
		newAlarmsCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newClient builds a REST client for the daemon named in the config.
func newClient() (*remora.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.APIEnabled() {
		return nil, fmt.Errorf("API_USERNAME and API_PASSWORD are required to talk to the daemon")
	}
	return remora.NewClient(cfg.Client.URL, cfg.Server.Username, cfg.Server.Password), nil
}
