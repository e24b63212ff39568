// Command mcp serves the remora reminder tools over MCP (stdio).
//
// It talks to a running remora daemon through the REST API, using the same
// configuration file and variables as the daemon (client.url, API_USERNAME,
// API_PASSWORD).
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/tazhate/remora/config"
	"github.com/tazhate/remora/internal/clients/remora"
	"github.com/tazhate/remora/internal/mcpserver"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "remora-mcp",
		Short:         "MCP server for remora reminders (stdio)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.APIEnabled() {
		return fmt.Errorf("API_USERNAME and API_PASSWORD are required")
	}

	client := remora.NewClient(cfg.Client.URL, cfg.Server.Username, cfg.Server.Password)
	s := mcpserver.NewServer(client)

	return server.ServeStdio(s.MCPServer())
}
