package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tazhate/remora/internal/app"
	"github.com/tazhate/remora/internal/metrics"
	"github.com/tazhate/remora/internal/presentation"
)

func newServeCmd() *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reminder daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			terminal := !headless && presentation.IsTerminal()
			if !terminal && !cfg.TelegramEnabled() {
				log.Println("No terminal and no Telegram chat: alarms will only ring the bell")
			}

			a, err := app.New(cfg, app.Options{
				Terminal: terminal,
				In:       os.Stdin,
				Out:      os.Stdout,
				BellOut:  os.Stdout,
				Metrics:  metrics.Default(),
			})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = a.Run(ctx)
			log.Println("Remora stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "never take over the terminal for the alarm view")
	return cmd
}
