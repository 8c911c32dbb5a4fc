package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexcodex/fitcoach/config"
)

var (
	cfg *config.Config

	flagConfig  string
	flagBackend string
	flagToken   string
	flagModel   string
	flagDebug   bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fitcoach",
		Short:         "Tool-calling fitness coach agent and its record backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			loaded.ApplyEnv()
			if flagBackend != "" {
				loaded.Backend.BaseURL = flagBackend
			}
			if flagToken != "" {
				loaded.Backend.Token = flagToken
			}
			if flagModel != "" {
				loaded.Model.Primary = flagModel
			}
			if flagDebug {
				loaded.Logging.Debug = true
			}
			if err := loaded.Normalize(); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", envOrDefault("FITCOACH_CONFIG", ""), "Path to a fitcoach.yaml config file")
	root.PersistentFlags().StringVar(&flagBackend, "backend", "", "Record service base URL")
	root.PersistentFlags().StringVar(&flagToken, "token", "", "Record service bearer token")
	root.PersistentFlags().StringVar(&flagModel, "model", "", "Primary chat model")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Verbose client traces")

	root.AddCommand(newTurnCmd(), newSmokeCmd(), newStubCmd(), newCatalogCmd())
	return root
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
