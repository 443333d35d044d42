package main

import (
	"fmt"
	"os"

	"turnstileguard/internal/config"
	"turnstileguard/internal/gate"

	"github.com/spf13/cobra"
)

var (
	configFile string
	envPrefix  string
)

var rootCmd = &cobra.Command{
	Use:           "turnstileguard",
	Short:         "Turnstile challenge gate in front of an HTTP application",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envPrefix, "env-prefix", "TURNSTILE", "environment variable prefix")

	rootCmd.AddCommand(checkIPCmd)
	rootCmd.AddCommand(checkDomainCmd)
}

func loadConfig() (*gate.Config, error) {
	cfg, err := config.NewLoader(configFile, envPrefix).Load()
	if err != nil {
		return nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
