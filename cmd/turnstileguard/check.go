package main

import (
	"fmt"

	"turnstileguard/internal/exclusion"

	"github.com/spf13/cobra"
)

var checkIPCmd = &cobra.Command{
	Use:   "check-ip <address>...",
	Short: "Report whether addresses fall in the excluded IP ranges",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ranges, dropped := exclusion.ParseIPRanges(cfg.Turnstile.ExcludedIPs)
		out := cmd.OutOrStdout()
		if dropped > 0 {
			fmt.Fprintf(out, "warning: %d malformed excluded IP entries ignored\n", dropped)
		}
		for _, addr := range args {
			fmt.Fprintf(out, "%s\t%s\n", addr, verdict(ranges.Contains(addr)))
		}
		return nil
	},
}

var checkDomainCmd = &cobra.Command{
	Use:   "check-domain <host>...",
	Short: "Report whether hosts match the excluded domains",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		patterns := exclusion.ParseDomainPatterns(cfg.Turnstile.ExcludedDomains)
		out := cmd.OutOrStdout()
		for _, host := range args {
			fmt.Fprintf(out, "%s\t%s\n", host, verdict(patterns.Contains(host)))
		}
		return nil
	},
}

func verdict(excluded bool) string {
	if excluded {
		return "excluded"
	}
	return "gated"
}
