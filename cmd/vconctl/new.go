package main

import (
	"github.com/spf13/cobra"

	"vcon/internal/platform/config"
	"vcon/pkg/vcon"
)

func newNewCmd() *cobra.Command {
	var (
		domain string
		output string
		indent bool
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty vCon with a fresh time-ordered uuid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := vcon.New(vcon.WithDomain(domain))
			cmdLogger(cmd).Debug("created vcon", "uuid", v.UUID(), "domain", domain)
			return writeVcon(cmd.OutOrStdout(), output, v, indent)
		},
	}
	cmd.Flags().StringVar(&domain, "domain", config.FromEnv().UUIDDomain, "domain hashed into the uuid (VCON_UUID_DOMAIN)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&indent, "indent", false, "indent the output")
	return cmd
}
