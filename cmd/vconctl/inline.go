package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	dErrors "vcon/pkg/domain-errors"
	"vcon/pkg/fetch"
)

func newInlineCmd() *cobra.Command {
	var (
		output   string
		indent   bool
		timeout  time.Duration
		maxBytes int64
	)
	cmd := &cobra.Command{
		Use:   "inline FILE",
		Short: "Fetch externally referenced dialog content and embed it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := readVcon(args[0])
			if err != nil {
				return err
			}
			if v.IsSigned() {
				return dErrors.New(dErrors.CodeInvalidState, "cannot inline a signed vcon")
			}

			log := cmdLogger(cmd)
			fetcher := fetch.New(fetch.WithMaxBytes(maxBytes))
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			inlined := 0
			for i, d := range v.Dialogs() {
				if !d.IsExternalData() {
					continue
				}
				url := d.URL.OrElse("")
				if err := d.ToInlineData(ctx, fetcher); err != nil {
					return fmt.Errorf("dialog[%d]: %w", i, err)
				}
				inlined++
				log.Debug("inlined dialog", "index", i, "url", url)
			}
			log.Info("inline complete", "uuid", v.UUID(), "dialogs", inlined)
			return writeVcon(cmd.OutOrStdout(), output, v, indent)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&indent, "indent", false, "indent the output")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall fetch timeout")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 64<<20, "largest body fetched per dialog")
	return cmd
}
