package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var mimetypes string
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate vCon files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			validator, err := newValidator(mimetypes)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			invalid := 0
			for _, path := range args {
				ok, errs := validator.ValidateFile(path)
				if ok {
					fmt.Fprintf(out, "%s: valid\n", path)
					continue
				}
				invalid++
				fmt.Fprintf(out, "%s: invalid\n", path)
				for _, e := range errs {
					fmt.Fprintf(out, "  - %s\n", e)
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d files invalid", invalid, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mimetypes, "mimetypes", "", "TOML file overriding the dialog mimetype allow-list")
	return cmd
}
