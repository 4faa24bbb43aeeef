package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"vcon/internal/platform/config"
	"vcon/internal/platform/logger"
	"vcon/pkg/vcon"
)

// newRootCmd builds the vconctl command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vconctl",
		Short: "Create, validate, sign and verify vCon documents",
		Long: `vconctl works on vCon JSON documents on disk: it validates them,
signs and verifies them with PEM keys, and inlines externally referenced
dialog content.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newNewCmd(),
		newValidateCmd(),
		newKeygenCmd(),
		newSignCmd(),
		newVerifyCmd(),
		newInlineCmd(),
	)
	return root
}

func cmdLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return logger.NewText(cmd.ErrOrStderr(), verbose)
}

func newValidator(mimetypesFile string) (*vcon.Validator, error) {
	if mimetypesFile == "" {
		return vcon.NewValidator(), nil
	}
	types, ok, err := config.LoadMimetypes(mimetypesFile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return vcon.NewValidator(), nil
	}
	return vcon.NewValidator(vcon.WithMimetypes(types...)), nil
}

func readVcon(path string) (*vcon.Vcon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := vcon.BuildFromJSON(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// writeVcon writes v to path, or to out when path is empty or "-".
func writeVcon(out io.Writer, path string, v *vcon.Vcon, indent bool) error {
	data, err := v.ToJSON()
	if err != nil {
		return err
	}
	if indent {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = out.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
