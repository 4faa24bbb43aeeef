package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vcon/internal/jws"
	"vcon/pkg/vcon"
)

func newKeygenCmd() *cobra.Command {
	var (
		alg     string
		keyPath string
		pubPath string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a PEM signing key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := jws.GenerateKey(alg)
			if err != nil {
				return err
			}
			privPEM, err := jws.EncodePrivateKeyPEM(key)
			if err != nil {
				return err
			}
			pubPEM, err := jws.EncodePublicKeyPEM(key.Public())
			if err != nil {
				return err
			}
			kid, err := jws.KeyID(key.Public())
			if err != nil {
				return err
			}
			if err := os.WriteFile(keyPath, privPEM, 0o600); err != nil {
				return err
			}
			if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s (kid %s)\n", keyPath, pubPath, kid)
			return nil
		},
	}
	cmd.Flags().StringVar(&alg, "alg", "ES256", "key algorithm: RS256, ES256 or EdDSA")
	cmd.Flags().StringVar(&keyPath, "key", "vcon-key.pem", "private key output file")
	cmd.Flags().StringVar(&pubPath, "pub", "vcon-pub.pem", "public key output file")
	return cmd
}

func newSignCmd() *cobra.Command {
	var (
		keyPath string
		kid     string
		output  string
		indent  bool
	)
	cmd := &cobra.Command{
		Use:   "sign FILE",
		Short: "Sign a vCon with a PEM private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(keyPath)
			if err != nil {
				return err
			}
			key, err := jws.ParsePrivateKeyPEM(data)
			if err != nil {
				return err
			}
			v, err := readVcon(args[0])
			if err != nil {
				return err
			}
			if kid == "" {
				if kid, err = jws.KeyID(key.Public()); err != nil {
					return err
				}
			}
			if err := v.Sign(key, vcon.WithKeyID(kid)); err != nil {
				return err
			}
			cmdLogger(cmd).Debug("signed vcon", "uuid", v.UUID(), "kid", kid)
			return writeVcon(cmd.OutOrStdout(), output, v, indent)
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "PEM private key")
	cmd.Flags().StringVar(&kid, "kid", "", "key id recorded in the signature (default: key thumbprint)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&indent, "indent", false, "indent the output")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

// errInvalidSignature is returned by verify so the process exits non-zero.
var errInvalidSignature = errors.New("signature is not valid")

func newVerifyCmd() *cobra.Command {
	var pubPath string
	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Verify a signed vCon with a PEM public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(pubPath)
			if err != nil {
				return err
			}
			pub, err := jws.ParsePublicKeyPEM(data)
			if err != nil {
				return err
			}
			v, err := readVcon(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !v.IsSigned() {
				fmt.Fprintf(out, "%s: unsigned\n", args[0])
				return errInvalidSignature
			}
			if !v.Verify(pub) {
				fmt.Fprintf(out, "%s: invalid\n", args[0])
				return errInvalidSignature
			}
			kid, _ := v.KeyID()
			fmt.Fprintf(out, "%s: valid (kid %s)\n", args[0], kid)
			return nil
		},
	}
	cmd.Flags().StringVar(&pubPath, "pub", "", "PEM public key")
	_ = cmd.MarkFlagRequired("pub")
	return cmd
}
