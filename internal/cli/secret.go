package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the JWT signing secret that turns on bearer token auth",
	}
	cmd.AddCommand(newSecretGenerateCmd())
	return cmd
}

func newSecretGenerateCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random JWT secret and print usage instructions",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				return fmt.Errorf("generate secret: %w", err)
			}
			key := hex.EncodeToString(b)

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Generated JWT secret (save it somewhere safe):")
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, "  "+key)
			_, _ = fmt.Fprintln(out)

			if envFile != "" {
				line := "TASKHUB_AUTH_JWT_SECRET=" + key + "\n"
				f, err := os.OpenFile(envFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("write %s: %w", envFile, err)
				}
				if _, err := f.WriteString(line); err != nil {
					_ = f.Close()
					return fmt.Errorf("write %s: %w", envFile, err)
				}
				if err := f.Close(); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Appended TASKHUB_AUTH_JWT_SECRET to %s\n", envFile)
				_, _ = fmt.Fprintln(out, "Start the server with: taskhub --env-file "+envFile+" start --foreground")
			} else {
				_, _ = fmt.Fprintln(out, "Use it:")
				_, _ = fmt.Fprintln(out, "  1. On the server: export TASKHUB_AUTH_JWT_SECRET="+key)
				_, _ = fmt.Fprintln(out, "     Or set auth.jwt_secret in config.yaml")
				_, _ = fmt.Fprintln(out, "  2. Issue tokens with `taskhub token <member-id>`; clients send Authorization: Bearer <token>")
			}
			_, _ = fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "Append TASKHUB_AUTH_JWT_SECRET to this file (e.g. .env)")
	return cmd
}
