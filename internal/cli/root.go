package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"
)

func NewRootCmd(version string) *cobra.Command {
	var (
		homeOverride string
		envFiles     []string
		logFormat    string
	)

	cmd := &cobra.Command{
		Use:          "taskhub",
		Short:        "taskhub: task assignment, negotiation and submission workflow server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Env files first so TASKHUB_HOME and TASKHUB_* overrides apply.
			if len(envFiles) > 0 {
				if err := godotenv.Load(envFiles...); err != nil {
					return fmt.Errorf("load env file: %w", err)
				}
			}
			home, err := config.ResolveHome(homeOverride)
			if err != nil {
				return err
			}
			if err := setupLogging(cmd, logFormat); err != nil {
				return err
			}
			cmd.SetContext(config.WithHome(cmd.Context(), home))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&homeOverride, "home", "", "Override taskhub home directory (default: ~/.taskhub, env: TASKHUB_HOME)")
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Load env vars from dotenv file(s) before reading config")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (default: log.format from config, env: TASKHUB_LOG_FORMAT)")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())

	cmd.AddCommand(newMemberCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newSecretCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newSubmissionCmd())
	cmd.AddCommand(newNukeCmd())

	// Hidden internal subcommand used by `taskhub start` for background mode.
	cmd.AddCommand(newDaemonCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}

// setupLogging installs the default slog handler on stderr. An empty format
// falls back to TASKHUB_LOG_FORMAT, then text.
func setupLogging(cmd *cobra.Command, format string) error {
	if format == "" {
		format = os.Getenv("TASKHUB_LOG_FORMAT")
	}
	var h slog.Handler
	switch format {
	case "", "text":
		h = slog.NewTextHandler(cmd.ErrOrStderr(), nil)
	case "json":
		h = slog.NewJSONHandler(cmd.ErrOrStderr(), nil)
	default:
		return fmt.Errorf("--log-format: unsupported %q", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// applyConfigLogFormat switches to cfg's log format unless --log-format or
// TASKHUB_LOG_FORMAT chose one.
func applyConfigLogFormat(cmd *cobra.Command, cfg *config.Config) error {
	if f := cmd.Flag("log-format"); (f != nil && f.Changed) || os.Getenv("TASKHUB_LOG_FORMAT") != "" {
		return nil
	}
	return setupLogging(cmd, cfg.LogFormat)
}
