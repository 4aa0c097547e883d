package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/daemon"
)

func newStartCmd() *cobra.Command {
	var (
		foreground bool
		pprofAddr  string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the taskhub server",
		Long: "Start the taskhub HTTP server. Settings come from <home>/config.yaml and\n" +
			"TASKHUB_* environment variables (e.g. TASKHUB_SERVER_ADDR, TASKHUB_DATABASE_DRIVER).",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			if err := applyConfigLogFormat(cmd, cfg); err != nil {
				return err
			}
			opts := daemon.StartOptions{Home: home, Config: cfg, PprofAddr: pprofAddr}

			if foreground {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting taskhub in foreground on http://%s\n", cfg.Addr)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "taskhub started (pid %d)\n", pid)
			if st, _ := daemon.Status(cmd.Context(), home); st.Running {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API: http://%s\n", st.Addr)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logs: %s\n", daemon.LogPath(home))
			return nil
		},
	}

	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")

	return cmd
}
