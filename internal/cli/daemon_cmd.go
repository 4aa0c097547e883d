package cli

import (
	"github.com/spf13/cobra"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/daemon"
)

func newDaemonCmd() *cobra.Command {
	var pprofAddr string

	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			if err := applyConfigLogFormat(cmd, cfg); err != nil {
				return err
			}
			return daemon.StartForeground(cmd.Context(), daemon.StartOptions{
				Home:      home,
				Config:    cfg,
				PprofAddr: pprofAddr,
			})
		},
	}

	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")

	return cmd
}
