package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/daemon"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/identity"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

func newInitCmd() *cobra.Command {
	var adminID, adminName string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the home directory, default config and database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			out := cmd.OutOrStdout()

			wrote, err := config.WriteDefault(home)
			if err != nil {
				return err
			}
			if wrote {
				_, _ = fmt.Fprintf(out, "Wrote %s\n", config.Path(home))
			}
			for _, d := range []string{filepath.Join(home, "protected"), identity.MembersDir(home)} {
				if err := os.MkdirAll(d, 0o755); err != nil {
					return err
				}
			}

			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			st, err := daemon.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			_ = st.Close()
			_, _ = fmt.Fprintf(out, "Database ready (%s)\n", cfg.DatabaseDriver)

			if adminID != "" {
				m := models.Member{ID: adminID, Name: adminName, Role: models.RoleAdmin}
				if m.Name == "" {
					m.Name = adminID
				}
				if err := identity.SaveMember(home, m); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Added admin %q\n", adminID)
			}
			_, _ = fmt.Fprintf(out, "Initialized %s\n", home)
			return nil
		},
	}
	cmd.Flags().StringVar(&adminID, "admin", "", "Also create an admin member with this ID")
	cmd.Flags().StringVar(&adminName, "admin-name", "", "Display name for --admin")
	return cmd
}
