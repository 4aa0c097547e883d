package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/blob"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/daemon"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/identity"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify config, database, file storage and members",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())

			var problems []string

			cfg, err := config.Load(home)
			if err != nil {
				problems = append(problems, fmt.Sprintf("config: %v", err))
			} else {
				if st, err := daemon.OpenStore(cmd.Context(), cfg); err != nil {
					problems = append(problems, fmt.Sprintf("database (%s): %v", cfg.DatabaseDriver, err))
				} else {
					_ = st.Close()
				}
				if _, err := blob.NewStorage(blob.GetConfig(cfg.Viper)); err != nil {
					problems = append(problems, fmt.Sprintf("file storage: %v", err))
				}
			}

			dir, err := identity.Load(home)
			if err != nil {
				problems = append(problems, fmt.Sprintf("members: %v", err))
			} else {
				admins := 0
				for _, m := range dir.List() {
					if m.Role == models.RoleAdmin {
						admins++
					}
				}
				if admins == 0 {
					problems = append(problems, "members: no admin (run `taskhub member add --role admin`)")
				}
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}
