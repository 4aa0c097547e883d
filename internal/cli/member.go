package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/identity"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage members (files under <home>/members)",
	}
	cmd.AddCommand(newMemberAddCmd())
	cmd.AddCommand(newMemberListCmd())
	return cmd
}

func newMemberAddCmd() *cobra.Command {
	var m models.Member
	var role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if m.ID == "" {
				return errors.New("--id is required")
			}
			m.Role = models.Role(role)
			if m.Name == "" {
				m.Name = m.ID
			}
			home := config.MustHomeFrom(cmd.Context())
			if err := identity.SaveMember(home, m); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved member %q (%s) to %s\n", m.ID, m.Role, identity.MemberPath(home, m.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&m.ID, "id", "", "Member ID")
	cmd.Flags().StringVar(&m.Name, "name", "", "Display name (default: id)")
	cmd.Flags().StringVar(&m.Email, "email", "", "Email")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "Role: admin, team_leader or user")
	cmd.Flags().StringVar(&m.TeamID, "team", "", "Team ID (required for team_leader)")
	cmd.Flags().StringVar(&m.Department, "department", "", "Department")
	return cmd
}

func newMemberListCmd() *cobra.Command {
	var team string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := identity.Load(config.MustHomeFrom(cmd.Context()))
			if err != nil {
				return err
			}
			members := dir.List()
			if team != "" {
				members = dir.TeamMembers(team)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tROLE\tTEAM")
			for _, m := range members {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Role, m.TeamID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "Only members of this team")
	return cmd
}
