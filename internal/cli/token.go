package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/identity"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <member-id>",
		Short: "Issue a bearer token for a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set (see `taskhub secret generate`)")
			}
			m, err := identity.LoadMember(home, args[0])
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("%w: %s", identity.ErrUnknownMember, args[0])
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL
			}
			tok, err := identity.IssueToken([]byte(cfg.JWTSecret), *m, ttl, time.Now())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: auth.token_ttl)")
	return cmd
}
