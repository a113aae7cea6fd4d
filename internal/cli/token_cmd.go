package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/healthprofile/internal/auth"
)

func newTokenCmd(app *App) *cobra.Command {
	var subject, tenant, scopes string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for calling the API locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Auth.Secret == "" {
				return fmt.Errorf("JWT_SECRET is not configured")
			}
			if subject == "" {
				subject = app.Owner.UserID
			}
			if tenant == "" {
				tenant = app.Owner.TenantID
			}
			token, err := auth.SignToken(app.Auth, subject, tenant, strings.Split(scopes, ","), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Token subject (user ID)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&scopes, "scopes", auth.ScopeHealthRead+","+auth.ScopeHealthWrite, "Comma separated scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	return cmd
}
