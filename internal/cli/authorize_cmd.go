package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"example.com/healthprofile/internal/domain"
)

func newAuthorizeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Grant the profile screen's default read and write access",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.DefaultAuthorizationRequest()
			if err := app.gateway().Authorize(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requested read: %s\n", joinTypes(req.Read()))
			fmt.Fprintf(cmd.OutOrStdout(), "Requested write: %s\n", joinTypes(req.Write()))
			return nil
		},
	}
}

func joinTypes(types []domain.RecordType) string {
	names := make([]string, 0, len(types))
	for _, rt := range types {
		names = append(names, string(rt))
	}
	return strings.Join(names, ", ")
}
