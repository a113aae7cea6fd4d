package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/healthprofile/internal/domain"
)

func newGrantsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "Revoke or restore access to a record type",
	}

	cmd.AddCommand(
		newGrantsSetCmd(app, "allow", domain.AuthorizationGranted),
		newGrantsSetCmd(app, "deny", domain.AuthorizationDenied),
	)

	return cmd
}

func newGrantsSetCmd(app *App, use string, status domain.AuthorizationStatus) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   use + " <record-type>",
		Short: fmt.Sprintf("Mark a record type %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := domain.ParseRecordType(args[0])
			if err != nil {
				return err
			}
			access := domain.AccessMode(mode)
			if access != domain.AccessRead && access != domain.AccessWrite {
				return fmt.Errorf("--mode must be read or write, got %q", mode)
			}
			if err := app.gateway().SetAccess(cmd.Context(), rt, access, status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s access %s\n", rt, access, status)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(domain.AccessRead), "Access mode: read or write")

	return cmd
}
