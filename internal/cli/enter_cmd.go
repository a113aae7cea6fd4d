package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"example.com/healthprofile/internal/domain"
)

func newEnterCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enter",
		Short: "Enter measurements and characteristics by hand",
	}

	cmd.AddCommand(
		newEnterQuantityCmd(app, "weight", domain.RecordBodyMass, domain.UnitKilogram),
		newEnterQuantityCmd(app, "height", domain.RecordHeight, domain.UnitMeter),
		newEnterBirthDateCmd(app),
		newEnterSexCmd(app),
		newEnterBloodTypeCmd(app),
	)

	return cmd
}

func newEnterQuantityCmd(app *App, use string, rt domain.RecordType, defaultUnit domain.Unit) *cobra.Command {
	var unitFlag, atFlag string

	cmd := &cobra.Command{
		Use:   use + " <value>",
		Short: fmt.Sprintf("Record a %s measurement", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", use, args[0], err)
			}
			unit, err := domain.ParseUnit(unitFlag)
			if err != nil {
				return err
			}
			var at time.Time
			if atFlag != "" {
				if at, err = time.Parse(time.RFC3339, atFlag); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			sample, err := app.gateway().EnterSample(cmd.Context(), rt, domain.NewQuantity(value, unit), at)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s (%s)\n", use, sample.Quantity, sample.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&unitFlag, "unit", string(defaultUnit), "Unit of the value")
	cmd.Flags().StringVar(&atFlag, "at", "", "Measurement time (RFC 3339), defaults to now")

	return cmd
}

func newEnterBirthDateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "birth-date <YYYY-MM-DD>",
		Short: "Set the date of birth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dob, err := time.Parse(time.DateOnly, args[0])
			if err != nil {
				return fmt.Errorf("invalid birth date %q: %w", args[0], err)
			}
			if err := app.gateway().EnterCharacteristics(cmd.Context(), domain.Characteristics{DateOfBirth: domain.Some(dob)}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Date of birth set to %s\n", dob.Format(time.DateOnly))
			return nil
		},
	}
}

func newEnterSexCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sex <female|male|other|unknown>",
		Short: "Set the biological sex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sex, err := domain.ParseBiologicalSex(args[0])
			if err != nil {
				return err
			}
			if err := app.gateway().EnterCharacteristics(cmd.Context(), domain.Characteristics{BiologicalSex: domain.Some(sex)}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Biological sex set to %s\n", sex.Label())
			return nil
		},
	}
}

func newEnterBloodTypeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "blood-type <A+|A-|B+|B-|AB+|AB-|O+|O-|unknown>",
		Short: "Set the blood type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blood, err := domain.ParseBloodType(args[0])
			if err != nil {
				return err
			}
			if err := app.gateway().EnterCharacteristics(cmd.Context(), domain.Characteristics{BloodType: domain.Some(blood)}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Blood type set to %s\n", blood.Label())
			return nil
		},
	}
}
