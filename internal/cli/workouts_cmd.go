package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/healthprofile/internal/display"
	"example.com/healthprofile/internal/domain"
)

func newWorkoutsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workouts",
		Short: "List and record workouts",
	}

	cmd.AddCommand(
		newWorkoutsListCmd(app),
		newWorkoutsAddCmd(app),
	)

	return cmd
}

func newWorkoutsListCmd(app *App) *cobra.Command {
	var activity, locale string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workouts of one activity, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseActivityKind(activity)
			if err != nil {
				return err
			}
			workouts, err := app.gateway().ReadAllWorkouts(cmd.Context(), kind)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(workouts) == 0 {
				fmt.Fprintf(out, "No %s workouts.\n", kind)
				return nil
			}
			if locale == "" {
				locale = app.Locale
			}
			f := display.NewFormatter(locale)
			for _, w := range workouts {
				fmt.Fprintf(out, "%s  %-8s  %-8s  %-10s  %s\n",
					w.StartAt.UTC().Format("2006-01-02 15:04"),
					w.Activity,
					w.Duration().Round(time.Second),
					f.Distance(w.TotalDistance),
					f.Energy(w.TotalEnergy),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&activity, "activity", string(domain.ActivityRunning), "Activity kind")
	cmd.Flags().StringVar(&locale, "locale", "", "Display locale, e.g. en-US")

	return cmd
}

func newWorkoutsAddCmd(app *App) *cobra.Command {
	var activity, startFlag, distanceUnit string
	var duration time.Duration
	var distance, energy float64

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a finished workout with its distance and energy",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseActivityKind(activity)
			if err != nil {
				return err
			}
			unit, err := domain.ParseUnit(distanceUnit)
			if err != nil {
				return err
			}
			end := app.now()
			if startFlag != "" {
				start, err := time.Parse(time.RFC3339, startFlag)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				end = start.Add(duration)
			}

			workout, err := app.gateway().SaveWorkout(cmd.Context(), domain.WorkoutInput{
				Activity: kind,
				StartAt:  end.Add(-duration),
				EndAt:    end,
				Distance: domain.NewQuantity(distance, unit),
				Energy:   domain.NewQuantity(energy, domain.UnitKilocalorie),
			})
			if workout.ID == "" {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Saved %s workout %s\n", workout.Activity, workout.ID)
			var linkErr *domain.LinkedSampleError
			if errors.As(err, &linkErr) {
				fmt.Fprintf(out, "Warning: %v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&activity, "activity", string(domain.ActivityRunning), "Activity kind")
	cmd.Flags().StringVar(&startFlag, "start", "", "Start time (RFC 3339); defaults to now minus duration")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Workout duration, e.g. 30m")
	cmd.Flags().Float64Var(&distance, "distance", 0, "Distance covered")
	cmd.Flags().StringVar(&distanceUnit, "distance-unit", string(domain.UnitKilometer), "Distance unit")
	cmd.Flags().Float64Var(&energy, "energy", 0, "Active energy burned in kcal")
	_ = cmd.MarkFlagRequired("duration")

	return cmd
}
