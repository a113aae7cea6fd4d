package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"example.com/healthprofile/internal/display"
	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/profile"
)

// progressDisplay prints each field as its fetch lands.
type progressDisplay struct {
	out io.Writer
	f   *display.Formatter
}

func (d progressDisplay) ShowProfile(p domain.Profile) {
	fmt.Fprintf(d.out, "  loaded characteristics (age %s)\n", d.f.Age(p.Age))
}

func (d progressDisplay) ShowWeight(s domain.Optional[domain.Sample]) {
	fmt.Fprintf(d.out, "  loaded weight %s\n", d.f.Weight(s))
}

func (d progressDisplay) ShowHeight(s domain.Optional[domain.Sample]) {
	fmt.Fprintf(d.out, "  loaded height %s\n", d.f.Height(s))
}

func (d progressDisplay) ShowBMI(bmi domain.Optional[float64]) {
	fmt.Fprintf(d.out, "  computed BMI %s\n", d.f.BMI(bmi))
}

func newProfileCmd(app *App) *cobra.Command {
	var saveBMI, verbose bool
	var locale string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show age, sex, blood type, weight, height and BMI",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if locale == "" {
				locale = app.Locale
			}
			f := display.NewFormatter(locale)
			out := cmd.OutOrStdout()

			opts := []profile.Option{profile.WithLogger(app.logger()), profile.WithClock(app.now)}
			if verbose {
				opts = append(opts, profile.WithDisplay(progressDisplay{out: cmd.ErrOrStderr(), f: f}))
			}
			agg := profile.New(app.gateway(), opts...)
			defer agg.Close()

			<-agg.Refresh(ctx)
			view := f.Render(agg.Snapshot())

			fmt.Fprintf(out, "Age:            %s\n", view.Age)
			fmt.Fprintf(out, "Biological sex: %s\n", view.BiologicalSex)
			fmt.Fprintf(out, "Blood type:     %s\n", view.BloodType)
			fmt.Fprintf(out, "Weight:         %s\n", view.Weight)
			fmt.Fprintf(out, "Height:         %s\n", view.Height)
			fmt.Fprintf(out, "BMI:            %s\n", view.BMI)

			if !saveBMI {
				return nil
			}
			err := agg.SaveCurrentBMI(ctx)
			switch {
			case errors.Is(err, domain.ErrNothingToSave):
				fmt.Fprintln(out, "There is no BMI data to save.")
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintf(out, "Saved BMI %s.\n", view.BMI)
			return nil
		},
	}

	cmd.Flags().BoolVar(&saveBMI, "save-bmi", false, "Save the computed BMI as a new sample")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print each value as it arrives")
	cmd.Flags().StringVar(&locale, "locale", "", "Display locale, e.g. en-US")

	return cmd
}
