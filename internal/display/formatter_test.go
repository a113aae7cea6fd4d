package display

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/profile"
)

func sample(v float64, u domain.Unit) domain.Optional[domain.Sample] {
	return domain.Some(domain.Sample{Quantity: domain.NewQuantity(v, u)})
}

func TestMetricFormatting(t *testing.T) {
	f := NewFormatter("en")
	require.Equal(t, "70.0 kg", f.Weight(sample(70, domain.UnitKilogram)))
	require.Equal(t, "1.75 m", f.Height(sample(175, domain.UnitCentimeter)))
	require.Equal(t, "5.00 km", f.Distance(domain.NewQuantity(5000, domain.UnitMeter)))
	require.Equal(t, "350 kcal", f.Energy(domain.NewQuantity(350, domain.UnitKilocalorie)))
}

func TestImperialFormatting(t *testing.T) {
	f := NewFormatter("en-US")
	require.Equal(t, "154.3 lb", f.Weight(sample(70, domain.UnitKilogram)))
	require.Equal(t, "5 ft 9 in", f.Height(sample(1.75, domain.UnitMeter)))
	require.Equal(t, "3.11 mi", f.Distance(domain.NewQuantity(5, domain.UnitKilometer)))
}

func TestUnknownValues(t *testing.T) {
	f := NewFormatter("en-GB")
	none := domain.None[domain.Sample]()
	require.Equal(t, domain.UnknownLabel, f.Weight(none))
	require.Equal(t, domain.UnknownLabel, f.Height(none))
	require.Equal(t, domain.UnknownLabel, f.Age(domain.None[int]()))
	require.Equal(t, domain.UnknownLabel, f.BiologicalSex(domain.None[domain.BiologicalSex]()))
	require.Equal(t, domain.UnknownLabel, f.BloodType(domain.None[domain.BloodType]()))
	require.Equal(t, domain.UnknownLabel, f.BMI(domain.None[float64]()))
	require.Equal(t, domain.UnknownLabel, f.Weight(sample(1.75, domain.UnitMeter)))
}

func TestForAcceptLanguage(t *testing.T) {
	require.Equal(t, "en-US", ForAcceptLanguage("en-US,en;q=0.9", "en").Locale().String())
	require.Equal(t, "fr", ForAcceptLanguage("", "fr").Locale().String())
	require.Equal(t, "en", ForAcceptLanguage("", "not a locale!").Locale().String())
}

func TestRender(t *testing.T) {
	f := NewFormatter("en")
	view := f.Render(profile.Snapshot{
		Profile: domain.Profile{
			Age:           domain.Some(33),
			BiologicalSex: domain.Some(domain.SexOther),
			BloodType:     domain.Some(domain.BloodBPositive),
		},
		Weight: sample(70, domain.UnitKilogram),
		Height: sample(1.75, domain.UnitMeter),
		BMI:    domain.CalculateBMI(70, 1.75),
	})

	require.Equal(t, "33", view.Age)
	require.Equal(t, "Other", view.BiologicalSex)
	require.Equal(t, "B+", view.BloodType)
	require.Equal(t, "22.86", view.BMI)
	require.NotNil(t, view.BMIValue)
}
