// Package display turns profile state into the strings a screen shows.
package display

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/profile"
)

// Regions that use pounds and feet for person measurements.
var imperialRegions = map[string]struct{}{
	"US": {},
	"LR": {},
	"MM": {},
}

// Formatter renders values for one locale.
type Formatter struct {
	tag      language.Tag
	printer  *message.Printer
	imperial bool
}

// NewFormatter builds a Formatter for a BCP 47 locale such as "en-US".
// Unparseable locales fall back to English with metric units.
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	// Only an explicit region switches units; "en" alone stays metric.
	region, confidence := tag.Region()
	_, imperial := imperialRegions[region.String()]
	imperial = imperial && confidence == language.Exact
	return &Formatter{
		tag:      tag,
		printer:  message.NewPrinter(tag),
		imperial: imperial,
	}
}

// ForAcceptLanguage picks the caller's preferred locale from an
// Accept-Language header, falling back to fallback when the header is empty
// or unparseable.
func ForAcceptLanguage(header, fallback string) *Formatter {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return NewFormatter(fallback)
	}
	return NewFormatter(tags[0].String())
}

// Locale returns the tag the formatter renders for.
func (f *Formatter) Locale() language.Tag {
	return f.tag
}

// Age renders whole years or the unknown label.
func (f *Formatter) Age(age domain.Optional[int]) string {
	v, ok := age.Get()
	if !ok {
		return domain.UnknownLabel
	}
	return strconv.Itoa(v)
}

// BiologicalSex renders the sex label, Unknown when absent.
func (f *Formatter) BiologicalSex(sex domain.Optional[domain.BiologicalSex]) string {
	return sex.OrElse(domain.SexUnknown).Label()
}

// BloodType renders the blood type label, Unknown when absent.
func (f *Formatter) BloodType(blood domain.Optional[domain.BloodType]) string {
	return blood.OrElse(domain.BloodUnknown).Label()
}

// Weight renders a body-mass sample for person use.
func (f *Formatter) Weight(sample domain.Optional[domain.Sample]) string {
	s, ok := sample.Get()
	if !ok {
		return domain.UnknownLabel
	}
	if f.imperial {
		lb, err := s.Quantity.In(domain.UnitPound)
		if err != nil {
			return domain.UnknownLabel
		}
		return f.printer.Sprintf("%.1f lb", lb)
	}
	kg, err := s.Quantity.In(domain.UnitKilogram)
	if err != nil {
		return domain.UnknownLabel
	}
	return f.printer.Sprintf("%.1f kg", kg)
}

// Height renders a height sample for person use.
func (f *Formatter) Height(sample domain.Optional[domain.Sample]) string {
	s, ok := sample.Get()
	if !ok {
		return domain.UnknownLabel
	}
	if f.imperial {
		inches, err := s.Quantity.In(domain.UnitInch)
		if err != nil {
			return domain.UnknownLabel
		}
		total := int(math.Round(inches))
		return f.printer.Sprintf("%d ft %d in", total/12, total%12)
	}
	m, err := s.Quantity.In(domain.UnitMeter)
	if err != nil {
		return domain.UnknownLabel
	}
	return f.printer.Sprintf("%.2f m", m)
}

// BMI renders the BMI with two decimals.
func (f *Formatter) BMI(bmi domain.Optional[float64]) string {
	return domain.FormatBMI(bmi)
}

// Distance renders a workout distance in the locale's long-distance unit.
func (f *Formatter) Distance(q domain.Quantity) string {
	unit := domain.UnitKilometer
	if f.imperial {
		unit = domain.UnitMile
	}
	v, err := q.In(unit)
	if err != nil {
		return domain.UnknownLabel
	}
	return f.printer.Sprintf("%.2f %s", v, unit)
}

// Energy renders energy in kilocalories.
func (f *Formatter) Energy(q domain.Quantity) string {
	v, err := q.In(domain.UnitKilocalorie)
	if err != nil {
		return domain.UnknownLabel
	}
	return f.printer.Sprintf("%.0f kcal", v)
}

// ProfileView is the rendered profile screen.
type ProfileView struct {
	Age           string
	BiologicalSex string
	BloodType     string
	Weight        string
	Height        string
	BMI           string
	BMIValue      *float64
}

// Render formats a snapshot.
func (f *Formatter) Render(snap profile.Snapshot) ProfileView {
	return ProfileView{
		Age:           f.Age(snap.Profile.Age),
		BiologicalSex: f.BiologicalSex(snap.Profile.BiologicalSex),
		BloodType:     f.BloodType(snap.Profile.BloodType),
		Weight:        f.Weight(snap.Weight),
		Height:        f.Height(snap.Height),
		BMI:           f.BMI(snap.BMI),
		BMIValue:      snap.BMI.Ptr(),
	}
}
