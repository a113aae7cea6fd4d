package api

import (
	"errors"
	"fmt"
	"time"

	"example.com/healthprofile/internal/display"
	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/profile"
)

// AuthorizationRequest lists the record types to ask access for. An empty
// body asks for the profile screen's default set.
type AuthorizationRequest struct {
	Read  []string `json:"read"`
	Write []string `json:"write"`
}

func (r AuthorizationRequest) toDomain() (domain.AuthorizationRequest, error) {
	if len(r.Read) == 0 && len(r.Write) == 0 {
		return domain.DefaultAuthorizationRequest(), nil
	}
	read, err := parseRecordTypes(r.Read)
	if err != nil {
		return domain.AuthorizationRequest{}, err
	}
	write, err := parseRecordTypes(r.Write)
	if err != nil {
		return domain.AuthorizationRequest{}, err
	}
	return domain.NewAuthorizationRequest(read, write), nil
}

func parseRecordTypes(values []string) ([]domain.RecordType, error) {
	out := make([]domain.RecordType, 0, len(values))
	for _, v := range values {
		rt, err := domain.ParseRecordType(v)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, nil
}

// AuthorizationResponse echoes what was requested. It does not say what was
// granted; denied reads look the same as missing data.
type AuthorizationResponse struct {
	Read  []string `json:"read"`
	Write []string `json:"write"`
}

func recordTypeNames(types []domain.RecordType) []string {
	out := make([]string, 0, len(types))
	for _, rt := range types {
		out = append(out, string(rt))
	}
	return out
}

// ProfileResponse is the rendered profile screen.
type ProfileResponse struct {
	Locale        string   `json:"locale"`
	Age           string   `json:"age"`
	BiologicalSex string   `json:"biological_sex"`
	BloodType     string   `json:"blood_type"`
	Weight        string   `json:"weight"`
	Height        string   `json:"height"`
	BMI           string   `json:"bmi"`
	BMIValue      *float64 `json:"bmi_value,omitempty"`
	State         string   `json:"convergence"`
	Warnings      []string `json:"warnings,omitempty"`
}

func toProfileResponse(f *display.Formatter, snap profile.Snapshot) ProfileResponse {
	view := f.Render(snap)
	resp := ProfileResponse{
		Locale:        f.Locale().String(),
		Age:           view.Age,
		BiologicalSex: view.BiologicalSex,
		BloodType:     view.BloodType,
		Weight:        view.Weight,
		Height:        view.Height,
		BMI:           view.BMI,
		BMIValue:      view.BMIValue,
		State:         snap.State.String(),
	}
	if snap.WeightErr != nil {
		resp.Warnings = append(resp.Warnings, "weight: "+snap.WeightErr.Error())
	}
	if snap.HeightErr != nil {
		resp.Warnings = append(resp.Warnings, "height: "+snap.HeightErr.Error())
	}
	return resp
}

// CharacteristicsRequest carries characteristics entered by the owner.
// Omitted fields keep their stored value.
type CharacteristicsRequest struct {
	DateOfBirth   *string `json:"date_of_birth"`
	BiologicalSex *string `json:"biological_sex"`
	BloodType     *string `json:"blood_type"`
}

func (r CharacteristicsRequest) toDomain() (domain.Characteristics, error) {
	var c domain.Characteristics
	if r.DateOfBirth != nil {
		dob, err := time.Parse(time.DateOnly, *r.DateOfBirth)
		if err != nil {
			return c, fmt.Errorf("date_of_birth must be YYYY-MM-DD")
		}
		c.DateOfBirth = domain.Some(dob)
	}
	if r.BiologicalSex != nil {
		sex, err := domain.ParseBiologicalSex(*r.BiologicalSex)
		if err != nil {
			return c, err
		}
		c.BiologicalSex = domain.Some(sex)
	}
	if r.BloodType != nil {
		blood, err := domain.ParseBloodType(*r.BloodType)
		if err != nil {
			return c, err
		}
		c.BloodType = domain.Some(blood)
	}
	if !c.DateOfBirth.Present() && !c.BiologicalSex.Present() && !c.BloodType.Present() {
		return c, errors.New("at least one characteristic is required")
	}
	return c, nil
}

// SampleRequest records one measurement. A missing At means now.
type SampleRequest struct {
	RecordType string    `json:"record_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	At         time.Time `json:"at"`
}

func (r SampleRequest) toDomain() (domain.RecordType, domain.Quantity, error) {
	rt, err := domain.ParseRecordType(r.RecordType)
	if err != nil {
		return "", domain.Quantity{}, err
	}
	unit, err := domain.ParseUnit(r.Unit)
	if err != nil {
		return "", domain.Quantity{}, err
	}
	if r.Value < 0 {
		return "", domain.Quantity{}, errors.New("value must not be negative")
	}
	return rt, domain.NewQuantity(r.Value, unit), nil
}

// SampleView is a stored sample as returned to clients.
type SampleView struct {
	ID         string    `json:"id"`
	RecordType string    `json:"record_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	WorkoutID  string    `json:"workout_id,omitempty"`
	Source     string    `json:"source"`
}

func toSampleView(s domain.Sample) SampleView {
	return SampleView{
		ID:         s.ID,
		RecordType: string(s.Type),
		Value:      s.Quantity.Value,
		Unit:       string(s.Quantity.Unit),
		StartAt:    s.StartAt,
		EndAt:      s.EndAt,
		WorkoutID:  s.WorkoutID,
		Source:     string(s.Source),
	}
}

// CreateWorkoutRequest describes a finished workout.
type CreateWorkoutRequest struct {
	Activity     string    `json:"activity"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	Distance     float64   `json:"distance"`
	DistanceUnit string    `json:"distance_unit"`
	Energy       float64   `json:"energy"`
	EnergyUnit   string    `json:"energy_unit"`
}

func (r CreateWorkoutRequest) toDomain() (domain.WorkoutInput, error) {
	kind, err := domain.ParseActivityKind(r.Activity)
	if err != nil {
		return domain.WorkoutInput{}, err
	}
	distanceUnit := domain.UnitMeter
	if r.DistanceUnit != "" {
		if distanceUnit, err = domain.ParseUnit(r.DistanceUnit); err != nil {
			return domain.WorkoutInput{}, err
		}
	}
	energyUnit := domain.UnitKilocalorie
	if r.EnergyUnit != "" {
		if energyUnit, err = domain.ParseUnit(r.EnergyUnit); err != nil {
			return domain.WorkoutInput{}, err
		}
	}
	in := domain.WorkoutInput{
		Activity: kind,
		StartAt:  r.StartAt,
		EndAt:    r.EndAt,
		Distance: domain.NewQuantity(r.Distance, distanceUnit),
		Energy:   domain.NewQuantity(r.Energy, energyUnit),
	}
	if err := in.Validate(); err != nil {
		return domain.WorkoutInput{}, err
	}
	return in, nil
}

// WorkoutView is a workout rendered for the caller's locale.
type WorkoutView struct {
	ID            string       `json:"id"`
	Activity      string       `json:"activity"`
	StartAt       time.Time    `json:"start_at"`
	EndAt         time.Time    `json:"end_at"`
	DurationSec   float64      `json:"duration_sec"`
	Distance      string       `json:"distance"`
	Energy        string       `json:"energy"`
	LinkedSamples []SampleView `json:"linked_samples,omitempty"`
}

func toWorkoutView(f *display.Formatter, w domain.Workout) WorkoutView {
	view := WorkoutView{
		ID:          w.ID,
		Activity:    string(w.Activity),
		StartAt:     w.StartAt,
		EndAt:       w.EndAt,
		DurationSec: w.Duration().Seconds(),
		Distance:    f.Distance(w.TotalDistance),
		Energy:      f.Energy(w.TotalEnergy),
	}
	for _, s := range w.LinkedSamples {
		view.LinkedSamples = append(view.LinkedSamples, toSampleView(s))
	}
	return view
}

// ListWorkoutsResponse is one page of workouts.
type ListWorkoutsResponse struct {
	Items      []WorkoutView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// LinkedSampleErrorView reports a sample that could not be attached to a
// saved workout.
type LinkedSampleErrorView struct {
	RecordType string `json:"record_type"`
	Detail     string `json:"detail"`
}

// CreateWorkoutResponse returns the saved workout. LinkedSampleErrors lists
// constituent samples that failed; the workout itself is persisted.
type CreateWorkoutResponse struct {
	Workout            WorkoutView             `json:"workout"`
	LinkedSampleErrors []LinkedSampleErrorView `json:"linked_sample_errors,omitempty"`
}
