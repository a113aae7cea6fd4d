package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnknownLabel is shown wherever a value is missing or not authorized.
const UnknownLabel = "Unknown"

// BiologicalSex is the stored biological-sex characteristic.
type BiologicalSex int

const (
	SexUnknown BiologicalSex = iota
	SexFemale
	SexMale
	SexOther
)

// Label maps every value to its display string.
func (s BiologicalSex) Label() string {
	switch s {
	case SexFemale:
		return "Female"
	case SexMale:
		return "Male"
	case SexOther:
		return "Other"
	default:
		return UnknownLabel
	}
}

// Code is the lowercase identifier used in storage and on the wire.
func (s BiologicalSex) Code() string {
	switch s {
	case SexFemale:
		return "female"
	case SexMale:
		return "male"
	case SexOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseBiologicalSex accepts codes or labels.
func ParseBiologicalSex(value string) (BiologicalSex, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "unknown", "":
		return SexUnknown, nil
	case "female", "f":
		return SexFemale, nil
	case "male", "m":
		return SexMale, nil
	case "other":
		return SexOther, nil
	}
	return SexUnknown, fmt.Errorf("unknown biological sex %q", value)
}

// BloodType is the stored blood-type characteristic.
type BloodType int

const (
	BloodUnknown BloodType = iota
	BloodAPositive
	BloodANegative
	BloodBPositive
	BloodBNegative
	BloodABPositive
	BloodABNegative
	BloodOPositive
	BloodONegative
)

// Label maps every value to its display string.
func (b BloodType) Label() string {
	switch b {
	case BloodAPositive:
		return "A+"
	case BloodANegative:
		return "A-"
	case BloodBPositive:
		return "B+"
	case BloodBNegative:
		return "B-"
	case BloodABPositive:
		return "AB+"
	case BloodABNegative:
		return "AB-"
	case BloodOPositive:
		return "O+"
	case BloodONegative:
		return "O-"
	default:
		return UnknownLabel
	}
}

// Code is the identifier used in storage; the label for known types.
func (b BloodType) Code() string {
	if b == BloodUnknown {
		return "unknown"
	}
	return b.Label()
}

// ParseBloodType accepts labels such as "AB-" and the "unknown" code.
func ParseBloodType(value string) (BloodType, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), " ", ""))
	if normalized == "" || normalized == "UNKNOWN" {
		return BloodUnknown, nil
	}
	for b := BloodAPositive; b <= BloodONegative; b++ {
		if b.Label() == normalized {
			return b, nil
		}
	}
	return BloodUnknown, fmt.Errorf("unknown blood type %q", value)
}

// Characteristics are the static attributes as held by the store.
type Characteristics struct {
	DateOfBirth   Optional[time.Time]
	BiologicalSex Optional[BiologicalSex]
	BloodType     Optional[BloodType]
}

// Profile is the read-side view of the characteristics with age derived.
type Profile struct {
	Age           Optional[int]
	BiologicalSex Optional[BiologicalSex]
	BloodType     Optional[BloodType]
}

// AgeAt returns completed calendar years between the birth date and now.
// The birth date is a calendar date, so its own year/month/day are compared
// without converting time zones. Birth dates in the future clamp to zero.
func AgeAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
