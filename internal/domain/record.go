package domain

import (
	"fmt"
	"strings"
)

// RecordKind groups record types by how the store holds them.
type RecordKind string

const (
	KindCharacteristic RecordKind = "characteristic"
	KindQuantity       RecordKind = "quantity"
	KindWorkout        RecordKind = "workout"
)

// RecordType identifies one entry of the fixed record catalog.
type RecordType string

const (
	RecordDateOfBirth            RecordType = "date-of-birth"
	RecordBiologicalSex          RecordType = "biological-sex"
	RecordBloodType              RecordType = "blood-type"
	RecordBodyMass               RecordType = "body-mass"
	RecordHeight                 RecordType = "height"
	RecordBodyMassIndex          RecordType = "body-mass-index"
	RecordActiveEnergyBurned     RecordType = "active-energy-burned"
	RecordDistanceWalkingRunning RecordType = "distance-walking-running"
	RecordWorkout                RecordType = "workout"
)

type recordInfo struct {
	kind RecordKind
	unit Unit
}

var catalog = map[RecordType]recordInfo{
	RecordDateOfBirth:            {kind: KindCharacteristic},
	RecordBiologicalSex:          {kind: KindCharacteristic},
	RecordBloodType:              {kind: KindCharacteristic},
	RecordBodyMass:               {kind: KindQuantity, unit: UnitKilogram},
	RecordHeight:                 {kind: KindQuantity, unit: UnitMeter},
	RecordBodyMassIndex:          {kind: KindQuantity, unit: UnitCount},
	RecordActiveEnergyBurned:     {kind: KindQuantity, unit: UnitKilocalorie},
	RecordDistanceWalkingRunning: {kind: KindQuantity, unit: UnitMeter},
	RecordWorkout:                {kind: KindWorkout},
}

// RecordTypes lists the catalog in a stable order.
func RecordTypes() []RecordType {
	return []RecordType{
		RecordDateOfBirth,
		RecordBiologicalSex,
		RecordBloodType,
		RecordBodyMass,
		RecordHeight,
		RecordBodyMassIndex,
		RecordActiveEnergyBurned,
		RecordDistanceWalkingRunning,
		RecordWorkout,
	}
}

// ParseRecordType accepts catalog identifiers case-insensitively.
func ParseRecordType(value string) (RecordType, error) {
	rt := RecordType(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := catalog[rt]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRecordType, value)
	}
	return rt, nil
}

// Valid reports whether rt belongs to the catalog.
func (rt RecordType) Valid() bool {
	_, ok := catalog[rt]
	return ok
}

// Kind returns the record kind, or "" for unknown types.
func (rt RecordType) Kind() RecordKind {
	return catalog[rt].kind
}

// CanonicalUnit is the unit quantity samples of this type are stored in.
func (rt RecordType) CanonicalUnit() (Unit, bool) {
	info, ok := catalog[rt]
	if !ok || info.kind != KindQuantity {
		return "", false
	}
	return info.unit, true
}

// AccessMode distinguishes read and write (share) permissions.
type AccessMode string

const (
	AccessRead  AccessMode = "read"
	AccessWrite AccessMode = "write"
)

// AuthorizationStatus is the stored state of a single grant.
type AuthorizationStatus string

const (
	AuthorizationGranted AuthorizationStatus = "granted"
	AuthorizationDenied  AuthorizationStatus = "denied"
)

// AuthorizationRequest is an immutable pair of read and write sets.
type AuthorizationRequest struct {
	read  []RecordType
	write []RecordType
}

// NewAuthorizationRequest builds a request, dropping duplicates and unknown types.
func NewAuthorizationRequest(read, write []RecordType) AuthorizationRequest {
	return AuthorizationRequest{read: dedupe(read), write: dedupe(write)}
}

// DefaultAuthorizationRequest is the catalog the profile screen asks for.
func DefaultAuthorizationRequest() AuthorizationRequest {
	return NewAuthorizationRequest(
		[]RecordType{
			RecordDateOfBirth,
			RecordBloodType,
			RecordBiologicalSex,
			RecordBodyMass,
			RecordHeight,
			RecordWorkout,
		},
		[]RecordType{
			RecordBodyMassIndex,
			RecordActiveEnergyBurned,
			RecordDistanceWalkingRunning,
			RecordWorkout,
		},
	)
}

// Read returns a copy of the readable set.
func (r AuthorizationRequest) Read() []RecordType {
	return append([]RecordType(nil), r.read...)
}

// Write returns a copy of the writable set.
func (r AuthorizationRequest) Write() []RecordType {
	return append([]RecordType(nil), r.write...)
}

// Empty reports whether nothing is requested.
func (r AuthorizationRequest) Empty() bool {
	return len(r.read) == 0 && len(r.write) == 0
}

func dedupe(types []RecordType) []RecordType {
	seen := make(map[RecordType]struct{}, len(types))
	out := make([]RecordType, 0, len(types))
	for _, rt := range types {
		if !rt.Valid() {
			continue
		}
		if _, ok := seen[rt]; ok {
			continue
		}
		seen[rt] = struct{}{}
		out = append(out, rt)
	}
	return out
}
