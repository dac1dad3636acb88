package types

import "time"

// EventKind is the direction of an attendance toggle.
type EventKind string

const (
	CheckIn  EventKind = "checkin"
	CheckOut EventKind = "checkout"
)

// Opposite returns the kind a toggle from k produces.
func (k EventKind) Opposite() EventKind {
	if k == CheckIn {
		return CheckOut
	}
	return CheckIn
}

// LocationSample is a raw geolocation fix as delivered by the host.
// Accuracy is the reported radius in meters.
type LocationSample struct {
	Latitude  float64   `json:"latitude"  validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy  float64   `json:"accuracy"  validate:"gte=0"`
	Timestamp time.Time `json:"timestamp"`
}

// Credential is the opaque verified-identity object handed over by the host.
// The ledger never verifies it; it only copies it into events.
type Credential struct {
	SubjectID         string    `json:"subject_id"         validate:"required"`
	VerificationLevel string    `json:"verification_level"`
	Nullifier         string    `json:"nullifier,omitempty"`
	VerifiedAt        time.Time `json:"verified_at"`
}

// CredentialInfo is the credential snapshot stored on an event.
type CredentialInfo struct {
	Verified          bool       `json:"verified"`
	SubjectID         string     `json:"subject_id,omitempty"`
	VerificationLevel string     `json:"verification_level,omitempty"`
	Nullifier         string     `json:"nullifier,omitempty"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	Reason            string     `json:"reason,omitempty"`
}

// AttendanceEvent is one check-in or check-out.
type AttendanceEvent struct {
	ID          string          `json:"id"`
	Kind        EventKind       `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	Location    *LocationSample `json:"location,omitempty"`
	PlaceLabel  string          `json:"area"`
	Credential  CredentialInfo  `json:"credential"`
	Fingerprint string          `json:"security_hash"`
}

// LocationLog is a persisted location update.
type LocationLog struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	PlaceLabel string    `json:"area"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
}

// Status is the aggregate the host displays; it is always derived from the
// stored events and never persisted on its own.
type Status struct {
	CheckedIn    bool `json:"checked_in"`
	TodayMinutes int  `json:"today_minutes"`
}
