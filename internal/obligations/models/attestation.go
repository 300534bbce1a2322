package models

import "time"

// AttestationValidityMonths is the fixed validity window of a compliance attestation.
const AttestationValidityMonths = 3

// Attestation is a time-limited compliance certificate.
// ValidityEndDate is always derived from CreationDate, never entered.
type Attestation struct {
	CreationDate    *time.Time `json:"creationDate"`
	ValidityEndDate *time.Time `json:"validityEndDate"`
	ShowInAlert     bool       `json:"showInAlert"`
}

// AttestationStatus classifies an attestation relative to a point in time.
type AttestationStatus string

const (
	AttestationMissing      AttestationStatus = "missing"
	AttestationValid        AttestationStatus = "valid"
	AttestationExpiringSoon AttestationStatus = "expiringSoon"
	AttestationExpired      AttestationStatus = "expired"
)

// ValidityEnd returns the end of the validity window for a creation date.
func ValidityEnd(creation time.Time) time.Time {
	return creation.AddDate(0, AttestationValidityMonths, 0)
}

// NewAttestation builds an attestation with its validity end derived.
func NewAttestation(creation *time.Time, showInAlert bool) Attestation {
	a := Attestation{ShowInAlert: showInAlert}
	a.SetCreationDate(creation)
	return a
}

// SetCreationDate sets (or clears) the creation date and re-derives the end date.
func (a *Attestation) SetCreationDate(creation *time.Time) {
	if creation == nil {
		a.CreationDate = nil
		a.ValidityEndDate = nil
		return
	}
	c := DateOnly(*creation)
	end := ValidityEnd(c)
	a.CreationDate = &c
	a.ValidityEndDate = &end
}

// Status reports where the attestation stands at now. window is how far
// ahead of expiry the attestation counts as expiring soon.
func (a Attestation) Status(now time.Time, window time.Duration) AttestationStatus {
	if a.CreationDate == nil || a.ValidityEndDate == nil {
		return AttestationMissing
	}
	if !now.Before(*a.ValidityEndDate) {
		return AttestationExpired
	}
	if a.ValidityEndDate.Sub(now) <= window {
		return AttestationExpiringSoon
	}
	return AttestationValid
}

// Clone returns a deep copy.
func (a Attestation) Clone() Attestation {
	return Attestation{
		CreationDate:    cloneTime(a.CreationDate),
		ValidityEndDate: cloneTime(a.ValidityEndDate),
		ShowInAlert:     a.ShowInAlert,
	}
}
