// Package rules derives which obligations apply to a client from its profile.
package rules

import "fiscus/internal/obligations/models"

// DefaultObligations computes the default obligation set for a client.
// This is pure domain logic - no I/O, no side effects. Every subject flag is
// computed; all other fields stay at schema defaults (unpaid, unfiled).
func DefaultObligations(profile models.ClientProfile) models.ObligationSet {
	set := models.NewObligationSet()

	// Rule 1: individuals always file the annual summary.
	if profile.PersonType == models.PersonIndividual {
		set.SetSubject(models.KeyAnnualDeclaration, true)
	}

	// Rule 2: professional tax regime. Same mapping for individuals and companies;
	// nonProfessional forces nothing.
	switch profile.TaxRegime {
	case models.RegimeReal:
		set.SetSubject(models.KeyPatente, true)
	case models.RegimeSimplifiedTax:
		set.SetSubject(models.KeyIGS, true)
	}

	// Rule 3: anyone paying a professional tax must file the annual summary.
	if set.Subject(models.KeyPatente) || set.Subject(models.KeyIGS) {
		set.SetSubject(models.KeyAnnualDeclaration, true)
	}

	// Rule 4: owners pay property tax. Tenancy has no automatic rule yet and
	// must not imply rent withholding.
	if profile.PropertyStatus == models.PropertyOwner {
		set.SetSubject(models.KeyPropertyTax, true)
	}

	return set
}
