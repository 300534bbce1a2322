// Package merge reconciles rule-derived applicability with persisted
// compliance data for one fiscal year.
package merge

import "fiscus/internal/obligations/models"

// Reconcile takes subject from rules for every key and everything else from
// persisted. The cascade is re-applied afterwards, so an obligation the rules
// no longer consider applicable cannot stay paid or filed. A nil persisted
// set returns a copy of rules unchanged.
func Reconcile(rules models.ObligationSet, persisted *models.ObligationSet) models.ObligationSet {
	out := rules.Clone()
	if persisted == nil {
		return out
	}

	for _, key := range models.TaxKeys() {
		stored, ok := persisted.Taxes[key]
		if !ok {
			continue
		}
		merged := stored.Clone()
		merged.Subject = rules.Taxes[key].Subject
		out.Taxes[key] = merged
	}
	for _, key := range models.DeclarationKeys() {
		stored, ok := persisted.Declarations[key]
		if !ok {
			continue
		}
		merged := stored.Clone()
		merged.Subject = rules.Declarations[key].Subject
		out.Declarations[key] = merged
	}

	out.EnforceCascade()
	return out
}

// ReconcileYear looks up year in record and reconciles it with rules.
func ReconcileYear(rules models.ObligationSet, record models.ClientFiscalRecord, year models.Year) models.ObligationSet {
	persisted, ok := record.Obligations(year)
	if !ok {
		return Reconcile(rules, nil)
	}
	return Reconcile(rules, &persisted)
}
