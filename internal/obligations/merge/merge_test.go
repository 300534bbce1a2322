package merge

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscus/internal/obligations/models"
	"fiscus/internal/obligations/rules"
)

func persistedWithPatentePaid(t *testing.T) models.ObligationSet {
	t.Helper()
	set := models.NewObligationSet()
	set.SetSubject(models.KeyPatente, true)
	require.NoError(t, set.Apply(models.KeyPatente, models.FieldPaid, true))
	require.NoError(t, set.Apply(models.KeyPatente, models.FieldAmount, decimal.NewFromInt(75000)))
	require.NoError(t, set.Apply(models.KeyPatente, models.AttachmentFieldPrefix+"receipt", "receipt.pdf"))
	return set
}

func TestRegimeChangeClearsStaleCompliance(t *testing.T) {
	profile := models.ClientProfile{
		ID:             "c1",
		PersonType:     models.PersonIndividual,
		TaxRegime:      models.RegimeNonProfessional,
		PropertyStatus: models.PropertyNone,
	}
	persisted := persistedWithPatentePaid(t)

	merged := Reconcile(rules.DefaultObligations(profile), &persisted)

	patente := merged.Taxes[models.KeyPatente]
	assert.False(t, patente.Subject)
	assert.False(t, patente.Paid)
	assert.Equal(t, "75000", patente.Amount.String(), "non-flag data is kept")
	assert.Equal(t, "receipt.pdf", patente.Attachments["receipt"])
	assert.Empty(t, merged.CascadeViolations())
}

func TestPersistedComplianceSurvivesWhenApplicable(t *testing.T) {
	profile := models.ClientProfile{PersonType: models.PersonCorporate, TaxRegime: models.RegimeReal}
	persisted := persistedWithPatentePaid(t)
	filed := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	persisted.SetSubject(models.KeyAnnualDeclaration, false)
	require.NoError(t, persisted.Apply(models.KeyAnnualDeclaration, models.FieldFilingDate, filed))

	merged := Reconcile(rules.DefaultObligations(profile), &persisted)

	assert.True(t, merged.Taxes[models.KeyPatente].Paid)
	assert.True(t, merged.Declarations[models.KeyAnnualDeclaration].Subject, "rules force applicability")
	assert.Equal(t, filed, *merged.Declarations[models.KeyAnnualDeclaration].FilingDate)
}

func TestSubjectAlwaysFromRules(t *testing.T) {
	profiles := []models.ClientProfile{
		{PersonType: models.PersonIndividual, TaxRegime: models.RegimeReal, PropertyStatus: models.PropertyOwner},
		{PersonType: models.PersonIndividual, TaxRegime: models.RegimeSimplifiedTax, PropertyStatus: models.PropertyTenant},
		{PersonType: models.PersonCorporate, TaxRegime: models.RegimeNonProfessional, PropertyStatus: models.PropertyNone},
	}
	everythingDone := models.NewObligationSet()
	for _, k := range models.AllKeys() {
		everythingDone.SetSubject(k, true)
		field := models.FieldPaid
		if k.Kind() == models.KindDeclaration {
			field = models.FieldFiled
		}
		require.NoError(t, everythingDone.Apply(k, field, true))
	}

	for _, profile := range profiles {
		defaults := rules.DefaultObligations(profile)
		merged := Reconcile(defaults, &everythingDone)
		for _, k := range models.AllKeys() {
			assert.Equal(t, defaults.Subject(k), merged.Subject(k), "%s %+v", k, profile)
			assert.Equal(t, defaults.Subject(k), merged.Done(k), "%s %+v", k, profile)
		}
		assert.NoError(t, merged.Validate())
	}
}

func TestAbsentPersistedReturnsRules(t *testing.T) {
	defaults := rules.DefaultObligations(models.ClientProfile{PersonType: models.PersonIndividual, TaxRegime: models.RegimeReal})

	merged := Reconcile(defaults, nil)

	assert.Equal(t, defaults, merged)
}

func TestReconcileDoesNotAliasInputs(t *testing.T) {
	defaults := rules.DefaultObligations(models.ClientProfile{TaxRegime: models.RegimeReal})
	persisted := persistedWithPatentePaid(t)

	merged := Reconcile(defaults, &persisted)
	require.NoError(t, merged.Apply(models.KeyPatente, models.AttachmentFieldPrefix+"receipt", ""))

	assert.Equal(t, "receipt.pdf", persisted.Taxes[models.KeyPatente].Attachments["receipt"])
}

func TestReconcileYear(t *testing.T) {
	defaults := rules.DefaultObligations(models.ClientProfile{TaxRegime: models.RegimeReal})
	rec := models.NewClientFiscalRecord("c1")
	rec.ObligationsByYear["2023"] = persistedWithPatentePaid(t)

	assert.True(t, ReconcileYear(defaults, rec, "2023").Taxes[models.KeyPatente].Paid)
	assert.False(t, ReconcileYear(defaults, rec, "2024").Taxes[models.KeyPatente].Paid)
}
