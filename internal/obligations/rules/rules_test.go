package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscus/internal/obligations/models"
)

func subjects(set models.ObligationSet) []models.ObligationKey {
	var out []models.ObligationKey
	for _, k := range models.AllKeys() {
		if set.Subject(k) {
			out = append(out, k)
		}
	}
	return out
}

func TestDefaultObligations(t *testing.T) {
	tests := []struct {
		name    string
		profile models.ClientProfile
		want    []models.ObligationKey
	}{
		{
			name:    "individual on real regime",
			profile: models.ClientProfile{PersonType: models.PersonIndividual, TaxRegime: models.RegimeReal, PropertyStatus: models.PropertyNone},
			want:    []models.ObligationKey{models.KeyPatente, models.KeyAnnualDeclaration},
		},
		{
			name:    "individual on simplified tax",
			profile: models.ClientProfile{PersonType: models.PersonIndividual, TaxRegime: models.RegimeSimplifiedTax},
			want:    []models.ObligationKey{models.KeyIGS, models.KeyAnnualDeclaration},
		},
		{
			name:    "non professional individual still files annual declaration",
			profile: models.ClientProfile{PersonType: models.PersonIndividual, TaxRegime: models.RegimeNonProfessional},
			want:    []models.ObligationKey{models.KeyAnnualDeclaration},
		},
		{
			name:    "corporate on real regime files because of patente",
			profile: models.ClientProfile{PersonType: models.PersonCorporate, TaxRegime: models.RegimeReal},
			want:    []models.ObligationKey{models.KeyPatente, models.KeyAnnualDeclaration},
		},
		{
			name:    "non professional corporate has no implicit declaration",
			profile: models.ClientProfile{PersonType: models.PersonCorporate, TaxRegime: models.RegimeNonProfessional},
			want:    nil,
		},
		{
			name:    "owner pays property tax",
			profile: models.ClientProfile{PersonType: models.PersonCorporate, TaxRegime: models.RegimeSimplifiedTax, PropertyStatus: models.PropertyOwner},
			want:    []models.ObligationKey{models.KeyIGS, models.KeyPropertyTax, models.KeyAnnualDeclaration},
		},
		{
			name:    "tenant gets no rent withholding",
			profile: models.ClientProfile{PersonType: models.PersonCorporate, TaxRegime: models.RegimeNonProfessional, PropertyStatus: models.PropertyTenant},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := DefaultObligations(tt.profile)
			assert.Equal(t, tt.want, subjects(set))
			require.NoError(t, set.Validate())
			for _, k := range models.AllKeys() {
				assert.False(t, set.Done(k), "%s must start unpaid/unfiled", k)
			}
		})
	}
}

func TestIndividualRealRegimeDefaults(t *testing.T) {
	set := DefaultObligations(models.ClientProfile{
		ID:         "c1",
		PersonType: models.PersonIndividual,
		TaxRegime:  models.RegimeReal,
	})

	assert.True(t, set.Subject(models.KeyPatente))
	assert.True(t, set.Subject(models.KeyAnnualDeclaration))
	assert.False(t, set.Subject(models.KeyIGS))
}

func TestDefaultObligationsIsDeterministic(t *testing.T) {
	regimes := []models.TaxRegime{models.RegimeReal, models.RegimeSimplifiedTax, models.RegimeNonProfessional, "unknown"}
	persons := []models.PersonType{models.PersonIndividual, models.PersonCorporate}
	properties := []models.PropertyStatus{models.PropertyOwner, models.PropertyTenant, models.PropertyNone}

	for _, r := range regimes {
		for _, p := range persons {
			for _, ps := range properties {
				profile := models.ClientProfile{PersonType: p, TaxRegime: r, PropertyStatus: ps}
				first := DefaultObligations(profile)
				second := DefaultObligations(profile)
				assert.Equal(t, first, second)
				assert.False(t, first.Subject(models.KeyRentWithholding))
			}
		}
	}
}
