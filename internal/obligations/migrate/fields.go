package migrate

import (
	"strings"

	"fiscus/internal/obligations/models"
)

// fieldRule is one row of the coercion table: the canonical field name, the
// legacy spellings it may appear under, and how to coerce a raw value into
// the target struct. set reports whether the raw value was already canonical.
type fieldRule[T any] struct {
	name     string
	aliases  []string
	required bool
	reason   string
	set      func(key models.ObligationKey, dst *T, raw any) bool
}

var taxFields = []fieldRule[models.TaxObligationStatus]{
	{
		name: models.FieldSubject, aliases: []string{"assujetti", "isSubject", "applicable"},
		required: true, reason: ReasonBoolCoerced,
		set: func(_ models.ObligationKey, t *models.TaxObligationStatus, raw any) bool {
			var ok bool
			t.Subject, ok = coerceBool(raw)
			return ok
		},
	},
	{
		name: models.FieldPaid, aliases: []string{"isPaid", "payed", "paye"},
		required: true, reason: ReasonBoolCoerced,
		set: func(_ models.ObligationKey, t *models.TaxObligationStatus, raw any) bool {
			var ok bool
			t.Paid, ok = coerceBool(raw)
			return ok
		},
	},
	{
		name: models.FieldDueDate, aliases: []string{"deadline", "echeance"},
		reason: ReasonDateCoerced,
		set: func(_ models.ObligationKey, t *models.TaxObligationStatus, raw any) bool {
			var ok bool
			t.DueDate, ok = coerceDate(raw)
			return ok
		},
	},
	{
		name: models.FieldPaidDate, aliases: []string{"paymentDate", "datePaiement"},
		reason: ReasonDateCoerced,
		set: func(_ models.ObligationKey, t *models.TaxObligationStatus, raw any) bool {
			var ok bool
			t.PaidDate, ok = coerceDate(raw)
			return ok
		},
	},
	{
		name: models.FieldAmount, aliases: []string{"montant"},
		reason: ReasonNumberCoerced,
		set: func(_ models.ObligationKey, t *models.TaxObligationStatus, raw any) bool {
			var ok bool
			t.Amount, ok = coerceDecimal(raw)
			return ok
		},
	},
	{
		name: models.FieldPaymentMethod, aliases: []string{"method", "modePaiement"},
		reason: ReasonStringCoerced,
		set: func(_ models.ObligationKey, t *models.TaxObligationStatus, raw any) bool {
			var ok bool
			t.PaymentMethod, ok = coerceString(raw)
			return ok
		},
	},
	{
		name: models.FieldPaymentReference, aliases: []string{"reference", "ref"},
		reason: ReasonStringCoerced,
		set: func(_ models.ObligationKey, t *models.TaxObligationStatus, raw any) bool {
			var ok bool
			t.PaymentReference, ok = coerceString(raw)
			return ok
		},
	},
	{
		name: "attachments", aliases: []string{"documents", "files"},
		required: true, reason: ReasonStringCoerced,
		set: func(_ models.ObligationKey, t *models.TaxObligationStatus, raw any) bool {
			var ok bool
			t.Attachments, ok = coerceAttachments(raw)
			return ok
		},
	},
	{
		name: models.FieldNotes, aliases: []string{"comment", "comments"},
		reason: ReasonStringCoerced,
		set: func(_ models.ObligationKey, t *models.TaxObligationStatus, raw any) bool {
			var ok bool
			t.Notes, ok = coerceString(raw)
			return ok
		},
	},
	{
		name: "quarterly", aliases: []string{"quarters", "trimestres"},
		reason: ReasonQuarterlyPadded,
		set: func(_ models.ObligationKey, t *models.TaxObligationStatus, raw any) bool {
			var ok bool
			t.Quarterly, ok = coerceQuarterly(raw)
			return ok
		},
	},
}

var declarationFields = []fieldRule[models.DeclarationObligationStatus]{
	{
		name: models.FieldSubject, aliases: []string{"assujetti", "isSubject", "applicable"},
		required: true, reason: ReasonBoolCoerced,
		set: func(_ models.ObligationKey, d *models.DeclarationObligationStatus, raw any) bool {
			var ok bool
			d.Subject, ok = coerceBool(raw)
			return ok
		},
	},
	{
		name: models.FieldFiled, aliases: []string{"isFiled", "submitted", "depose"},
		required: true, reason: ReasonBoolCoerced,
		set: func(_ models.ObligationKey, d *models.DeclarationObligationStatus, raw any) bool {
			var ok bool
			d.Filed, ok = coerceBool(raw)
			return ok
		},
	},
	{
		name: models.FieldPeriodicity, aliases: []string{"frequency", "periodicite"},
		required: true, reason: ReasonInvalidDropped,
		set: func(key models.ObligationKey, d *models.DeclarationObligationStatus, raw any) bool {
			var ok bool
			d.Periodicity, ok = coercePeriodicity(key, raw)
			return ok
		},
	},
	{
		name: models.FieldFilingDate, aliases: []string{"submissionDate", "dateDepot"},
		reason: ReasonDateCoerced,
		set: func(_ models.ObligationKey, d *models.DeclarationObligationStatus, raw any) bool {
			var ok bool
			d.FilingDate, ok = coerceDate(raw)
			return ok
		},
	},
	{
		name: models.FieldDueDate, aliases: []string{"deadline", "echeance"},
		reason: ReasonDateCoerced,
		set: func(_ models.ObligationKey, d *models.DeclarationObligationStatus, raw any) bool {
			var ok bool
			d.DueDate, ok = coerceDate(raw)
			return ok
		},
	},
	{
		name: models.FieldRegime, aliases: []string{"regimeFiscal"},
		reason: ReasonStringCoerced,
		set: func(_ models.ObligationKey, d *models.DeclarationObligationStatus, raw any) bool {
			var ok bool
			d.Regime, ok = coerceString(raw)
			return ok
		},
	},
	{
		name: "attachments", aliases: []string{"documents", "files"},
		required: true, reason: ReasonStringCoerced,
		set: func(_ models.ObligationKey, d *models.DeclarationObligationStatus, raw any) bool {
			var ok bool
			d.Attachments, ok = coerceAttachments(raw)
			return ok
		},
	},
	{
		name: models.FieldNotes, aliases: []string{"comment", "comments"},
		reason: ReasonStringCoerced,
		set: func(_ models.ObligationKey, d *models.DeclarationObligationStatus, raw any) bool {
			var ok bool
			d.Notes, ok = coerceString(raw)
			return ok
		},
	},
}

// keyAliases maps legacy obligation names to canonical keys.
var keyAliases = map[string]models.ObligationKey{
	"lease":                   models.KeyCommercialLease,
	"bail":                    models.KeyCommercialLease,
	"bailCommercial":          models.KeyCommercialLease,
	"taxeFonciere":            models.KeyPropertyTax,
	"propertyTaxes":           models.KeyPropertyTax,
	"IGS":                     models.KeyIGS,
	"impotGeneralSynthetique": models.KeyIGS,
	"license":                 models.KeyLicence,
	"licenseTax":              models.KeyLicence,
	"dsf":                     models.KeyAnnualDeclaration,
	"declarationAnnuelle":     models.KeyAnnualDeclaration,
	"cnps":                    models.KeySocialDeclaration,
	"precompteLoyer":          models.KeyRentWithholding,
	"rentTaxWithholding":      models.KeyRentWithholding,
	"rapportCommissaire":      models.KeyAuditReport,
	"auditorReport":           models.KeyAuditReport,
	"retenueSource":           models.KeyWithholdingDeclaration,
}

// resolveKey maps a persisted key to its canonical form.
func resolveKey(name string) (key models.ObligationKey, alias bool, ok bool) {
	if k := models.ObligationKey(name); k.IsValid() {
		return k, false, true
	}
	if k, found := keyAliases[name]; found {
		return k, true, true
	}
	return "", false, false
}

var periodicityAliases = map[string]models.Periodicity{
	"mensuel":     models.PeriodicityMonthly,
	"mensuelle":   models.PeriodicityMonthly,
	"month":       models.PeriodicityMonthly,
	"trimestriel": models.PeriodicityQuarterly,
	"quarter":     models.PeriodicityQuarterly,
	"annuel":      models.PeriodicityAnnual,
	"annuelle":    models.PeriodicityAnnual,
	"yearly":      models.PeriodicityAnnual,
}

func coercePeriodicity(key models.ObligationKey, raw any) (models.Periodicity, bool) {
	s, _ := raw.(string)
	if p := models.Periodicity(s); p.IsValid() {
		return p, true
	}
	if p, ok := periodicityAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, false
	}
	return models.DefaultPeriodicity(key), false
}

// coerceQuarterly pads or truncates instalments to exactly four entries.
func coerceQuarterly(raw any) ([]models.QuarterlyPayment, bool) {
	if raw == nil {
		return nil, true
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	exact := len(items) == models.QuartersPerYear
	out := make([]models.QuarterlyPayment, models.QuartersPerYear)
	for i := 0; i < models.QuartersPerYear && i < len(items); i++ {
		obj, isObj := items[i].(map[string]any)
		if !isObj {
			exact = false
			continue
		}
		var qOK, aOK, dOK bool
		out[i].Paid, qOK = coerceBool(obj[models.FieldPaid])
		if _, present := obj[models.FieldPaid]; !present {
			qOK = true
		}
		out[i].Amount, aOK = coerceDecimal(obj[models.FieldAmount])
		out[i].PaidDate, dOK = coerceDate(obj[models.FieldPaidDate])
		exact = exact && qOK && aOK && dOK
	}
	return out, exact
}
