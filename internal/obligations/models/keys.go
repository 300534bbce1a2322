package models

// ObligationKey identifies one tracked obligation inside a fiscal year.
type ObligationKey string

const (
	KeyIGS                    ObligationKey = "igs"
	KeyPatente                ObligationKey = "patente"
	KeyLicence                ObligationKey = "licence"
	KeyCommercialLease        ObligationKey = "commercialLease"
	KeyRentWithholding        ObligationKey = "rentWithholding"
	KeyPropertyTax            ObligationKey = "propertyTax"
	KeyAnnualDeclaration      ObligationKey = "annualDeclaration"
	KeyAuditReport            ObligationKey = "auditReport"
	KeySocialDeclaration      ObligationKey = "socialDeclaration"
	KeyWithholdingDeclaration ObligationKey = "withholdingDeclaration"
)

// Kind separates payment obligations from filing obligations.
type Kind int

const (
	KindUnknown Kind = iota
	KindTax
	KindDeclaration
)

func (k Kind) String() string {
	switch k {
	case KindTax:
		return "tax"
	case KindDeclaration:
		return "declaration"
	default:
		return "unknown"
	}
}

var taxKeys = []ObligationKey{
	KeyIGS,
	KeyPatente,
	KeyLicence,
	KeyCommercialLease,
	KeyRentWithholding,
	KeyPropertyTax,
}

var declarationKeys = []ObligationKey{
	KeyAnnualDeclaration,
	KeyAuditReport,
	KeySocialDeclaration,
	KeyWithholdingDeclaration,
}

// TaxKeys returns the payment obligation keys in display order.
func TaxKeys() []ObligationKey {
	return append([]ObligationKey(nil), taxKeys...)
}

// DeclarationKeys returns the filing obligation keys in display order.
func DeclarationKeys() []ObligationKey {
	return append([]ObligationKey(nil), declarationKeys...)
}

// AllKeys returns every obligation key, taxes first.
func AllKeys() []ObligationKey {
	return append(TaxKeys(), declarationKeys...)
}

// Kind reports whether the key tracks a payment or a filing.
func (k ObligationKey) Kind() Kind {
	for _, t := range taxKeys {
		if t == k {
			return KindTax
		}
	}
	for _, d := range declarationKeys {
		if d == k {
			return KindDeclaration
		}
	}
	return KindUnknown
}

// IsValid reports whether k is one of the canonical keys.
func (k ObligationKey) IsValid() bool {
	return k.Kind() != KindUnknown
}
