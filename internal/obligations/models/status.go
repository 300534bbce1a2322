package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuartersPerYear is the number of instalments an instalment-paid tax carries.
const QuartersPerYear = 4

// Periodicity is how often a declaration must be filed.
type Periodicity string

const (
	PeriodicityMonthly   Periodicity = "monthly"
	PeriodicityQuarterly Periodicity = "quarterly"
	PeriodicityAnnual    Periodicity = "annual"
)

// IsValid reports whether p is a known periodicity.
func (p Periodicity) IsValid() bool {
	switch p {
	case PeriodicityMonthly, PeriodicityQuarterly, PeriodicityAnnual:
		return true
	}
	return false
}

// DefaultPeriodicity returns the filing rhythm a declaration starts with.
func DefaultPeriodicity(key ObligationKey) Periodicity {
	switch key {
	case KeySocialDeclaration, KeyWithholdingDeclaration:
		return PeriodicityMonthly
	default:
		return PeriodicityAnnual
	}
}

// QuarterlyPayment is one instalment of a tax paid in quarters.
type QuarterlyPayment struct {
	Paid     bool             `json:"paid"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	PaidDate *time.Time       `json:"paidDate,omitempty"`
}

// TaxObligationStatus tracks a payment obligation for one year.
// Invariant: Subject == false implies Paid == false and no quarter paid.
type TaxObligationStatus struct {
	Subject          bool               `json:"subject"`
	Paid             bool               `json:"paid"`
	DueDate          *time.Time         `json:"dueDate,omitempty"`
	PaidDate         *time.Time         `json:"paidDate,omitempty"`
	Amount           *decimal.Decimal   `json:"amount,omitempty"`
	PaymentMethod    string             `json:"paymentMethod,omitempty"`
	PaymentReference string             `json:"paymentReference,omitempty"`
	Attachments      map[string]string  `json:"attachments"`
	Notes            string             `json:"notes,omitempty"`
	Quarterly        []QuarterlyPayment `json:"quarterly,omitempty"`
}

// DeclarationObligationStatus tracks a filing obligation for one year.
// Invariant: Subject == false implies Filed == false.
type DeclarationObligationStatus struct {
	Subject     bool              `json:"subject"`
	Filed       bool              `json:"filed"`
	Periodicity Periodicity       `json:"periodicity"`
	FilingDate  *time.Time        `json:"filingDate,omitempty"`
	DueDate     *time.Time        `json:"dueDate,omitempty"`
	Regime      string            `json:"regime,omitempty"`
	Attachments map[string]string `json:"attachments"`
	Notes       string            `json:"notes,omitempty"`
}

// NewTaxStatus returns the schema default for a payment obligation.
func NewTaxStatus() TaxObligationStatus {
	return TaxObligationStatus{Attachments: map[string]string{}}
}

// NewDeclarationStatus returns the schema default for a filing obligation.
func NewDeclarationStatus(key ObligationKey) DeclarationObligationStatus {
	return DeclarationObligationStatus{
		Periodicity: DefaultPeriodicity(key),
		Attachments: map[string]string{},
	}
}

// EnforceCascade clears compliance flags on a non-applicable obligation.
// It reports whether anything had to change.
func (t *TaxObligationStatus) EnforceCascade() bool {
	if t.Subject {
		return false
	}
	changed := t.Paid
	t.Paid = false
	for i := range t.Quarterly {
		if t.Quarterly[i].Paid {
			t.Quarterly[i].Paid = false
			changed = true
		}
	}
	return changed
}

// EnforceCascade clears the filed flag on a non-applicable declaration.
func (d *DeclarationObligationStatus) EnforceCascade() bool {
	if d.Subject || !d.Filed {
		return false
	}
	d.Filed = false
	return true
}

// Clone returns a deep copy.
func (t TaxObligationStatus) Clone() TaxObligationStatus {
	out := t
	out.DueDate = cloneTime(t.DueDate)
	out.PaidDate = cloneTime(t.PaidDate)
	out.Amount = cloneDecimal(t.Amount)
	out.Attachments = cloneAttachments(t.Attachments)
	if t.Quarterly != nil {
		out.Quarterly = make([]QuarterlyPayment, len(t.Quarterly))
		for i, q := range t.Quarterly {
			out.Quarterly[i] = QuarterlyPayment{
				Paid:     q.Paid,
				Amount:   cloneDecimal(q.Amount),
				PaidDate: cloneTime(q.PaidDate),
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (d DeclarationObligationStatus) Clone() DeclarationObligationStatus {
	out := d
	out.FilingDate = cloneTime(d.FilingDate)
	out.DueDate = cloneTime(d.DueDate)
	out.Attachments = cloneAttachments(d.Attachments)
	return out
}

// Validate checks structural completeness of a tax status.
func (t TaxObligationStatus) Validate() error {
	if t.Attachments == nil {
		return errMissingField("attachments")
	}
	if t.Quarterly != nil && len(t.Quarterly) != QuartersPerYear {
		return errMissingField("quarterly")
	}
	return nil
}

// Validate checks structural completeness of a declaration status.
func (d DeclarationObligationStatus) Validate() error {
	if d.Attachments == nil {
		return errMissingField("attachments")
	}
	if !d.Periodicity.IsValid() {
		return errMissingField("periodicity")
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneAttachments(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
