package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Editable field names.
const (
	FieldSubject          = "subject"
	FieldPaid             = "paid"
	FieldFiled            = "filed"
	FieldDueDate          = "dueDate"
	FieldPaidDate         = "paidDate"
	FieldFilingDate       = "filingDate"
	FieldAmount           = "amount"
	FieldPaymentMethod    = "paymentMethod"
	FieldPaymentReference = "paymentReference"
	FieldPeriodicity      = "periodicity"
	FieldRegime           = "regime"
	FieldNotes            = "notes"

	// AttachmentFieldPrefix addresses one attachment: "attachment:<name>".
	// An empty string value removes the attachment.
	AttachmentFieldPrefix = "attachment:"
)

// Apply sets one field of one obligation. The cascade invariant is enforced
// after every edit, so clearing subject also clears paid/filed.
func (s *ObligationSet) Apply(key ObligationKey, field string, value any) error {
	switch key.Kind() {
	case KindTax:
		t := s.tax(key).Clone()
		if err := applyTax(&t, field, value); err != nil {
			return fmt.Errorf("%s.%s: %w", key, field, err)
		}
		t.EnforceCascade()
		s.Taxes[key] = t
	case KindDeclaration:
		d := s.declaration(key).Clone()
		if err := applyDeclaration(&d, field, value); err != nil {
			return fmt.Errorf("%s.%s: %w", key, field, err)
		}
		d.EnforceCascade()
		s.Declarations[key] = d
	default:
		return fmt.Errorf("%w: %s", ErrUnknownObligation, key)
	}
	return nil
}

func applyTax(t *TaxObligationStatus, field string, value any) error {
	if name, ok := strings.CutPrefix(field, AttachmentFieldPrefix); ok {
		return applyAttachment(&t.Attachments, name, value)
	}
	var err error
	switch field {
	case FieldSubject:
		t.Subject, err = asBool(value)
	case FieldPaid:
		t.Paid, err = asBool(value)
	case FieldDueDate:
		t.DueDate, err = asDate(value)
	case FieldPaidDate:
		t.PaidDate, err = asDate(value)
	case FieldAmount:
		t.Amount, err = asDecimal(value)
	case FieldPaymentMethod:
		t.PaymentMethod, err = asString(value)
	case FieldPaymentReference:
		t.PaymentReference, err = asString(value)
	case FieldNotes:
		t.Notes, err = asString(value)
	default:
		return ErrUnknownField
	}
	return err
}

func applyDeclaration(d *DeclarationObligationStatus, field string, value any) error {
	if name, ok := strings.CutPrefix(field, AttachmentFieldPrefix); ok {
		return applyAttachment(&d.Attachments, name, value)
	}
	var err error
	switch field {
	case FieldSubject:
		d.Subject, err = asBool(value)
	case FieldFiled:
		d.Filed, err = asBool(value)
	case FieldPeriodicity:
		var p Periodicity
		switch v := value.(type) {
		case Periodicity:
			p = v
		case string:
			p = Periodicity(v)
		}
		if !p.IsValid() {
			return ErrInvalidValue
		}
		d.Periodicity = p
	case FieldFilingDate:
		d.FilingDate, err = asDate(value)
	case FieldDueDate:
		d.DueDate, err = asDate(value)
	case FieldRegime:
		d.Regime, err = asString(value)
	case FieldNotes:
		d.Notes, err = asString(value)
	default:
		return ErrUnknownField
	}
	return err
}

func applyAttachment(m *map[string]string, name string, value any) error {
	if name == "" {
		return ErrUnknownField
	}
	ref, err := asString(value)
	if err != nil {
		return err
	}
	if *m == nil {
		*m = map[string]string{}
	}
	if ref == "" {
		delete(*m, name)
		return nil
	}
	(*m)[name] = ref
	return nil
}

func asBool(value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, ErrInvalidValue
	}
	return b, nil
}

func asString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", ErrInvalidValue
	}
	return s, nil
}

func asDate(value any) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		d := DateOnly(v)
		return &d, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		d := DateOnly(*v)
		return &d, nil
	}
	return nil, ErrInvalidValue
}

func asDecimal(value any) (*decimal.Decimal, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		return &v, nil
	case *decimal.Decimal:
		return cloneDecimal(v), nil
	}
	return nil, ErrInvalidValue
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
