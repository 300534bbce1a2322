package models

import (
	"encoding/json"
	"fmt"
)

// ObligationSet holds the status of every obligation for one fiscal year.
// A complete set has an entry for every canonical key.
type ObligationSet struct {
	Taxes        map[ObligationKey]TaxObligationStatus
	Declarations map[ObligationKey]DeclarationObligationStatus
}

// NewObligationSet returns a complete set with schema defaults everywhere.
func NewObligationSet() ObligationSet {
	s := ObligationSet{
		Taxes:        make(map[ObligationKey]TaxObligationStatus, len(taxKeys)),
		Declarations: make(map[ObligationKey]DeclarationObligationStatus, len(declarationKeys)),
	}
	for _, k := range taxKeys {
		s.Taxes[k] = NewTaxStatus()
	}
	for _, k := range declarationKeys {
		s.Declarations[k] = NewDeclarationStatus(k)
	}
	return s
}

// Subject reports whether the obligation applies.
func (s ObligationSet) Subject(key ObligationKey) bool {
	switch key.Kind() {
	case KindTax:
		return s.Taxes[key].Subject
	case KindDeclaration:
		return s.Declarations[key].Subject
	}
	return false
}

// SetSubject sets applicability and re-applies the cascade for that key.
func (s *ObligationSet) SetSubject(key ObligationKey, subject bool) {
	switch key.Kind() {
	case KindTax:
		t := s.tax(key)
		t.Subject = subject
		t.EnforceCascade()
		s.Taxes[key] = t
	case KindDeclaration:
		d := s.declaration(key)
		d.Subject = subject
		d.EnforceCascade()
		s.Declarations[key] = d
	}
}

// Done reports whether a tax is paid or a declaration filed.
func (s ObligationSet) Done(key ObligationKey) bool {
	switch key.Kind() {
	case KindTax:
		return s.Taxes[key].Paid
	case KindDeclaration:
		return s.Declarations[key].Filed
	}
	return false
}

// EnforceCascade applies the cascade invariant to every key and returns the
// keys that had to be repaired.
func (s *ObligationSet) EnforceCascade() []ObligationKey {
	var repaired []ObligationKey
	for _, k := range taxKeys {
		t, ok := s.Taxes[k]
		if !ok {
			continue
		}
		if t.EnforceCascade() {
			s.Taxes[k] = t
			repaired = append(repaired, k)
		}
	}
	for _, k := range declarationKeys {
		d, ok := s.Declarations[k]
		if !ok {
			continue
		}
		if d.EnforceCascade() {
			s.Declarations[k] = d
			repaired = append(repaired, k)
		}
	}
	return repaired
}

// CascadeViolations lists keys where a non-applicable obligation is marked done.
func (s ObligationSet) CascadeViolations() []ObligationKey {
	var out []ObligationKey
	for _, k := range taxKeys {
		t := s.Taxes[k]
		if t.Subject {
			continue
		}
		violated := t.Paid
		for _, q := range t.Quarterly {
			violated = violated || q.Paid
		}
		if violated {
			out = append(out, k)
		}
	}
	for _, k := range declarationKeys {
		if d := s.Declarations[k]; !d.Subject && d.Filed {
			out = append(out, k)
		}
	}
	return out
}

// Validate checks that every key is present and structurally complete.
func (s ObligationSet) Validate() error {
	for _, k := range taxKeys {
		t, ok := s.Taxes[k]
		if !ok {
			return fmt.Errorf("%w: %s missing", ErrIncomplete, k)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	for _, k := range declarationKeys {
		d, ok := s.Declarations[k]
		if !ok {
			return fmt.Errorf("%w: %s missing", ErrIncomplete, k)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s ObligationSet) Clone() ObligationSet {
	out := ObligationSet{
		Taxes:        make(map[ObligationKey]TaxObligationStatus, len(s.Taxes)),
		Declarations: make(map[ObligationKey]DeclarationObligationStatus, len(s.Declarations)),
	}
	for k, t := range s.Taxes {
		out.Taxes[k] = t.Clone()
	}
	for k, d := range s.Declarations {
		out.Declarations[k] = d.Clone()
	}
	return out
}

// MarshalJSON flattens the set into the persisted {key: status} shape.
func (s ObligationSet) MarshalJSON() ([]byte, error) {
	flat := make(map[ObligationKey]any, len(s.Taxes)+len(s.Declarations))
	for k, t := range s.Taxes {
		flat[k] = t
	}
	for k, d := range s.Declarations {
		flat[k] = d
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the canonical flattened shape. Unknown keys are an
// error here; tolerant decoding of legacy payloads belongs to the migrator.
func (s *ObligationSet) UnmarshalJSON(data []byte) error {
	var flat map[ObligationKey]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	s.Taxes = make(map[ObligationKey]TaxObligationStatus)
	s.Declarations = make(map[ObligationKey]DeclarationObligationStatus)
	for k, raw := range flat {
		switch k.Kind() {
		case KindTax:
			t := NewTaxStatus()
			if err := json.Unmarshal(raw, &t); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			s.Taxes[k] = t
		case KindDeclaration:
			d := NewDeclarationStatus(k)
			if err := json.Unmarshal(raw, &d); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			s.Declarations[k] = d
		default:
			return fmt.Errorf("%w: %s", ErrUnknownObligation, k)
		}
	}
	return nil
}

func (s *ObligationSet) tax(key ObligationKey) TaxObligationStatus {
	if s.Taxes == nil {
		s.Taxes = make(map[ObligationKey]TaxObligationStatus)
	}
	t, ok := s.Taxes[key]
	if !ok {
		t = NewTaxStatus()
	}
	return t
}

func (s *ObligationSet) declaration(key ObligationKey) DeclarationObligationStatus {
	if s.Declarations == nil {
		s.Declarations = make(map[ObligationKey]DeclarationObligationStatus)
	}
	d, ok := s.Declarations[key]
	if !ok {
		d = NewDeclarationStatus(key)
	}
	return d
}
