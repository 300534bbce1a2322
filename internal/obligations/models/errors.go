package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownObligation is returned for keys outside the canonical set.
	ErrUnknownObligation = errors.New("unknown obligation")
	// ErrUnknownField is returned when an edit names a field the obligation does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidValue is returned when an edit value has the wrong type.
	ErrInvalidValue = errors.New("invalid value")
	// ErrIncomplete is returned by structural validation.
	ErrIncomplete = errors.New("incomplete obligation")
)

func errMissingField(field string) error {
	return fmt.Errorf("%w: %s", ErrIncomplete, field)
}
