package migrate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fiscus/internal/obligations/models"
)

// Repair reasons reported in notices and metrics.
const (
	ReasonBoolCoerced     = "bool_coerced"
	ReasonNumberCoerced   = "number_coerced"
	ReasonDateCoerced     = "date_coerced"
	ReasonStringCoerced   = "string_coerced"
	ReasonInvalidDropped  = "invalid_dropped"
	ReasonAliasMapped     = "alias_mapped"
	ReasonAliasShadowed   = "alias_shadowed"
	ReasonMissingDefault  = "missing_defaulted"
	ReasonQuarterlyPadded = "quarterly_resized"
	ReasonCascadeRepaired = "cascade_repaired"
	ReasonKeyDiscarded    = "unknown_key_discarded"
	ReasonKeyReset        = "obligation_reset"
	ReasonMalformed       = "malformed_replaced"
	ReasonValidityDerived = "validity_end_derived"
)

var legacyDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.DateOnly,
	"02/01/2006",
	"2006/01/02",
}

var trueStrings = map[string]bool{
	"true": true, "1": true, "yes": true, "y": true, "oui": true, "on": true, "x": true,
}

var falseStrings = map[string]bool{
	"false": true, "0": true, "no": true, "n": true, "non": true, "off": true, "": true, "null": true,
}

// coerceBool casts v to a bool explicitly. It reports whether the input was
// already a boolean.
func coerceBool(v any) (value bool, exact bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case nil:
		return false, false
	case float64:
		return t != 0 && !math.IsNaN(t), false
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0 && !math.IsNaN(f), false
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if trueStrings[s] {
			return true, false
		}
		if falseStrings[s] {
			return false, false
		}
		return false, false
	}
	return false, false
}

// coerceDecimal parses numeric input. Unparseable values become zero.
func coerceDecimal(v any) (value *decimal.Decimal, exact bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			z := decimal.Zero
			return &z, false
		}
		return &d, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			z := decimal.Zero
			return &z, false
		}
		d := decimal.NewFromFloat(t)
		return &d, true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, " ", ""))
		s = strings.ReplaceAll(s, ",", ".")
		if s == "" {
			return nil, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			z := decimal.Zero
			return &z, false
		}
		return &d, s == t
	case bool:
		z := decimal.Zero
		if t {
			z = decimal.NewFromInt(1)
		}
		return &z, false
	}
	z := decimal.Zero
	return &z, false
}

// coerceDate accepts the canonical date forms plus legacy layouts and epoch
// milliseconds. Everything is normalised to midnight UTC.
func coerceDate(v any) (value *time.Time, exact bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false
		}
		for i, layout := range legacyDateLayouts {
			parsed, err := time.Parse(layout, s)
			if err != nil {
				continue
			}
			d := models.DateOnly(parsed)
			if !inDateRange(d) {
				return nil, false
			}
			return &d, i < 2 && parsed.Equal(d)
		}
		return nil, false
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return nil, false
		}
		return epochDate(ms)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || math.Abs(t) > maxEpochMillis {
			return nil, false
		}
		return epochDate(int64(t))
	}
	return nil, false
}

// maxEpochMillis is far beyond year 9999; larger values are rejected before
// conversion so int64 overflow never wraps into a plausible date.
const maxEpochMillis = 1e15

func epochDate(ms int64) (*time.Time, bool) {
	if ms > maxEpochMillis || ms < -maxEpochMillis {
		return nil, false
	}
	d := models.DateOnly(time.UnixMilli(ms).UTC())
	if !inDateRange(d) {
		return nil, false
	}
	return &d, false
}

// inDateRange reports whether t has a year that encoding/json can write back.
func inDateRange(t time.Time) bool {
	y := t.Year()
	return y >= 1 && y <= 9999
}

func coerceString(v any) (value string, exact bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case json.Number:
		return t.String(), false
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), false
	case bool:
		return strconv.FormatBool(t), false
	}
	return "", false
}

// coerceAttachments accepts a name->ref map, or a legacy list of refs which is
// keyed by position.
func coerceAttachments(v any) (value map[string]string, exact bool) {
	out := map[string]string{}
	switch t := v.(type) {
	case nil:
		return out, false
	case map[string]any:
		exact = true
		for k, raw := range t {
			s, ok := coerceString(raw)
			if !ok {
				exact = false
			}
			if s == "" {
				continue
			}
			out[k] = s
		}
		return out, exact
	case []any:
		for i, raw := range t {
			s, _ := coerceString(raw)
			if s == "" {
				continue
			}
			out["file"+strconv.Itoa(i+1)] = s
		}
		return out, false
	}
	return out, false
}
