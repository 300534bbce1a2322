package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// FieldDiff is one differing leaf between two records.
type FieldDiff struct {
	Path     string
	Expected any
	Actual   any
}

func (d FieldDiff) String() string {
	return fmt.Sprintf("%s: expected %v, got %v", d.Path, d.Expected, d.Actual)
}

// DiffRecords compares the fields a write must preserve (attestation,
// obligations, dashboard visibility) and returns every differing leaf path,
// e.g. "obligations.2024.patente.paid". Fields are compared in their
// persisted form, so equal dates in different time zones are still flagged.
func DiffRecords(expected, actual ClientFiscalRecord) []FieldDiff {
	var diffs []FieldDiff
	diffs = diffValues("attestation", toGeneric(expected.Attestation), toGeneric(actual.Attestation), diffs)
	diffs = diffValues("obligations", toGeneric(expected.ObligationsByYear), toGeneric(actual.ObligationsByYear), diffs)
	if expected.HiddenFromDashboard != actual.HiddenFromDashboard {
		diffs = append(diffs, FieldDiff{
			Path:     "hiddenFromDashboard",
			Expected: expected.HiddenFromDashboard,
			Actual:   actual.HiddenFromDashboard,
		})
	}
	return diffs
}

func toGeneric(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<unmarshalable: %v>", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}

func diffValues(path string, expected, actual any, diffs []FieldDiff) []FieldDiff {
	if isEmpty(expected) && isEmpty(actual) {
		return diffs
	}
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return append(diffs, FieldDiff{Path: path, Expected: expected, Actual: actual})
		}
		for _, k := range unionKeys(e, a) {
			diffs = diffValues(path+"."+k, e[k], a[k], diffs)
		}
		return diffs
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(e) {
			return append(diffs, FieldDiff{Path: path, Expected: expected, Actual: actual})
		}
		for i := range e {
			diffs = diffValues(path+"["+strconv.Itoa(i)+"]", e[i], a[i], diffs)
		}
		return diffs
	}
	if !reflect.DeepEqual(expected, actual) {
		diffs = append(diffs, FieldDiff{Path: path, Expected: expected, Actual: actual})
	}
	return diffs
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
