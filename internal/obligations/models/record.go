package models

import (
	"regexp"
	"sort"
	"time"
)

// Year is a four digit fiscal year, used as a map key in the persisted shape.
type Year string

var yearPattern = regexp.MustCompile(`^[0-9]{4}$`)

// IsValid reports whether y is a four digit year.
func (y Year) IsValid() bool {
	return yearPattern.MatchString(string(y))
}

// YearOf returns the fiscal year containing t.
func YearOf(t time.Time) Year {
	return Year(t.Format("2006"))
}

// ClientFiscalRecord is everything tracked for one client. The remote copy is
// authoritative; this core holds working and cached copies.
type ClientFiscalRecord struct {
	ClientID            string                 `json:"-"`
	Attestation         Attestation            `json:"attestation"`
	ObligationsByYear   map[Year]ObligationSet `json:"obligations"`
	HiddenFromDashboard bool                   `json:"hiddenFromDashboard"`
	SelectedYear        Year                   `json:"selectedYear"`
	UpdatedAt           time.Time              `json:"updatedAt"`
}

// NewClientFiscalRecord returns an empty record for a client that has never been saved.
func NewClientFiscalRecord(clientID string) ClientFiscalRecord {
	return ClientFiscalRecord{
		ClientID:          clientID,
		ObligationsByYear: map[Year]ObligationSet{},
	}
}

// Years returns the recorded years in ascending order.
func (r ClientFiscalRecord) Years() []Year {
	years := make([]Year, 0, len(r.ObligationsByYear))
	for y := range r.ObligationsByYear {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i] < years[j] })
	return years
}

// Obligations returns the set recorded for year, if any.
func (r ClientFiscalRecord) Obligations(year Year) (ObligationSet, bool) {
	s, ok := r.ObligationsByYear[year]
	return s, ok
}

// Clone returns a deep copy.
func (r ClientFiscalRecord) Clone() ClientFiscalRecord {
	out := r
	out.Attestation = r.Attestation.Clone()
	out.ObligationsByYear = make(map[Year]ObligationSet, len(r.ObligationsByYear))
	for y, s := range r.ObligationsByYear {
		out.ObligationsByYear[y] = s.Clone()
	}
	return out
}
