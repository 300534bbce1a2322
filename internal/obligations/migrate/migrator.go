// Package migrate turns whatever was persisted for a client (absent, legacy
// shaped, partially corrupt) into canonical models. It never fails: anything
// it cannot read is replaced with a schema default and reported as a notice.
package migrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"fiscus/internal/obligations/metrics"
	"fiscus/internal/obligations/models"
	"fiscus/pkg/platform/clock"
)

// Notice records one coercion or repair. Notices are informational; a record
// that produced notices is still valid.
type Notice struct {
	Year       models.Year
	Obligation models.ObligationKey
	Field      string
	Reason     string
	Detail     string
}

func (n Notice) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{string(n.Year), string(n.Obligation), n.Field} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	path := strings.Join(parts, ".")
	if n.Detail == "" {
		return fmt.Sprintf("%s: %s", path, n.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", path, n.Reason, n.Detail)
}

// Report collects the notices produced by one migration.
type Report struct {
	Notices []Notice
}

// Repaired reports whether anything had to be coerced.
func (r Report) Repaired() bool { return len(r.Notices) > 0 }

// Count returns how many notices carry reason.
func (r Report) Count(reason string) int {
	n := 0
	for _, notice := range r.Notices {
		if notice.Reason == reason {
			n++
		}
	}
	return n
}

// Migrator is stateless apart from its collaborators and safe for concurrent use.
type Migrator struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   clock.Clock
}

type Option func(*Migrator)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) {
		m.logger = logger
	}
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Migrator) {
		m.metrics = metrics
	}
}

// WithClock sets the clock used to date legacy records that carry no year.
func WithClock(c clock.Clock) Option {
	return func(m *Migrator) {
		m.clock = c
	}
}

func New(opts ...Option) *Migrator {
	m := &Migrator{
		logger: slog.New(slog.DiscardHandler),
		clock:  clock.Real{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DecodeRecord migrates a raw persisted payload. An empty payload yields an
// empty record; an unparseable one yields an empty record plus a notice.
func (m *Migrator) DecodeRecord(ctx context.Context, clientID string, raw []byte) (models.ClientFiscalRecord, Report) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.NewClientFiscalRecord(clientID), Report{}
	}
	v, err := decodeGeneric(raw)
	if err != nil {
		r := m.newRun(ctx, clientID)
		r.note("", "", "", ReasonMalformed, err.Error())
		return models.NewClientFiscalRecord(clientID), r.report
	}
	return m.MigrateRecord(ctx, clientID, v)
}

// MigrateRecord migrates a whole client record from any JSON-like value.
func (m *Migrator) MigrateRecord(ctx context.Context, clientID string, v any) (models.ClientFiscalRecord, Report) {
	r := m.newRun(ctx, clientID)
	rec := r.record(normalize(v))
	return rec, r.report
}

// MigrateSet migrates the obligations persisted for one year.
func (m *Migrator) MigrateSet(ctx context.Context, clientID string, year models.Year, v any) (models.ObligationSet, Report) {
	r := m.newRun(ctx, clientID)
	set := r.set(year, normalize(v))
	return set, r.report
}

type run struct {
	ctx      context.Context
	m        *Migrator
	clientID string
	report   Report
}

func (m *Migrator) newRun(ctx context.Context, clientID string) *run {
	return &run{ctx: ctx, m: m, clientID: clientID}
}

func (r *run) note(year models.Year, key models.ObligationKey, field, reason, detail string) {
	r.report.Notices = append(r.report.Notices, Notice{
		Year:       year,
		Obligation: key,
		Field:      field,
		Reason:     reason,
		Detail:     detail,
	})
	r.m.metrics.RecordRepair(reason)
	msg := "obligation field repaired"
	if reason == ReasonKeyDiscarded {
		msg = "unknown obligation key discarded"
	}
	r.m.logger.WarnContext(r.ctx, msg,
		"client_id", r.clientID,
		"year", string(year),
		"obligation", string(key),
		"field", field,
		"reason", reason,
		"detail", detail,
	)
}

var recordAliases = map[string][]string{
	"attestation":         {"attestationConformite", "complianceAttestation"},
	"obligations":         {"obligationsByYear", "fiscalObligations"},
	"hiddenFromDashboard": {"hideFromDashboard", "hidden"},
	"selectedYear":        {"year", "currentYear"},
	"updatedAt":           {"lastUpdated", "updated_at"},
}

// ignoredRecordFields are identity fields some writers embedded in the payload.
var ignoredRecordFields = map[string]bool{"clientId": true, "id": true}

func (r *run) record(v any) models.ClientFiscalRecord {
	rec := models.NewClientFiscalRecord(r.clientID)
	if v == nil {
		return rec
	}
	obj, ok := v.(map[string]any)
	if !ok {
		r.note("", "", "", ReasonMalformed, fmt.Sprintf("record is %T", v))
		return rec
	}
	fields := r.pick("", "", obj, recordAliases, ignoredRecordFields)

	if raw, ok := fields["attestation"]; ok {
		rec.Attestation = r.attestation(raw)
	}
	if raw, ok := fields["hiddenFromDashboard"]; ok {
		var exact bool
		rec.HiddenFromDashboard, exact = coerceBool(raw)
		if !exact {
			r.note("", "", "hiddenFromDashboard", ReasonBoolCoerced, fmt.Sprint(raw))
		}
	}
	if raw, ok := fields["selectedYear"]; ok {
		rec.SelectedYear = r.year(raw)
	}
	if raw, ok := fields["updatedAt"]; ok {
		rec.UpdatedAt = r.timestamp(raw)
	}
	if raw, ok := fields["obligations"]; ok {
		rec.ObligationsByYear = r.obligationsByYear(raw, rec)
	}
	return rec
}

// pick resolves canonical and legacy field names of one object. Canonical
// names win over aliases; unknown names are reported and dropped.
func (r *run) pick(year models.Year, key models.ObligationKey, obj map[string]any, aliases map[string][]string, ignored map[string]bool) map[string]any {
	out := make(map[string]any, len(aliases))
	known := make(map[string]bool)
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		known[name] = true
		if raw, ok := obj[name]; ok {
			out[name] = raw
		}
		for _, alias := range aliases[name] {
			known[alias] = true
			raw, ok := obj[alias]
			if !ok {
				continue
			}
			if _, taken := out[name]; taken {
				r.note(year, key, alias, ReasonAliasShadowed, "canonical "+name+" kept")
				continue
			}
			out[name] = raw
			r.note(year, key, name, ReasonAliasMapped, "from "+alias)
		}
	}
	for _, name := range sortedKeys(obj) {
		if !known[name] && !ignored[name] {
			r.note(year, key, name, ReasonKeyDiscarded, "")
		}
	}
	return out
}

var attestationAliases = map[string][]string{
	"creationDate":    {"createdAt", "dateCreation", "issueDate"},
	"validityEndDate": {"expiryDate", "dateFinValidite", "validUntil"},
	"showInAlert":     {"showAlert", "alert", "displayInAlert"},
}

func (r *run) attestation(v any) models.Attestation {
	var a models.Attestation
	if v == nil {
		return a
	}
	obj, ok := v.(map[string]any)
	if !ok {
		r.note("", "", "attestation", ReasonMalformed, fmt.Sprintf("attestation is %T", v))
		return a
	}
	fields := r.pick("", "", obj, attestationAliases, nil)

	creation, exact := coerceDate(fields["creationDate"])
	if creation != nil && !inDateRange(models.ValidityEnd(*creation)) {
		creation, exact = nil, false
	}
	if !exact {
		r.note("", "", "attestation.creationDate", ReasonDateCoerced, fmt.Sprint(fields["creationDate"]))
	}
	a.SetCreationDate(creation)

	if raw, ok := fields["validityEndDate"]; ok {
		stored, _ := coerceDate(raw)
		if !sameDate(stored, a.ValidityEndDate) {
			r.note("", "", "attestation.validityEndDate", ReasonValidityDerived, fmt.Sprint(raw))
		}
	}
	if raw, ok := fields["showInAlert"]; ok {
		a.ShowInAlert, exact = coerceBool(raw)
		if !exact {
			r.note("", "", "attestation.showInAlert", ReasonBoolCoerced, fmt.Sprint(raw))
		}
	}
	return a
}

func (r *run) year(v any) models.Year {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if t == "" || models.Year(t).IsValid() {
			return models.Year(t)
		}
	case json.Number:
		if y := models.Year(t.String()); y.IsValid() {
			r.note("", "", "selectedYear", ReasonStringCoerced, t.String())
			return y
		}
	case float64:
		if y := models.Year(strconv.FormatFloat(t, 'f', -1, 64)); y.IsValid() {
			r.note("", "", "selectedYear", ReasonStringCoerced, string(y))
			return y
		}
	}
	r.note("", "", "selectedYear", ReasonInvalidDropped, fmt.Sprint(v))
	return ""
}

func (r *run) timestamp(v any) time.Time {
	switch t := v.(type) {
	case nil:
		return time.Time{}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil && inDateRange(parsed.UTC()) {
			return parsed.UTC()
		}
	case json.Number:
		if ms, err := t.Int64(); err == nil && ms <= maxEpochMillis && ms >= -maxEpochMillis {
			if ts := time.UnixMilli(ms).UTC(); inDateRange(ts) {
				r.note("", "", "updatedAt", ReasonDateCoerced, t.String())
				return ts
			}
		}
	case float64:
		if !math.IsNaN(t) && math.Abs(t) <= maxEpochMillis {
			if ts := time.UnixMilli(int64(t)).UTC(); inDateRange(ts) {
				r.note("", "", "updatedAt", ReasonDateCoerced, fmt.Sprint(t))
				return ts
			}
		}
	}
	r.note("", "", "updatedAt", ReasonInvalidDropped, fmt.Sprint(v))
	return time.Time{}
}

// obligationsByYear migrates the per-year map. A flat legacy map of
// obligations with no year level is filed under the record's selected year,
// or the year of its last update, or the current year.
func (r *run) obligationsByYear(v any, rec models.ClientFiscalRecord) map[models.Year]models.ObligationSet {
	out := map[models.Year]models.ObligationSet{}
	if v == nil {
		return out
	}
	obj, ok := v.(map[string]any)
	if !ok {
		r.note("", "", "obligations", ReasonMalformed, fmt.Sprintf("obligations is %T", v))
		return out
	}

	flat := map[string]any{}
	for _, name := range sortedKeys(obj) {
		if y := models.Year(name); y.IsValid() {
			out[y] = r.set(y, obj[name])
			continue
		}
		if _, _, isKey := resolveKey(name); isKey {
			flat[name] = obj[name]
			continue
		}
		r.note("", "", "obligations."+name, ReasonKeyDiscarded, "")
	}
	if len(flat) > 0 {
		year := r.legacyYear(rec)
		if _, exists := out[year]; exists {
			r.note(year, "", "", ReasonAliasShadowed, "flat legacy obligations ignored")
		} else {
			r.note(year, "", "", ReasonAliasMapped, "flat legacy obligations")
			out[year] = r.set(year, flat)
		}
	}
	return out
}

func (r *run) legacyYear(rec models.ClientFiscalRecord) models.Year {
	if rec.SelectedYear.IsValid() {
		return rec.SelectedYear
	}
	if !rec.UpdatedAt.IsZero() {
		return models.YearOf(rec.UpdatedAt)
	}
	return models.YearOf(r.m.clock.Now())
}

func (r *run) set(year models.Year, v any) models.ObligationSet {
	set := models.NewObligationSet()
	if v == nil {
		return set
	}
	obj, ok := v.(map[string]any)
	if !ok {
		r.note(year, "", "", ReasonMalformed, fmt.Sprintf("obligation set is %T", v))
		return set
	}

	resolved := make(map[models.ObligationKey]any, len(obj))
	from := make(map[models.ObligationKey]string, len(obj))
	// Canonical names first so they always win over aliases.
	names := sortedKeys(obj)
	sort.SliceStable(names, func(i, j int) bool {
		return models.ObligationKey(names[i]).IsValid() && !models.ObligationKey(names[j]).IsValid()
	})
	for _, name := range names {
		key, alias, known := resolveKey(name)
		if !known {
			r.note(year, models.ObligationKey(name), "", ReasonKeyDiscarded, "")
			continue
		}
		if _, taken := resolved[key]; taken {
			r.note(year, key, "", ReasonAliasShadowed, name+" ignored, "+from[key]+" kept")
			continue
		}
		if alias {
			r.note(year, key, "", ReasonAliasMapped, "from "+name)
		}
		resolved[key] = obj[name]
		from[key] = name
	}

	for _, key := range models.TaxKeys() {
		raw, present := resolved[key]
		if !present {
			r.note(year, key, "", ReasonMissingDefault, "")
			continue
		}
		set.Taxes[key] = migrateStatus(r, year, key, raw, taxFields, models.NewTaxStatus)
	}
	for _, key := range models.DeclarationKeys() {
		raw, present := resolved[key]
		if !present {
			r.note(year, key, "", ReasonMissingDefault, "")
			continue
		}
		set.Declarations[key] = migrateStatus(r, year, key, raw, declarationFields, func() models.DeclarationObligationStatus {
			return models.NewDeclarationStatus(key)
		})
	}

	for _, key := range set.EnforceCascade() {
		field := models.FieldPaid
		if key.Kind() == models.KindDeclaration {
			field = models.FieldFiled
		}
		r.note(year, key, field, ReasonCascadeRepaired, "subject is false")
	}
	return set
}

// status is the constraint satisfied by both obligation shapes.
type status interface {
	Validate() error
}

// migrateStatus runs the coercion table for one obligation. A status that
// still fails validation afterwards is replaced by the default for that key
// alone.
func migrateStatus[T status](r *run, year models.Year, key models.ObligationKey, raw any, rules []fieldRule[T], fresh func() T) T {
	out := fresh()
	obj, ok := raw.(map[string]any)
	if !ok {
		r.note(year, key, "", ReasonMalformed, fmt.Sprintf("obligation is %T", raw))
		return out
	}

	aliases := make(map[string][]string, len(rules))
	for _, rule := range rules {
		aliases[rule.name] = rule.aliases
	}
	fields := r.pick(year, key, obj, aliases, nil)

	for _, rule := range rules {
		value, present := fields[rule.name]
		if !present {
			if rule.required {
				r.note(year, key, rule.name, ReasonMissingDefault, "")
			}
			continue
		}
		if !rule.set(key, &out, value) {
			r.note(year, key, rule.name, rule.reason, fmt.Sprint(value))
		}
	}

	if err := out.Validate(); err != nil {
		r.note(year, key, "", ReasonKeyReset, err.Error())
		return fresh()
	}
	return out
}

// decodeGeneric decodes JSON keeping numbers exact.
func decodeGeneric(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalize converts typed values (structs, typed maps) into the generic
// JSON shape the coercion table works on.
func normalize(v any) any {
	switch v.(type) {
	case nil, map[string]any, []any, string, bool, float64, json.Number:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	out, err := decodeGeneric(raw)
	if err != nil {
		return v
	}
	return out
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
