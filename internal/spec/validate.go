package spec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Validation error codes (E100-E199). Codes are stable; messages are not.
const (
	ErrUnknownKey         = "E100" // key not in the whitelist grammar
	ErrTypeMismatch       = "E101" // wrong JSON type for a known key
	ErrInvalidEnum        = "E102" // value not in the enum whitelist
	ErrOutOfRange         = "E103" // value outside permitted bounds
	ErrMissingRequired    = "E104" // required key absent
	ErrUnsupportedVersion = "E105" // version missing or not supported
	ErrOversizedInput     = "E106" // payload exceeds size/leaf/depth caps
	ErrAmbiguousFilter    = "E107" // conflicting filter forms supplied
	ErrDuplicateField     = "E108" // field named twice where order matters
	ErrUnresolvedSortKey  = "E109" // sort key references nothing requested
)

// Violation is one rejected field. Path uses dotted notation from the
// payload root ("filters.date.between").
type Violation struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (v Violation) Error() string {
	return fmt.Sprintf("[%s] %s: %s", v.Code, v.Path, v.Message)
}

// Violations is the complete list of problems found in one payload.
// Validation never fails fast: the caller gets every violation at once.
type Violations []Violation

// Error implements the error interface.
func (vs Violations) Error() string {
	if len(vs) == 1 {
		return vs[0].Error()
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Error()
	}
	return fmt.Sprintf("%d violations: %s", len(vs), strings.Join(parts, "; "))
}

// strippableKeys are recognized tenant/scope spellings that are discarded
// rather than rejected. The compiler never accepts a tenant scope from the
// payload; the authorization context is supplied out of band.
var strippableKeys = map[string]bool{
	"tenant_id":    true,
	"user_id":      true,
	"household_id": true,
	"scope":        true,
}

// topLevelKeys is the closed set of accepted root keys.
var topLevelKeys = map[string]bool{
	"version":    true,
	"entity":     true,
	"filters":    true,
	"group_by":   true,
	"aggregate":  true,
	"sort":       true,
	"limit":      true,
	"projection": true,
}

// Validate checks a decoded payload against the whitelist grammar for its
// declared version and returns a strongly typed ValidSpec.
//
// On failure the error is a Violations value listing every rejected field,
// not just the first. Validate is pure: no side effects, input not mutated.
func Validate(doc map[string]any, caps Caps) (*ValidSpec, error) {
	var vs Violations
	add := func(path, code, format string, args ...any) {
		vs = append(vs, Violation{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if shape := checkShape(doc, caps); len(shape) > 0 {
		// Oversized payloads are rejected before any structural walk.
		return nil, shape
	}

	// Version gates everything else: an unknown grammar cannot be validated.
	version, ok := intField(doc, "version")
	if !ok {
		return nil, Violations{{Path: "version", Code: ErrUnsupportedVersion, Message: "version is required and must be an integer"}}
	}
	if !SupportedVersions[int(version)] {
		return nil, Violations{{Path: "version", Code: ErrUnsupportedVersion, Message: fmt.Sprintf("schema version %d is not supported", version)}}
	}

	out := &ValidSpec{
		Version: int(version),
		GroupBy: GroupNone,
	}

	// Unknown keys reject the whole payload; recognized scope spellings are
	// recorded for the normalizer to strip and log.
	for _, key := range sortedKeys(doc) {
		switch {
		case topLevelKeys[key]:
		case strippableKeys[key]:
			out.Stripped = append(out.Stripped, key)
		default:
			add(key, ErrUnknownKey, "unknown key %q", key)
		}
	}

	// entity (required)
	if raw, present := doc["entity"]; !present {
		add("entity", ErrMissingRequired, "entity is required")
	} else if s, ok := asString(raw); !ok {
		add("entity", ErrTypeMismatch, "entity must be a string")
	} else {
		switch Entity(s) {
		case EntityExpense, EntityIncome, EntityOperation:
			out.Entity = Entity(s)
		default:
			add("entity", ErrInvalidEnum, "entity %q is not one of expense, income, operation", s)
		}
	}

	// group_by (optional, defaults to none)
	if raw, present := doc["group_by"]; present {
		if s, ok := asString(raw); !ok {
			add("group_by", ErrTypeMismatch, "group_by must be a string")
		} else {
			switch GroupBy(s) {
			case GroupNone, GroupDate, GroupCategory, GroupWeekday:
				out.GroupBy = GroupBy(s)
			default:
				add("group_by", ErrInvalidEnum, "group_by %q is not one of none, date, category, weekday", s)
			}
		}
	}

	// aggregate (optional; absence is a legacy shape the normalizer resolves)
	if raw, present := doc["aggregate"]; present {
		out.Aggregates = validateAggregates(raw, out.GroupBy, add)
	}

	// filters (optional)
	if raw, present := doc["filters"]; present {
		if obj, ok := raw.(map[string]any); !ok {
			add("filters", ErrTypeMismatch, "filters must be an object")
		} else {
			out.Filters = validateFilters(obj, add)
		}
	}

	// limit (optional; normalizer defaults and clamps)
	if raw, present := doc["limit"]; present {
		if n, ok := asInt(raw); !ok {
			add("limit", ErrTypeMismatch, "limit must be an integer")
		} else if n < 1 {
			add("limit", ErrOutOfRange, "limit must be positive, got %d", n)
		} else {
			out.Limit = int(n)
		}
	}

	// projection (list mode only)
	if raw, present := doc["projection"]; present {
		switch {
		case out.GroupBy != GroupNone:
			add("projection", ErrOutOfRange, "projection requires group_by = none")
		case len(out.Aggregates) > 0:
			add("projection", ErrOutOfRange, "projection applies to detail listings, not aggregate queries")
		default:
			out.Projection = validateProjection(raw, add)
		}
	}

	// sort (validated last: keys must resolve against aggregates/grouping)
	if raw, present := doc["sort"]; present {
		out.Sort = validateSort(raw, out, add)
	}

	if len(vs) > 0 {
		return nil, vs
	}
	return out, nil
}

// validateAggregates checks the aggregate set. Duplicates collapse silently
// (it is a set); an explicitly empty set is only meaningful for list
// queries, so grouped queries reject it.
func validateAggregates(raw any, groupBy GroupBy, add func(string, string, string, ...any)) []Aggregate {
	arr, ok := raw.([]any)
	if !ok {
		add("aggregate", ErrTypeMismatch, "aggregate must be an array of strings")
		return nil
	}

	seen := make(map[Aggregate]bool, len(arr))
	aggs := make([]Aggregate, 0, len(arr))
	for i, elem := range arr {
		s, ok := asString(elem)
		if !ok {
			add(fmt.Sprintf("aggregate[%d]", i), ErrTypeMismatch, "aggregate entries must be strings")
			continue
		}
		a := Aggregate(s)
		switch a {
		case AggSum, AggCount, AggAvg, AggMax, AggMin:
		default:
			add(fmt.Sprintf("aggregate[%d]", i), ErrInvalidEnum, "aggregate %q is not one of sum, count, avg, max, min", s)
			continue
		}
		if !seen[a] {
			seen[a] = true
			aggs = append(aggs, a)
		}
	}

	if len(arr) == 0 && groupBy != GroupNone {
		add("aggregate", ErrOutOfRange, "an empty aggregate set requires group_by = none")
	}

	return aggs
}

// validateFilters checks the filter composite.
func validateFilters(obj map[string]any, add func(string, string, string, ...any)) Filters {
	var f Filters

	for _, key := range sortedKeys(obj) {
		switch key {
		case "date", "category", "amount", "text":
		default:
			add("filters."+key, ErrUnknownKey, "unknown filter %q", key)
		}
	}

	if raw, present := obj["date"]; present {
		if sub, ok := raw.(map[string]any); !ok {
			add("filters.date", ErrTypeMismatch, "date filter must be an object")
		} else {
			f.Date = validateDateFilter(sub, add)
		}
	}
	if raw, present := obj["category"]; present {
		if sub, ok := raw.(map[string]any); !ok {
			add("filters.category", ErrTypeMismatch, "category filter must be an object")
		} else {
			f.Category = validateCategoryFilter(sub, add)
		}
	}
	if raw, present := obj["amount"]; present {
		if sub, ok := raw.(map[string]any); !ok {
			add("filters.amount", ErrTypeMismatch, "amount filter must be an object")
		} else {
			f.Amount = validateAmountFilter(sub, add)
		}
	}
	if raw, present := obj["text"]; present {
		if sub, ok := raw.(map[string]any); !ok {
			add("filters.text", ErrTypeMismatch, "text filter must be an object")
		} else {
			f.Text = validateTextFilter(sub, add)
		}
	}

	return f
}

// maxDateSpanDays is the widest absolute interval the grammar accepts,
// counted inclusively like every date range here. A leap year is 366 days;
// anything wider is an unbounded scan in disguise.
const maxDateSpanDays = 366

// validateDateFilter checks the three accepted date shapes: a named period,
// a between pair, or the deprecated from/to spelling.
func validateDateFilter(obj map[string]any, add func(string, string, string, ...any)) *DateFilter {
	for _, key := range sortedKeys(obj) {
		switch key {
		case "period", "between", "from", "to":
		default:
			add("filters.date."+key, ErrUnknownKey, "unknown key %q", key)
		}
	}

	_, hasPeriod := obj["period"]
	_, hasBetween := obj["between"]
	_, hasFrom := obj["from"]
	_, hasTo := obj["to"]

	forms := 0
	if hasPeriod {
		forms++
	}
	if hasBetween {
		forms++
	}
	if hasFrom || hasTo {
		forms++
	}
	if forms == 0 {
		add("filters.date", ErrMissingRequired, "date filter needs a period or an absolute interval")
		return nil
	}
	if forms > 1 {
		add("filters.date", ErrAmbiguousFilter, "date filter must use exactly one of period, between, from/to")
		return nil
	}

	df := &DateFilter{}

	if hasPeriod {
		s, ok := asString(obj["period"])
		if !ok {
			add("filters.date.period", ErrTypeMismatch, "period must be a string")
			return nil
		}
		switch Period(s) {
		case PeriodToday, PeriodYesterday, PeriodWeek, PeriodMonth, PeriodYear:
			df.Period = Period(s)
			return df
		default:
			add("filters.date.period", ErrInvalidEnum, "period %q is not one of today, yesterday, week, month, year", s)
			return nil
		}
	}

	var fromRaw, toRaw any
	if hasBetween {
		arr, ok := obj["between"].([]any)
		if !ok || len(arr) != 2 {
			add("filters.date.between", ErrTypeMismatch, "between must be an array of two dates")
			return nil
		}
		fromRaw, toRaw = arr[0], arr[1]
	} else {
		// Deprecated spelling; the normalizer logs the rewrite.
		if !hasFrom || !hasTo {
			add("filters.date", ErrMissingRequired, "from and to must both be present")
			return nil
		}
		fromRaw, toRaw = obj["from"], obj["to"]
		df.LegacyRange = true
	}

	from, okFrom := asDate(fromRaw)
	if !okFrom {
		add("filters.date", ErrTypeMismatch, "interval start must be a YYYY-MM-DD date")
	}
	to, okTo := asDate(toRaw)
	if !okTo {
		add("filters.date", ErrTypeMismatch, "interval end must be a YYYY-MM-DD date")
	}
	if !okFrom || !okTo {
		return nil
	}
	if to.Before(from) {
		add("filters.date", ErrOutOfRange, "interval end %s precedes start %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
		return nil
	}
	if int(to.Sub(from)/(24*time.Hour))+1 > maxDateSpanDays {
		add("filters.date", ErrOutOfRange, "interval spans more than 366 days")
		return nil
	}

	df.From, df.To = from, to
	return df
}

// validateCategoryFilter checks the category filter. Exactly one match mode
// must be present.
func validateCategoryFilter(obj map[string]any, add func(string, string, string, ...any)) *CategoryFilter {
	for _, key := range sortedKeys(obj) {
		switch key {
		case "eq", "contains", "id":
		default:
			add("filters.category."+key, ErrUnknownKey, "unknown key %q", key)
		}
	}

	_, hasEq := obj["eq"]
	_, hasContains := obj["contains"]
	_, hasID := obj["id"]

	modes := 0
	for _, present := range []bool{hasEq, hasContains, hasID} {
		if present {
			modes++
		}
	}
	if modes == 0 {
		add("filters.category", ErrMissingRequired, "category filter needs one of eq, contains, id")
		return nil
	}
	if modes > 1 {
		add("filters.category", ErrAmbiguousFilter, "category filter must use exactly one of eq, contains, id")
		return nil
	}

	switch {
	case hasEq:
		s, ok := asString(obj["eq"])
		if !ok || s == "" {
			add("filters.category.eq", ErrTypeMismatch, "eq must be a non-empty string")
			return nil
		}
		return &CategoryFilter{Match: CategoryEq, Name: s}
	case hasContains:
		s, ok := asString(obj["contains"])
		if !ok || s == "" {
			add("filters.category.contains", ErrTypeMismatch, "contains must be a non-empty string")
			return nil
		}
		if len(s) > maxMatchLen {
			add("filters.category.contains", ErrOutOfRange, "contains pattern exceeds %d bytes", maxMatchLen)
			return nil
		}
		return &CategoryFilter{Match: CategoryContains, Name: s}
	default:
		n, ok := asInt(obj["id"])
		if !ok || n < 0 {
			add("filters.category.id", ErrTypeMismatch, "id must be a non-negative integer")
			return nil
		}
		return &CategoryFilter{Match: CategoryID, ID: n}
	}
}

// maxMatchLen caps substring patterns. Long patterns are useless for
// matching and expensive for LIKE scans.
const maxMatchLen = 64

// validateAmountFilter checks the amount bounds. Bounds are decimals with
// at most two fractional digits so comparison against the cents column is
// exact.
func validateAmountFilter(obj map[string]any, add func(string, string, string, ...any)) *AmountFilter {
	for _, key := range sortedKeys(obj) {
		switch key {
		case "min", "max":
		default:
			add("filters.amount."+key, ErrUnknownKey, "unknown key %q", key)
		}
	}

	af := &AmountFilter{}
	if raw, present := obj["min"]; present {
		af.Min = validateBound(raw, "filters.amount.min", add)
	}
	if raw, present := obj["max"]; present {
		af.Max = validateBound(raw, "filters.amount.max", add)
	}
	if af.Min == nil && af.Max == nil {
		add("filters.amount", ErrMissingRequired, "amount filter needs min or max")
		return nil
	}
	if af.Min != nil && af.Max != nil && af.Min.Cmp(af.Max) > 0 {
		add("filters.amount", ErrOutOfRange, "min exceeds max")
		return nil
	}
	return af
}

// validateBound parses one decimal bound.
func validateBound(raw any, path string, add func(string, string, string, ...any)) *apd.Decimal {
	var text string
	switch t := raw.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = t
	case int:
		text = fmt.Sprintf("%d", t)
	case int64:
		text = fmt.Sprintf("%d", t)
	default:
		add(path, ErrTypeMismatch, "amount bound must be a decimal number")
		return nil
	}

	d, _, err := apd.NewFromString(text)
	if err != nil {
		add(path, ErrTypeMismatch, "amount bound %q is not a valid decimal", text)
		return nil
	}
	if d.Negative {
		add(path, ErrOutOfRange, "amount bound must not be negative")
		return nil
	}
	if _, ok := CentsOf(d); !ok {
		add(path, ErrOutOfRange, "amount bound %q has more than two decimal places", text)
		return nil
	}
	return d
}

// validateTextFilter checks the free-text filter. The target column is
// fixed to the operation note; callers never choose columns.
func validateTextFilter(obj map[string]any, add func(string, string, string, ...any)) *TextFilter {
	for _, key := range sortedKeys(obj) {
		if key != "contains" {
			add("filters.text."+key, ErrUnknownKey, "unknown key %q", key)
		}
	}

	raw, present := obj["contains"]
	if !present {
		add("filters.text", ErrMissingRequired, "text filter needs contains")
		return nil
	}
	s, ok := asString(raw)
	if !ok || s == "" {
		add("filters.text.contains", ErrTypeMismatch, "contains must be a non-empty string")
		return nil
	}
	if len(s) > maxMatchLen {
		add("filters.text.contains", ErrOutOfRange, "contains pattern exceeds %d bytes", maxMatchLen)
		return nil
	}
	return &TextFilter{Contains: s}
}

// validateProjection checks the projection field list for list queries.
func validateProjection(raw any, add func(string, string, string, ...any)) []Field {
	arr, ok := raw.([]any)
	if !ok {
		add("projection", ErrTypeMismatch, "projection must be an array of field names")
		return nil
	}
	if len(arr) == 0 {
		add("projection", ErrMissingRequired, "projection must not be empty when present")
		return nil
	}

	seen := make(map[Field]bool, len(arr))
	fields := make([]Field, 0, len(arr))
	for i, elem := range arr {
		s, ok := asString(elem)
		if !ok {
			add(fmt.Sprintf("projection[%d]", i), ErrTypeMismatch, "projection entries must be strings")
			continue
		}
		f := Field(s)
		switch f {
		case FieldDate, FieldAmount, FieldCategory, FieldNote:
		default:
			add(fmt.Sprintf("projection[%d]", i), ErrInvalidEnum, "field %q is not projectable", s)
			continue
		}
		if seen[f] {
			add(fmt.Sprintf("projection[%d]", i), ErrDuplicateField, "field %q appears twice", s)
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	return fields
}

// validateSort checks the sort sequence. Each key must resolve to a
// requested aggregate, the grouping dimension, or (list mode) a raw
// whitelisted column.
func validateSort(raw any, out *ValidSpec, add func(string, string, string, ...any)) []SortKey {
	arr, ok := raw.([]any)
	if !ok {
		add("sort", ErrTypeMismatch, "sort must be an array of {by, dir} objects")
		return nil
	}

	allowed := make(map[string]bool)
	for _, a := range out.Aggregates {
		allowed[string(a)] = true
	}
	if out.GroupBy != GroupNone {
		allowed[string(out.GroupBy)] = true
		// Legacy shape: a grouped spec with no aggregate key at all gets an
		// implicit sum from the normalizer, so sum must resolve here too.
		if out.Aggregates == nil {
			allowed[string(AggSum)] = true
		}
	} else {
		allowed[string(FieldAmount)] = true
		allowed[string(FieldDate)] = true
	}

	keys := make([]SortKey, 0, len(arr))
	for i, elem := range arr {
		obj, ok := elem.(map[string]any)
		if !ok {
			add(fmt.Sprintf("sort[%d]", i), ErrTypeMismatch, "sort entries must be {by, dir} objects")
			continue
		}
		for _, key := range sortedKeys(obj) {
			switch key {
			case "by", "dir":
			default:
				add(fmt.Sprintf("sort[%d].%s", i, key), ErrUnknownKey, "unknown key %q", key)
			}
		}

		by, ok := asString(obj["by"])
		if !ok || by == "" {
			add(fmt.Sprintf("sort[%d].by", i), ErrTypeMismatch, "by must be a non-empty string")
			continue
		}
		if !allowed[by] {
			add(fmt.Sprintf("sort[%d].by", i), ErrUnresolvedSortKey,
				"sort key %q does not reference a requested aggregate, the grouping dimension, or a sortable raw field", by)
			continue
		}

		dir := Asc
		if rawDir, present := obj["dir"]; present {
			s, ok := asString(rawDir)
			if !ok {
				add(fmt.Sprintf("sort[%d].dir", i), ErrTypeMismatch, "dir must be a string")
				continue
			}
			switch Direction(s) {
			case Asc, Desc:
				dir = Direction(s)
			default:
				add(fmt.Sprintf("sort[%d].dir", i), ErrInvalidEnum, "dir %q is not one of asc, desc", s)
				continue
			}
		}

		keys = append(keys, SortKey{By: by, Dir: dir})
	}
	return keys
}

// intField reads an integer top-level field.
func intField(doc map[string]any, key string) (int64, bool) {
	raw, present := doc[key]
	if !present {
		return 0, false
	}
	return asInt(raw)
}

// asString accepts only genuine strings.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asInt accepts the integer spellings the supported transports produce:
// json.Number from the JSON decoder, native ints from YAML/CUE decoding,
// and integral float64 from less careful decoders.
func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case int:
		return int64(t), true
	case int64:
		return t, true
	case uint64:
		if t > 1<<62 {
			return 0, false
		}
		return int64(t), true
	case float64:
		n := int64(t)
		if float64(n) != t {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// asDate parses a YYYY-MM-DD calendar date. The result is midnight UTC;
// dates in this grammar are calendar days, not instants.
func asDate(v any) (time.Time, bool) {
	s, ok := asString(v)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// sortedKeys returns map keys in lexical order for deterministic violation
// lists.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
