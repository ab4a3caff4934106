package normalize

import (
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk/queryc/internal/spec"
)

// asOf is a fixed Wednesday used throughout: 2025-08-20T15:04:05Z.
var asOf = time.Date(2025, time.August, 20, 15, 4, 5, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func decimal(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestNormalize_ListDefaults(t *testing.T) {
	v := &spec.ValidSpec{Version: 1, Entity: spec.EntityExpense, GroupBy: spec.GroupNone}

	c, notes, err := Normalize(v, asOf, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, notes)

	assert.Equal(t, DefaultLimit, c.Limit)
	assert.NotNil(t, c.Aggregates, "aggregate set is never nil after normalization")
	assert.Empty(t, c.Aggregates)
	assert.Equal(t, []spec.Field{spec.FieldDate, spec.FieldAmount, spec.FieldCategory, spec.FieldNote},
		c.Projection, "list queries get the full detail projection by default")
}

func TestNormalize_LimitClamp(t *testing.T) {
	cases := []struct {
		name string
		in   int
		want int
	}{
		{"absent defaults", 0, DefaultLimit},
		{"within bounds kept", 25, 25},
		{"above ceiling clamps", 5000, MaxLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &spec.ValidSpec{Version: 1, Entity: spec.EntityExpense, GroupBy: spec.GroupNone, Limit: tc.in}
			c, _, err := Normalize(v, asOf, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Limit)
		})
	}
}

func TestNormalize_StrippedFieldsBecomeSecurityNotes(t *testing.T) {
	v := &spec.ValidSpec{
		Version:  1,
		Entity:   spec.EntityExpense,
		GroupBy:  spec.GroupNone,
		Stripped: []string{"tenant_id", "scope"},
	}

	_, notes, err := Normalize(v, asOf, time.UTC)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.Equal(t, NoteSecurity, n.Kind)
	}
	assert.Contains(t, notes[0].Message, "tenant_id")
}

func TestNormalize_LegacyRangeNote(t *testing.T) {
	v := &spec.ValidSpec{
		Version: 1,
		Entity:  spec.EntityExpense,
		GroupBy: spec.GroupNone,
		Filters: spec.Filters{
			Date: &spec.DateFilter{
				From:        day(2025, time.January, 1),
				To:          day(2025, time.January, 31),
				LegacyRange: true,
			},
		},
	}

	c, notes, err := Normalize(v, asOf, time.UTC)
	require.NoError(t, err)
	require.NotNil(t, c.DateRange)
	assert.Equal(t, day(2025, time.January, 1), c.DateRange.From)
	assert.Equal(t, day(2025, time.January, 31), c.DateRange.To)

	require.Len(t, notes, 1)
	assert.Equal(t, NoteDeprecation, notes[0].Kind)
	assert.Contains(t, notes[0].Message, "from/to")
}

func TestNormalize_ImplicitSumForGroupedLegacyShape(t *testing.T) {
	v := &spec.ValidSpec{
		Version:    1,
		Entity:     spec.EntityExpense,
		GroupBy:    spec.GroupCategory,
		Aggregates: nil, // key absent entirely
	}

	c, notes, err := Normalize(v, asOf, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, []spec.Aggregate{spec.AggSum}, c.Aggregates)
	require.Len(t, notes, 1)
	assert.Equal(t, NoteDeprecation, notes[0].Kind)

	// An explicit aggregate set must not trigger the rewrite.
	v.Aggregates = []spec.Aggregate{spec.AggCount}
	c, notes, err = Normalize(v, asOf, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, []spec.Aggregate{spec.AggCount}, c.Aggregates)
	assert.Empty(t, notes)
}

func TestNormalize_AmountBoundsToCents(t *testing.T) {
	v := &spec.ValidSpec{
		Version: 1,
		Entity:  spec.EntityExpense,
		GroupBy: spec.GroupNone,
		Filters: spec.Filters{
			Amount: &spec.AmountFilter{
				Min: decimal(t, "10.50"),
				Max: decimal(t, "200"),
			},
		},
	}

	c, _, err := Normalize(v, asOf, time.UTC)
	require.NoError(t, err)
	require.NotNil(t, c.AmountMinCents)
	require.NotNil(t, c.AmountMaxCents)
	assert.Equal(t, int64(1050), *c.AmountMinCents)
	assert.Equal(t, int64(20000), *c.AmountMaxCents)
}

func TestNormalize_MissingEntityIsAmbiguous(t *testing.T) {
	v := &spec.ValidSpec{Version: 1}

	_, _, err := Normalize(v, asOf, time.UTC)
	var ae *AmbiguityError
	require.ErrorAs(t, err, &ae)
}

func TestNormalize_IsDeterministic(t *testing.T) {
	v := &spec.ValidSpec{
		Version: 1,
		Entity:  spec.EntityExpense,
		GroupBy: spec.GroupDate,
		Filters: spec.Filters{
			Date: &spec.DateFilter{Period: spec.PeriodMonth},
		},
		Aggregates: []spec.Aggregate{spec.AggSum},
	}

	a, _, err := Normalize(v, asOf, time.UTC)
	require.NoError(t, err)
	b, _, err := Normalize(v, asOf, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResolvePeriod(t *testing.T) {
	cases := []struct {
		name   string
		period spec.Period
		from   time.Time
		to     time.Time
	}{
		{"today", spec.PeriodToday, day(2025, time.August, 20), day(2025, time.August, 20)},
		{"yesterday", spec.PeriodYesterday, day(2025, time.August, 19), day(2025, time.August, 19)},
		// 2025-08-20 is a Wednesday; the Monday-start week is 18..24.
		{"week", spec.PeriodWeek, day(2025, time.August, 18), day(2025, time.August, 24)},
		{"month", spec.PeriodMonth, day(2025, time.August, 1), day(2025, time.August, 31)},
		{"year", spec.PeriodYear, day(2025, time.January, 1), day(2025, time.December, 31)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := ResolvePeriod(tc.period, asOf, time.UTC)
			assert.Equal(t, tc.from, r.From)
			assert.Equal(t, tc.to, r.To)
		})
	}
}

func TestResolvePeriod_WeekOnMondayAndSunday(t *testing.T) {
	// Any as-of inside the same Monday-Sunday window resolves identically.
	monday := time.Date(2025, time.August, 18, 0, 0, 0, 1, time.UTC)
	sunday := time.Date(2025, time.August, 24, 23, 59, 59, 0, time.UTC)

	a := ResolvePeriod(spec.PeriodWeek, monday, time.UTC)
	b := ResolvePeriod(spec.PeriodWeek, sunday, time.UTC)
	assert.Equal(t, a, b)
	assert.Equal(t, day(2025, time.August, 18), a.From)
}

func TestResolvePeriod_TenantTimezone(t *testing.T) {
	// 2025-08-20T02:00Z is still 2025-08-19 in New York.
	early := time.Date(2025, time.August, 20, 2, 0, 0, 0, time.UTC)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	utc := ResolvePeriod(spec.PeriodToday, early, time.UTC)
	local := ResolvePeriod(spec.PeriodToday, early, ny)
	assert.Equal(t, day(2025, time.August, 20), utc.From)
	assert.Equal(t, day(2025, time.August, 19), local.From)
}

func TestDateRange_Days(t *testing.T) {
	r := DateRange{From: day(2025, time.August, 1), To: day(2025, time.August, 31)}
	assert.Equal(t, 31, r.Days())

	single := DateRange{From: day(2025, time.August, 1), To: day(2025, time.August, 1)}
	assert.Equal(t, 1, single.Days())
}
