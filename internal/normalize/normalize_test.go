package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "hyphen and space", raw: "GACZ-23244 1", want: "GACZ232441"},
		{name: "lowercase", raw: "gacz232441", want: "GACZ232441"},
		{name: "already canonical", raw: "GACZ232441", want: "GACZ232441"},
		{name: "blank", raw: "", want: ""},
		{name: "whitespace only", raw: "   \t", want: ""},
		{name: "punctuation only", raw: "--/..", want: ""},
		{name: "non ascii dropped", raw: "ÄBC-1", want: "BC1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifier(tt.raw))
		})
	}
}

func TestIdentifierRoundTrip(t *testing.T) {
	assert.Equal(t, Identifier("GACZ-232441"), Identifier("gacz232441"))
	assert.Equal(t, "GACZ232441", Identifier("gacz232441"))
	assert.Equal(t, Identifier("GACZ232441"), Identifier(Identifier("GACZ-232441")))
}

func TestDate(t *testing.T) {
	tests := []struct {
		name      string
		raw       any
		want      time.Time
		valid     bool
		ambiguous bool
	}{
		{name: "iso date", raw: "2024-03-05", want: day(2024, 3, 5), valid: true},
		{name: "iso date padded", raw: "  2024-03-05 ", want: day(2024, 3, 5), valid: true},
		{name: "rfc3339", raw: "2024-03-05T10:15:00Z", want: day(2024, 3, 5), valid: true},
		{name: "rfc3339 offset keeps local day", raw: "2024-03-05T23:30:00-05:00", want: day(2024, 3, 5), valid: true},
		{name: "date prefixed timestamp", raw: "2024-03-05T10:15", want: day(2024, 3, 5), valid: true},
		{name: "serial float", raw: float64(45356), want: day(2024, 3, 5), valid: true},
		{name: "serial with fraction", raw: 45356.75, want: day(2024, 3, 5), valid: true},
		{name: "serial int", raw: 45356, want: day(2024, 3, 5), valid: true},
		{name: "serial json number", raw: json.Number("45356"), want: day(2024, 3, 5), valid: true},
		{name: "serial numeric string", raw: "45356", want: day(2024, 3, 5), valid: true},
		{name: "serial one", raw: 1, want: day(1899, 12, 31), valid: true},
		{name: "time value", raw: time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC), want: day(2024, 3, 5), valid: true},
		{name: "time pointer", raw: func() *time.Time { v := day(2024, 3, 5); return &v }(), want: day(2024, 3, 5), valid: true},
		{name: "nil", raw: nil},
		{name: "nil time pointer", raw: (*time.Time)(nil)},
		{name: "zero time", raw: time.Time{}},
		{name: "empty string", raw: ""},
		{name: "garbage", raw: "next tuesday"},
		{name: "impossible day", raw: "2024-02-30"},
		{name: "serial zero", raw: 0},
		{name: "negative serial", raw: -4},
		{name: "serial past year 9999", raw: float64(3000000)},
		{name: "nan", raw: math.NaN()},
		{name: "bool", raw: true},
		{name: "two digit year", raw: "03/05/24", ambiguous: true},
		{name: "two digit year dashes", raw: "3-5-24", ambiguous: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Date(tt.raw)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.ambiguous, got.Ambiguous)
			if tt.valid {
				assert.True(t, tt.want.Equal(got.Time), "want %s got %s", tt.want, got.Time)
				require.NotNil(t, got.Ptr())
			} else {
				assert.Nil(t, got.Ptr())
				assert.Empty(t, got.String())
			}
		})
	}
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 2, DaysBetween(day(2024, 3, 1), day(2024, 3, 3)))
	assert.Equal(t, -2, DaysBetween(day(2024, 3, 3), day(2024, 3, 1)))
	assert.Equal(t, 2, AbsDays(day(2024, 3, 3), day(2024, 3, 1)))
	// DST does not shift whole days
	assert.Equal(t, 1, DaysBetween(day(2024, 3, 9), day(2024, 3, 10)))
}

func TestLine(t *testing.T) {
	l := Line(entity.InvoiceLineItem{
		LineInvoiceNumber:      "L1",
		ChassisIdentifier:      " abcd-123456 ",
		ContainerOutIdentifier: "msku 1234567",
		ContainerInIdentifier:  "MSKU1234567",
		DateOut:                "2024-03-01",
		DateIn:                 45356,
	})

	assert.Equal(t, "ABCD123456", l.ChassisKey)
	assert.Equal(t, []string{"MSKU1234567"}, l.ContainerKeys())
	assert.True(t, l.HasIdentifiers())
	assert.True(t, l.HasContainer("MSKU1234567"))
	assert.False(t, l.HasContainer(""))
	assert.Equal(t, "abcd-123456", l.DisplayChassis())
	assert.Equal(t, "msku 1234567", l.DisplayContainer())

	from, to, ok := l.Window(1)
	require.True(t, ok)
	assert.Equal(t, day(2024, 2, 29), from)
	assert.Equal(t, day(2024, 3, 6), to)
}

func TestLineWindowSingleDate(t *testing.T) {
	l := Line(entity.InvoiceLineItem{ChassisIdentifier: "X1", DateIn: "2024-03-05"})
	from, to, ok := l.Window(2)
	require.True(t, ok)
	assert.Equal(t, day(2024, 3, 3), from)
	assert.Equal(t, day(2024, 3, 7), to)

	_, _, ok = Line(entity.InvoiceLineItem{ChassisIdentifier: "X1", DateOut: "bad"}).Window(1)
	assert.False(t, ok)
}

func TestLineWithoutIdentifiers(t *testing.T) {
	l := Line(entity.InvoiceLineItem{ChassisIdentifier: " - ", ContainerInIdentifier: ""})
	assert.False(t, l.HasIdentifiers())
	assert.Empty(t, l.ContainerKeys())
	assert.Empty(t, l.DisplayContainer())
}

func TestRecordSpan(t *testing.T) {
	pickup := day(2024, 3, 5)
	delivery := day(2024, 3, 2)

	start, end, ok := Record(entity.ShipmentRecord{PickupActualDate: &pickup, DeliveryActualDate: &delivery}).Span()
	require.True(t, ok)
	assert.Equal(t, delivery, start)
	assert.Equal(t, pickup, end)

	start, end, ok = Record(entity.ShipmentRecord{DeliveryActualDate: &delivery}).Span()
	require.True(t, ok)
	assert.Equal(t, delivery, start)
	assert.Equal(t, delivery, end)

	_, _, ok = Record(entity.ShipmentRecord{ChassisNumber: "X"}).Span()
	assert.False(t, ok)
}
