package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// spreadsheetEpoch is day zero of the 1900 date system as spreadsheets count it.
var spreadsheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31, the last date a spreadsheet can represent.
const maxSerial = 2958465

var (
	numericPattern      = regexp.MustCompile(`^\d+(\.\d+)?$`)
	twoDigitYearPattern = regexp.MustCompile(`^\d{1,2}[/.-]\d{1,2}[/.-]\d{2}$`)
)

var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// Identifier uppercases raw and drops every rune that is not a letter or digit.
// Blank input yields "" which callers treat as absent.
func Identifier(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// DateResult is a resolved calendar date. Time is midnight UTC and only meaningful when Valid.
// Ambiguous marks two-digit-year input that was deliberately left unresolved.
type DateResult struct {
	Time      time.Time
	Valid     bool
	Ambiguous bool
}

// Ptr returns the date or nil when unknown.
func (d DateResult) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func (d DateResult) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format("2006-01-02")
}

// Date resolves an ISO calendar string, a spreadsheet serial day number or an
// already-parsed time into a calendar date. It never panics.
func Date(raw any) DateResult {
	switch v := raw.(type) {
	case nil:
		return DateResult{}
	case time.Time:
		return fromTime(v)
	case *time.Time:
		if v == nil {
			return DateResult{}
		}
		return fromTime(*v)
	case float64:
		return fromSerial(v)
	case float32:
		return fromSerial(float64(v))
	case int:
		return fromSerial(float64(v))
	case int32:
		return fromSerial(float64(v))
	case int64:
		return fromSerial(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return DateResult{}
		}
		return fromSerial(f)
	case string:
		return fromString(v)
	case *string:
		if v == nil {
			return DateResult{}
		}
		return fromString(*v)
	default:
		return DateResult{}
	}
}

// DateOnly truncates t to its calendar date at midnight UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns b - a in whole calendar days.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(DateOnly(b).Sub(DateOnly(a)).Hours() / 24))
}

// AbsDays returns |b - a| in whole calendar days.
func AbsDays(a, b time.Time) int {
	d := DaysBetween(a, b)
	if d < 0 {
		return -d
	}
	return d
}

func fromTime(t time.Time) DateResult {
	if t.IsZero() {
		return DateResult{}
	}
	return DateResult{Time: DateOnly(t), Valid: true}
}

func fromSerial(s float64) DateResult {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return DateResult{}
	}
	days := math.Floor(s)
	if days < 1 || days > maxSerial {
		return DateResult{}
	}
	return DateResult{Time: spreadsheetEpoch.AddDate(0, 0, int(days)), Valid: true}
}

func fromString(raw string) DateResult {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DateResult{}
	}
	if twoDigitYearPattern.MatchString(s) {
		return DateResult{Ambiguous: true}
	}
	if numericPattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return DateResult{}
		}
		return fromSerial(f)
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return fromTime(t)
		}
	}
	// date-prefixed timestamps in layouts not listed above
	if len(s) > 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return fromTime(t)
		}
	}
	return DateResult{}
}
