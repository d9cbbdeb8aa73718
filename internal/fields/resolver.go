// Package fields resolves canonical logical fields out of loosely named
// transaction records and coerces the raw values to numbers, text and dates.
package fields

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"commercial-analytics/internal/models"
)

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31 as a spreadsheet serial.
const maxSerial = 2958465

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"2-1-2006",
}

// Resolve returns the raw value of f in rec. The declared mapping column is
// tried first, then the alias table, then an accent- and separator-insensitive
// pass over the record keys. Nil and blank values never match.
func Resolve(rec models.Record, f models.LogicalField, m models.Mapping) (any, bool) {
	if rec == nil {
		return nil, false
	}
	if col := m.Column(f); col != "" {
		if v, ok := lookup(rec, col); ok {
			return v, true
		}
	}
	for _, alias := range aliases[f] {
		if v, ok := lookup(rec, alias); ok {
			return v, true
		}
	}

	want := folded[f]
	if col := m.Column(f); col != "" {
		want = append([]string{Fold(col)}, want...)
	}
	if len(want) == 0 {
		return nil, false
	}

	// One pass over the record: the earliest wanted spelling wins, and
	// among keys folding to it the lexically smallest one.
	best, bestKey := -1, ""
	for k := range rec {
		fk := foldKey(k)
		if fk == "" {
			continue
		}
		i := slices.Index(want, fk)
		if i < 0 || (best >= 0 && (i > best || (i == best && k >= bestKey))) {
			continue
		}
		if _, ok := lookup(rec, k); ok {
			best, bestKey = i, k
		}
	}
	if best < 0 {
		return nil, false
	}
	return lookup(rec, bestKey)
}

// foldCache memoises Fold for record keys. Header sets are small and
// repeat on every row, so the cache stays bounded by the distinct headers
// seen.
var foldCache sync.Map

func foldKey(k string) string {
	if v, ok := foldCache.Load(k); ok {
		return v.(string)
	}
	f := Fold(k)
	foldCache.Store(k, f)
	return f
}

func lookup(rec models.Record, key string) (any, bool) {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil, false
	}
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, false
		}
	case *string:
		if x == nil || strings.TrimSpace(*x) == "" {
			return nil, false
		}
		return *x, true
	case *time.Time:
		if x == nil {
			return nil, false
		}
		return *x, true
	}
	return v, true
}

// Number resolves f and coerces it with AsNumber.
func Number(rec models.Record, f models.LogicalField, m models.Mapping, def float64) float64 {
	v, ok := Resolve(rec, f, m)
	if !ok {
		return def
	}
	return AsNumber(v, def)
}

// Text resolves f and coerces it with AsText.
func Text(rec models.Record, f models.LogicalField, m models.Mapping, def string) string {
	v, ok := Resolve(rec, f, m)
	if !ok {
		return def
	}
	return AsText(v, def)
}

// Date resolves f and coerces it with AsDate.
func Date(rec models.Record, f models.LogicalField, m models.Mapping) (time.Time, bool) {
	v, ok := Resolve(rec, f, m)
	if !ok {
		return time.Time{}, false
	}
	return AsDate(v)
}

// AsNumber converts v to a float64. Strings keep only digits and ".,-";
// a lone comma or a comma after the last dot is the decimal separator.
// Anything unparseable, NaN or infinite yields def.
func AsNumber(v any, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		parsed, ok := parseNumber(x)
		if !ok {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")

	var b strings.Builder
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == '.' || r == ',' || r == '-':
			b.WriteRune(r)
		}
	}
	if digits == 0 {
		return 0, false
	}
	clean := b.String()

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(clean, ",") > 1 {
			clean = strings.ReplaceAll(clean, ",", "")
		} else {
			clean = strings.Replace(clean, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(clean, ".") > 1 {
			clean = strings.ReplaceAll(clean, ".", "")
		}
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if negative && f > 0 {
		f = -f
	}
	return f, true
}

// AsText trims v's string form; blank values yield def.
func AsText(v any, def string) string {
	var s string
	switch x := v.(type) {
	case nil:
		return def
	case string:
		s = x
	case time.Time:
		if x.IsZero() {
			return def
		}
		s = x.Format("2006-01-02")
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		s = strconv.Itoa(x)
	case int8:
		s = strconv.FormatInt(int64(x), 10)
	case int16:
		s = strconv.FormatInt(int64(x), 10)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case int64:
		s = strconv.FormatInt(x, 10)
	case uint:
		s = strconv.FormatUint(uint64(x), 10)
	case uint8:
		s = strconv.FormatUint(uint64(x), 10)
	case uint16:
		s = strconv.FormatUint(uint64(x), 10)
	case uint32:
		s = strconv.FormatUint(uint64(x), 10)
	case uint64:
		s = strconv.FormatUint(x, 10)
	case bool:
		s = strconv.FormatBool(x)
	case interface{ String() string }:
		s = x.String()
	default:
		return def
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// AsDate accepts a time.Time, a spreadsheet serial number, an ISO string or a
// DD/MM/YYYY string. It never panics; failures return false.
func AsDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case float64, float32, int, int32, int64:
		return fromSerial(AsNumber(x, math.NaN()))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			return fromSerial(serial)
		}
	}
	return time.Time{}, false
}

func fromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial <= 0 || serial > maxSerial {
		return time.Time{}, false
	}
	days := math.Floor(serial)
	frac := serial - days
	t := excelEpoch.AddDate(0, 0, int(days))
	if frac > 0 {
		t = t.Add(time.Duration(math.Round(frac*86400)) * time.Second)
	}
	return t, true
}
