package types

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxImages is the number of photos a journal entry may carry.
const MaxImages = 5

// DateLayout is the calendar-date form stored in Entry.Date.
const DateLayout = "2006-01-02"

// TimestampLayout matches the ISO-8601 text produced for synthesized
// timestamps (millisecond precision, UTC).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// Entry is one timestamped measurement for a plant. Which numeric fields
// carry data depends on the Variant of the store holding it. Entries are
// values; a stored entry is never modified.
type Entry struct {
	ID          int64    `json:"id"`
	Timestamp   string   `json:"timestamp"`
	Date        string   `json:"date"`
	PH          float64  `json:"ph"`
	TDS         float64  `json:"tds"`
	Temperature float64  `json:"temperature"`
	EC          float64  `json:"ec"`
	Notes       string   `json:"notes,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// PlantEntry tags an entry with the plant whose series holds it.
type PlantEntry struct {
	Plant Plant `json:"plant"`
	Entry
}

// Value returns the reading for m.
func (e Entry) Value(m Metric) float64 {
	switch m {
	case MetricPH:
		return e.PH
	case MetricTDS:
		return e.TDS
	case MetricEC:
		return e.EC
	case MetricTemperature:
		return e.Temperature
	}
	return 0
}

// Day parses Date as a UTC calendar day.
func (e Entry) Day() (time.Time, bool) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(e.Date))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Time parses Timestamp using the layouts seen in sensor logs and exports.
func (e Entry) Time() (time.Time, bool) {
	return ParseTimestamp(e.Timestamp)
}

// ParseTimestamp tries each known timestamp layout in turn.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DatePart returns the calendar-date portion of a timestamp: everything
// before the first 'T' or space.
func DatePart(timestamp string) string {
	timestamp = strings.TrimSpace(timestamp)
	if i := strings.IndexAny(timestamp, "T "); i >= 0 {
		return timestamp[:i]
	}
	return timestamp
}

// FormatTimestamp renders t the way synthesized timestamps are stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Validate checks the invariants an entry must satisfy before it is stored
// under variant v.
func (e Entry) Validate(v Variant) error {
	if strings.TrimSpace(e.Date) == "" {
		return &ValidationError{Field: "date", Reason: "date is required"}
	}
	if !finite(e.PH) || e.PH < 0 || e.PH > 14 {
		return &ValidationError{Field: "ph", Reason: "pH must be a number between 0 and 14"}
	}

	switch v {
	case VariantJournal:
		if !finite(e.EC) || e.EC < 0 {
			return &ValidationError{Field: "ec", Reason: "EC must be a non-negative number"}
		}
		if len(e.Images) > MaxImages {
			return &ValidationError{Field: "images", Reason: "at most " + strconv.Itoa(MaxImages) + " images may be attached"}
		}
	default:
		if !finite(e.TDS) || e.TDS < 0 {
			return &ValidationError{Field: "tds", Reason: "TDS must be a non-negative number"}
		}
		if !finite(e.Temperature) {
			return &ValidationError{Field: "temperature", Reason: "temperature must be a number"}
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// EntryForm is a manual entry as submitted by an operator: every field is
// raw text until ParseForm has checked it.
type EntryForm struct {
	Date        string   `json:"date"`
	PH          string   `json:"ph"`
	TDS         string   `json:"tds,omitempty"`
	Temperature string   `json:"temperature,omitempty"`
	EC          string   `json:"ec,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// ParseForm turns a manual entry into a validated Entry stamped with id and
// now. Missing or non-numeric fields are reported as ValidationError.
func ParseForm(v Variant, f EntryForm, id int64, now time.Time) (Entry, error) {
	required := map[string]string{"date": f.Date, "ph": f.PH}
	order := []string{"date", "ph"}
	if v == VariantJournal {
		required["ec"] = f.EC
		order = append(order, "ec")
	} else {
		required["tds"] = f.TDS
		required["temperature"] = f.Temperature
		order = append(order, "tds", "temperature")
	}
	for _, field := range order {
		if strings.TrimSpace(required[field]) == "" {
			return Entry{}, &ValidationError{Field: field, Reason: "please fill in all required fields (" + strings.Join(order, ", ") + ")"}
		}
	}

	date := strings.TrimSpace(f.Date)
	if _, err := time.Parse(DateLayout, date); err != nil {
		return Entry{}, &ValidationError{Field: "date", Reason: "date must be formatted YYYY-MM-DD"}
	}

	e := Entry{
		ID:        id,
		Timestamp: FormatTimestamp(now),
		Date:      date,
	}

	var err error
	if e.PH, err = parseField("ph", f.PH, "pH must be a number between 0 and 14"); err != nil {
		return Entry{}, err
	}
	if v == VariantJournal {
		if e.EC, err = parseField("ec", f.EC, "EC must be a non-negative number"); err != nil {
			return Entry{}, err
		}
		e.Notes = strings.TrimSpace(f.Notes)
		if len(f.Images) > 0 {
			e.Images = append([]string(nil), f.Images...)
		}
	} else {
		if e.TDS, err = parseField("tds", f.TDS, "TDS must be a non-negative number"); err != nil {
			return Entry{}, err
		}
		if e.Temperature, err = parseField("temperature", f.Temperature, "temperature must be a number"); err != nil {
			return Entry{}, err
		}
	}

	if err := e.Validate(v); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func parseField(field, raw, reason string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !finite(f) {
		return 0, &ValidationError{Field: field, Reason: reason}
	}
	return f, nil
}
