package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Plant is one of the hydroponic varieties tracked by the monitor. The set is
// closed. The zero value means "not set" and, like any value outside the
// enumeration, is invalid.
type Plant int

const (
	plantUnset Plant = iota
	BokChoy
	Chili
	PurpleBasil
	ThaiBasil
	LemonBasil

	plantEnd
)

// PlantCount is the number of tracked varieties.
const PlantCount = int(plantEnd - BokChoy)

var plantNames = [plantEnd]string{
	BokChoy:     "Bok choy",
	Chili:       "Chili",
	PurpleBasil: "Purple basil",
	ThaiBasil:   "Thai basil",
	LemonBasil:  "Lemon basil",
}

// Plants returns every tracked variety in table order.
func Plants() []Plant {
	plants := make([]Plant, 0, PlantCount)
	for p := BokChoy; p < plantEnd; p++ {
		plants = append(plants, p)
	}
	return plants
}

// Valid reports whether p is a member of the closed plant set.
func (p Plant) Valid() bool {
	return p >= BokChoy && p < plantEnd
}

// Index is p's position in Plants(), for tables with one slot per variety.
// It is only meaningful for valid plants.
func (p Plant) Index() int {
	return int(p - BokChoy)
}

func (p Plant) String() string {
	if !p.Valid() {
		return "Plant(" + strconv.Itoa(int(p)) + ")"
	}
	return plantNames[p]
}

// Slug returns the URL-friendly form of the plant name, e.g. "thai-basil".
func (p Plant) Slug() string {
	return strings.ReplaceAll(strings.ToLower(p.String()), " ", "-")
}

// ParsePlant resolves a display name or slug, ignoring case and surrounding
// whitespace.
func ParsePlant(name string) (Plant, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range Plants() {
		if n == strings.ToLower(p.String()) || n == p.Slug() {
			return p, true
		}
	}
	return plantUnset, false
}

// MarshalText renders the display name so plants can be used as JSON keys
// and values.
func (p Plant) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid plant %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Plant) UnmarshalText(b []byte) error {
	parsed, ok := ParsePlant(string(b))
	if !ok {
		return &ValidationError{Field: "plant", Reason: fmt.Sprintf("unknown plant %q", string(b))}
	}
	*p = parsed
	return nil
}

// Range is an inclusive optimal interval. The text form is kept as written in
// the profile table so status messages read "6.0-6.8" rather than "6-6.8".
type Range struct {
	Min  float64
	Max  float64
	text string
}

// ParseRange parses a "min-max" pair.
func ParseRange(s string) (Range, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("range %q is not of the form min-max", s)
	}
	min, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: bad minimum: %w", s, err)
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: bad maximum: %w", s, err)
	}
	if min > max {
		return Range{}, fmt.Errorf("range %q: minimum exceeds maximum", s)
	}
	return Range{Min: min, Max: max, text: strings.TrimSpace(s)}, nil
}

func mustRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Contains reports whether v lies inside the inclusive interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	if r.text != "" {
		return r.text
	}
	return strconv.FormatFloat(r.Min, 'f', -1, 64) + "-" + strconv.FormatFloat(r.Max, 'f', -1, 64)
}

func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Range) UnmarshalText(b []byte) error {
	parsed, err := ParseRange(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// PlantProfile holds display metadata and optimal ranges for one variety.
type PlantProfile struct {
	Plant       Plant  `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`

	OptimalPH          Range `json:"optimalPH"`
	OptimalTDS         Range `json:"optimalTDS"`
	OptimalEC          Range `json:"optimalEC"`
	OptimalTemperature Range `json:"optimalTemperature"`
}

// Range returns the optimal range for m.
func (pp PlantProfile) Range(m Metric) (Range, bool) {
	switch m {
	case MetricPH:
		return pp.OptimalPH, true
	case MetricTDS:
		return pp.OptimalTDS, true
	case MetricEC:
		return pp.OptimalEC, true
	case MetricTemperature:
		return pp.OptimalTemperature, true
	}
	return Range{}, false
}

var profiles = [plantEnd]PlantProfile{
	BokChoy: {
		Plant:              BokChoy,
		Description:        "Nutrient-rich leafy green",
		Image:              "/assets/water-spinach.png",
		OptimalPH:          mustRange("5.5-6.5"),
		OptimalTDS:         mustRange("900-1200"),
		OptimalEC:          mustRange("1.5-2.5"),
		OptimalTemperature: mustRange("18-24"),
	},
	Chili: {
		Plant:              Chili,
		Description:        "Spicy pepper variety",
		Image:              "/assets/chili-plant.png",
		OptimalPH:          mustRange("6.0-6.8"),
		OptimalTDS:         mustRange("1000-1750"),
		OptimalEC:          mustRange("1.8-3.2"),
		OptimalTemperature: mustRange("21-29"),
	},
	PurpleBasil: {
		Plant:              PurpleBasil,
		Description:        "Aromatic purple-leafed herb",
		Image:              "/assets/purple-basil.png",
		OptimalPH:          mustRange("5.5-6.5"),
		OptimalTDS:         mustRange("500-800"),
		OptimalEC:          mustRange("1.0-1.6"),
		OptimalTemperature: mustRange("20-26"),
	},
	ThaiBasil: {
		Plant:              ThaiBasil,
		Description:        "Sweet and spicy Asian herb",
		Image:              "/assets/thai-basil.png",
		OptimalPH:          mustRange("6.0-7.0"),
		OptimalTDS:         mustRange("600-900"),
		OptimalEC:          mustRange("1.0-1.6"),
		OptimalTemperature: mustRange("20-26"),
	},
	LemonBasil: {
		Plant:              LemonBasil,
		Description:        "Citrusy aromatic herb",
		Image:              "/assets/lemon-basil.png",
		OptimalPH:          mustRange("5.8-6.8"),
		OptimalTDS:         mustRange("500-750"),
		OptimalEC:          mustRange("1.0-1.6"),
		OptimalTemperature: mustRange("20-26"),
	},
}

// Profile returns the static profile for p. Invalid plants yield the zero
// profile and false.
func Profile(p Plant) (PlantProfile, bool) {
	if !p.Valid() {
		return PlantProfile{}, false
	}
	return profiles[p], true
}

// Profiles returns the whole profile table in plant order.
func Profiles() []PlantProfile {
	out := make([]PlantProfile, PlantCount)
	copy(out, profiles[BokChoy:])
	return out
}
