package types

import (
	"fmt"
	"strings"
)

// Metric identifies one water-quality measurement.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricPH          Metric = "ph"
	MetricTDS         Metric = "tds"
	MetricEC          Metric = "ec"
)

// ParseMetric accepts the lower-case metric key in any case.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricTemperature, MetricPH, MetricTDS, MetricEC:
		return m, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Label is the human-readable metric name used in alert messages.
func (m Metric) Label() string {
	switch m {
	case MetricTemperature:
		return "Temperature"
	case MetricPH:
		return "pH"
	case MetricTDS:
		return "TDS"
	case MetricEC:
		return "EC"
	}
	return string(m)
}

// Unit is appended directly after a formatted value.
func (m Metric) Unit() string {
	switch m {
	case MetricTemperature:
		return "°C"
	case MetricTDS:
		return " ppm"
	case MetricEC:
		return " mS/cm"
	}
	return ""
}

// Variant selects the metric set and CSV schema of a deployment.
type Variant string

const (
	// VariantSensor tracks temperature, pH and TDS from a data logger.
	VariantSensor Variant = "sensor"
	// VariantJournal tracks pH, EC, notes and photos entered by hand.
	VariantJournal Variant = "journal"
)

func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantSensor, VariantJournal:
		return v, nil
	}
	return "", fmt.Errorf("unknown variant %q: use 'sensor' or 'journal'", s)
}

// Metrics returns the metrics tracked by v in alert evaluation order.
func (v Variant) Metrics() []Metric {
	switch v {
	case VariantJournal:
		return []Metric{MetricPH, MetricEC}
	default:
		return []Metric{MetricTemperature, MetricPH, MetricTDS}
	}
}

// Tracks reports whether m belongs to the metric set of v.
func (v Variant) Tracks(m Metric) bool {
	for _, tracked := range v.Metrics() {
		if tracked == m {
			return true
		}
	}
	return false
}
