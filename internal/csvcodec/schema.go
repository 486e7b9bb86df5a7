// Package csvcodec reads and writes measurement logs in the two CSV schemas
// the monitor understands: the data logger's sensor log and the hand-kept
// journal.
package csvcodec

import (
	"fmt"
	"strings"

	"github.com/chrissnell/hydromonitor/internal/types"
)

// Schema describes the columns of one CSV flavor.
type Schema struct {
	Variant types.Variant
	// Required columns must all be present in an imported header.
	Required []string
	// Columns is the export column order.
	Columns []string
}

var (
	sensorSchema = Schema{
		Variant:  types.VariantSensor,
		Required: []string{"id", "timestamp", "temperature", "ph", "tds"},
		Columns:  []string{"id", "timestamp", "temperature", "ph", "tds", "date", "plant"},
	}
	journalSchema = Schema{
		Variant:  types.VariantJournal,
		Required: []string{"plant", "date", "ph", "ec"},
		Columns:  []string{"id", "timestamp", "plant", "date", "ph", "ec", "notes", "images"},
	}
)

// SchemaFor returns the schema used by variant v.
func SchemaFor(v types.Variant) Schema {
	if v == types.VariantJournal {
		return journalSchema
	}
	return sensorSchema
}

// missing returns the required columns absent from headers.
func (s Schema) missing(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var out []string
	for _, col := range s.Required {
		if !present[col] {
			out = append(out, col)
		}
	}
	return out
}

// FormatError reports a CSV file that cannot be imported at all. Nothing is
// imported when one is returned.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "invalid CSV file: " + e.Reason
}

func errNoData() error {
	return &FormatError{Reason: "no data found"}
}

func errMissingHeaders(s Schema, missing []string) error {
	return &FormatError{Reason: fmt.Sprintf("required headers (%s) missing: %s",
		strings.Join(s.Required, ", "), strings.Join(missing, ", "))}
}
