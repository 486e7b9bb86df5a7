package csvcodec

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/hydromonitor/internal/types"
)

// Encode writes rows as CSV in the column order of variant v, header first.
// Fields containing quotes, commas or line breaks are quoted with embedded
// quotes doubled; numbers are written in their shortest decimal form.
func Encode(w io.Writer, v types.Variant, rows []types.PlantEntry) error {
	schema := SchemaFor(v)
	cw := csv.NewWriter(w)

	if err := cw.Write(schema.Columns); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	record := make([]string, len(schema.Columns))
	for i, row := range rows {
		for c, col := range schema.Columns {
			record[c] = field(row, col)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("error writing CSV row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// EncodeString is Encode into a string.
func EncodeString(v types.Variant, rows []types.PlantEntry) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, v, rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ExportFilename is the suggested download name for an export made at now.
func ExportFilename(now time.Time) string {
	return "hydro_monitor_data_" + now.Format(types.DateLayout) + ".csv"
}

func field(row types.PlantEntry, col string) string {
	switch col {
	case "id":
		return strconv.FormatInt(row.ID, 10)
	case "timestamp":
		return row.Timestamp
	case "date":
		return row.Date
	case "plant":
		return row.Plant.String()
	case "ph":
		return formatNumber(row.PH)
	case "tds":
		return formatNumber(row.TDS)
	case "temperature":
		return formatNumber(row.Temperature)
	case "ec":
		return formatNumber(row.EC)
	case "notes":
		// Imports are line oriented, so notes must stay on one line.
		return lineBreaks.Replace(row.Notes)
	case "images":
		return strings.Join(row.Images, ImageSeparator)
	}
	return ""
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
