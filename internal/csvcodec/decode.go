package csvcodec

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/hydromonitor/internal/types"
)

// ImageSeparator joins a journal entry's images inside a single CSV field.
const ImageSeparator = "|"

// Options controls how rows are coerced into entries.
type Options struct {
	Variant types.Variant
	// SensorPlant receives sensor-log rows that do not name a plant.
	SensorPlant types.Plant
	// Now stamps rows without a timestamp. Defaults to time.Now.
	Now func() time.Time
	// NextID numbers rows without an id. Defaults to a private IDSource.
	NextID func() int64
}

// Batch is the result of decoding one CSV file. Rows are in file order and
// have already passed entry validation.
type Batch struct {
	ID      string
	Rows    []types.PlantEntry
	Skipped int
}

// PerPlant counts decoded rows by plant.
func (b *Batch) PerPlant() map[types.Plant]int {
	counts := make(map[types.Plant]int)
	for _, row := range b.Rows {
		counts[row.Plant]++
	}
	return counts
}

// Decoder turns CSV text into a Batch.
type Decoder struct {
	opts   Options
	schema Schema
}

func NewDecoder(opts Options) *Decoder {
	if opts.Variant == "" {
		opts.Variant = types.VariantSensor
	}
	if !opts.SensorPlant.Valid() {
		opts.SensorPlant = types.Chili
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NextID == nil {
		opts.NextID = types.NewIDSource(opts.Now).Next
	}
	return &Decoder{opts: opts, schema: SchemaFor(opts.Variant)}
}

// Decode parses text. A FormatError means the file was rejected as a whole;
// otherwise malformed rows, rows naming an unknown plant and rows failing
// validation are dropped and counted in Skipped. Numeric fields that do not
// parse become 0.
func (d *Decoder) Decode(text string) (*Batch, error) {
	lines := nonEmptyLines(text)
	if len(lines) < 2 {
		return nil, errNoData()
	}

	headers := SplitRecord(lines[0])
	for i := range headers {
		headers[i] = cleanField(headers[i])
	}
	if missing := d.schema.missing(headers); len(missing) > 0 {
		return nil, errMissingHeaders(d.schema, missing)
	}

	batch := &Batch{ID: uuid.NewString()}
	for _, line := range lines[1:] {
		fields := SplitRecord(line)
		if len(fields) < len(headers) {
			batch.Skipped++
			continue
		}

		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = cleanField(fields[i])
		}

		pe, ok := d.coerce(row)
		if !ok || pe.Validate(d.opts.Variant) != nil {
			batch.Skipped++
			continue
		}
		batch.Rows = append(batch.Rows, pe)
	}
	return batch, nil
}

func (d *Decoder) coerce(row map[string]string) (types.PlantEntry, bool) {
	plant, ok := d.route(row)
	if !ok {
		return types.PlantEntry{}, false
	}

	e := types.Entry{
		ID:        d.id(row["id"]),
		Timestamp: row["timestamp"],
		PH:        parseNumber(row["ph"]),
	}
	if e.Timestamp == "" {
		e.Timestamp = types.FormatTimestamp(d.opts.Now())
	}
	e.Date = row["date"]
	if e.Date == "" {
		e.Date = types.DatePart(e.Timestamp)
	}

	if d.opts.Variant == types.VariantJournal {
		e.EC = parseNumber(row["ec"])
		e.Notes = row["notes"]
		e.Images = splitImages(row["images"])
	} else {
		e.TDS = parseNumber(row["tds"])
		e.Temperature = parseNumber(row["temperature"])
	}
	return types.PlantEntry{Plant: plant, Entry: e}, true
}

// route picks the destination plant. Journal rows must name a known plant.
// Sensor rows go to the configured plant unless they carry a plant column.
func (d *Decoder) route(row map[string]string) (types.Plant, bool) {
	name, named := row["plant"]
	if d.opts.Variant == types.VariantJournal || (named && name != "") {
		return types.ParsePlant(name)
	}
	return d.opts.SensorPlant, true
}

func (d *Decoder) id(raw string) int64 {
	if raw == "" {
		return d.opts.NextID()
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int64(f)
	}
	return d.opts.NextID()
}

// parseNumber never fails: anything that is not a finite number reads as 0.
func parseNumber(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func splitImages(raw string) []string {
	if raw == "" {
		return nil
	}
	var images []string
	for _, img := range strings.Split(raw, ImageSeparator) {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	return images
}

func nonEmptyLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// SplitRecord splits a line on commas that sit outside double quotes: a
// comma is a delimiter only when an even number of '"' precede it. Fields
// are returned as written, quotes included.
func SplitRecord(line string) []string {
	var (
		fields []string
		quotes int
		start  int
	)
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			quotes++
		case ',':
			if quotes%2 == 0 {
				fields = append(fields, line[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, line[start:])
}

// cleanField trims whitespace and strips one surrounding quote pair. Inside
// a quoted field, doubled quotes collapse to one.
func cleanField(f string) string {
	f = strings.TrimSpace(f)
	if len(f) >= 2 && f[0] == '"' && f[len(f)-1] == '"' {
		return strings.ReplaceAll(f[1:len(f)-1], `""`, `"`)
	}
	return f
}
