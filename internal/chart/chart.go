// Package chart reshapes stored entries into rows for multi-series line
// charts.
package chart

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/hydromonitor/internal/types"
)

// Row is one entry prepared for charting. Besides the entry's own readings it
// carries a column named after the plant holding the charted metric, so a
// chart can draw one line per plant by reading one key per row.
type Row struct {
	Date   string
	Plant  types.Plant
	Values map[types.Metric]float64
	Series float64
}

// Fields flattens the row into a single object, e.g.
// {"date":"2025-05-01","plant":"Chili","ph":6.2,"tds":1100,"temperature":24,"Chili":6.2}.
func (r Row) Fields() map[string]any {
	obj := make(map[string]any, len(r.Values)+3)
	obj["date"] = r.Date
	obj["plant"] = r.Plant.String()
	for m, v := range r.Values {
		obj[string(m)] = v
	}
	obj[r.Plant.String()] = r.Series
	return obj
}

func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

func (r Row) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(r.Fields())
}

// Project builds one row per entry, ordered by date ascending. Entries on the
// same date keep their input order and entries whose date cannot be parsed
// go last. Rows are never merged across plants.
func Project(v types.Variant, entries []types.PlantEntry, m types.Metric) []Row {
	type keyed struct {
		row Row
		day time.Time
		ok  bool
	}

	metrics := v.Metrics()
	rows := make([]keyed, 0, len(entries))
	for _, e := range entries {
		values := make(map[types.Metric]float64, len(metrics))
		for _, metric := range metrics {
			values[metric] = e.Value(metric)
		}
		day, ok := e.Day()
		rows = append(rows, keyed{
			row: Row{
				Date:   e.Date,
				Plant:  e.Plant,
				Values: values,
				Series: e.Value(m),
			},
			day: day,
			ok:  ok,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ok != rows[j].ok {
			return rows[i].ok
		}
		return rows[i].day.Before(rows[j].day)
	})

	out := make([]Row, len(rows))
	for i, k := range rows {
		out[i] = k.row
	}
	return out
}
