package chart

import (
	"encoding/json"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/hydromonitor/internal/types"
)

func entry(p types.Plant, id int64, date string, ph, tds float64) types.PlantEntry {
	return types.PlantEntry{Plant: p, Entry: types.Entry{ID: id, Date: date, PH: ph, TDS: tds, Temperature: 22}}
}

func TestProjectOrdering(t *testing.T) {
	entries := []types.PlantEntry{
		entry(types.BokChoy, 1, "2025-05-03", 6.0, 1000),
		entry(types.BokChoy, 2, "not-a-date", 6.1, 1000),
		entry(types.Chili, 3, "2025-05-01", 6.4, 1200),
		entry(types.Chili, 4, "2025-05-03", 6.5, 1250),
		entry(types.ThaiBasil, 5, "2025-05-02", 6.6, 700),
	}

	rows := Project(types.VariantSensor, entries, types.MetricPH)

	wantPlants := []types.Plant{types.Chili, types.ThaiBasil, types.BokChoy, types.Chili, types.BokChoy}
	wantDates := []string{"2025-05-01", "2025-05-02", "2025-05-03", "2025-05-03", "not-a-date"}
	if len(rows) != len(entries) {
		t.Fatalf("expected %d rows, got %d", len(entries), len(rows))
	}
	for i := range rows {
		if rows[i].Plant != wantPlants[i] || rows[i].Date != wantDates[i] {
			t.Errorf("row %d: expected %s on %s, got %s on %s",
				i, wantPlants[i], wantDates[i], rows[i].Plant, rows[i].Date)
		}
	}
}

func TestProjectSeriesColumn(t *testing.T) {
	entries := []types.PlantEntry{entry(types.Chili, 1, "2025-05-01", 6.4, 1200)}

	rows := Project(types.VariantSensor, entries, types.MetricTDS)
	if rows[0].Series != 1200 {
		t.Errorf("expected series value 1200, got %v", rows[0].Series)
	}

	raw, err := json.Marshal(rows[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	expected := map[string]any{
		"date":        "2025-05-01",
		"plant":       "Chili",
		"ph":          6.4,
		"tds":         1200.0,
		"temperature": 22.0,
		"Chili":       1200.0,
	}
	if len(obj) != len(expected) {
		t.Errorf("expected %d keys, got %v", len(expected), obj)
	}
	for k, v := range expected {
		if obj[k] != v {
			t.Errorf("key %q: expected %v, got %v", k, v, obj[k])
		}
	}
}

func TestProjectJournalColumns(t *testing.T) {
	entries := []types.PlantEntry{{Plant: types.LemonBasil, Entry: types.Entry{Date: "2025-05-01", PH: 6.0, EC: 1.3}}}

	rows := Project(types.VariantJournal, entries, types.MetricEC)
	fields := rows[0].Fields()
	if _, ok := fields["tds"]; ok {
		t.Error("journal rows should not carry a tds column")
	}
	if fields["ec"] != 1.3 || fields["Lemon basil"] != 1.3 {
		t.Errorf("unexpected fields %v", fields)
	}
}

func TestRowEncodesAsMsgpackMap(t *testing.T) {
	rows := Project(types.VariantSensor, []types.PlantEntry{entry(types.Chili, 1, "2025-05-01", 6.4, 1200)}, types.MetricPH)

	raw, err := msgpack.Marshal(rows[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var obj map[string]any
	if err := msgpack.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if obj["Chili"] != 6.4 || obj["date"] != "2025-05-01" {
		t.Errorf("unexpected msgpack object %v", obj)
	}
}
