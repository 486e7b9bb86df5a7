// Package store holds the per-plant measurement series for a session.
package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/chrissnell/hydromonitor/internal/types"
)

// Store maps each plant to its entries in arrival order. It only grows.
//
// A Store is not safe for concurrent use; its owner serializes access.
type Store struct {
	variant types.Variant
	series  [types.PlantCount][]types.Entry
}

// New creates an empty store for the given variant.
func New(v types.Variant) *Store {
	return &Store{variant: v}
}

// Variant returns the metric set entries are validated against.
func (s *Store) Variant() types.Variant {
	return s.variant
}

// Append validates e and appends it to the plant's series.
func (s *Store) Append(p types.Plant, e types.Entry) error {
	if err := s.check(p, e); err != nil {
		return err
	}
	s.series[p.Index()] = append(s.series[p.Index()], e)
	return nil
}

// AppendBatch appends every row in order, or none of them if any row fails
// validation.
func (s *Store) AppendBatch(rows []types.PlantEntry) error {
	for i, row := range rows {
		if err := s.check(row.Plant, row.Entry); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	for _, row := range rows {
		s.series[row.Plant.Index()] = append(s.series[row.Plant.Index()], row.Entry)
	}
	return nil
}

func (s *Store) check(p types.Plant, e types.Entry) error {
	if !p.Valid() {
		return &types.ValidationError{Field: "plant", Reason: fmt.Sprintf("unknown plant %s", p)}
	}
	return e.Validate(s.variant)
}

// All returns a copy of the plant's series in insertion order.
func (s *Store) All(p types.Plant) []types.Entry {
	if !p.Valid() {
		return nil
	}
	series := s.series[p.Index()]
	out := make([]types.Entry, len(series))
	copy(out, series)
	return out
}

// Len returns the number of entries stored for p.
func (s *Store) Len(p types.Plant) int {
	if !p.Valid() {
		return 0
	}
	return len(s.series[p.Index()])
}

// Total returns the number of entries across all plants.
func (s *Store) Total() int {
	n := 0
	for _, series := range s.series {
		n += len(series)
	}
	return n
}

// Flattened returns every entry tagged with its plant: plants in table order,
// entries in insertion order.
func (s *Store) Flattened() []types.PlantEntry {
	out := make([]types.PlantEntry, 0, s.Total())
	for _, p := range types.Plants() {
		for _, e := range s.series[p.Index()] {
			out = append(out, types.PlantEntry{Plant: p, Entry: e})
		}
	}
	return out
}

// Recent returns the flattened entries newest first. Entries with equal
// timestamps keep their flattened order. A limit <= 0 returns everything.
func (s *Store) Recent(limit int) []types.PlantEntry {
	rows := s.Flattened()
	keys := make([]time.Time, len(rows))
	parsed := make([]bool, len(rows))
	for i, row := range rows {
		keys[i], parsed[i] = row.Time()
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		switch {
		case parsed[i] && parsed[j]:
			return keys[i].After(keys[j])
		case parsed[i] != parsed[j]:
			// Unparseable timestamps sink to the bottom.
			return parsed[i]
		default:
			return rows[i].Timestamp > rows[j].Timestamp
		}
	})

	if limit <= 0 || limit > len(idx) {
		limit = len(idx)
	}
	out := make([]types.PlantEntry, limit)
	for i := 0; i < limit; i++ {
		out[i] = rows[idx[i]]
	}
	return out
}
