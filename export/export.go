// CLAUDE:SUMMARY Tabular export of the two record streams: column ordering, cell flattening, CSV/XLSX writers.
// Package export writes the pipeline's record streams out as tables.
//
// Columns come from the run's schema for the entry stream and are derived
// from the records themselves for the usage stream, whose shape collection
// modifiers may have changed. List values flatten to ", "-joined cells;
// absent values to empty cells.
package export

import (
	"sort"

	"github.com/hazyhaar/okpyeon/record"
)

// ListSeparator joins list values into one cell.
const ListSeparator = ", "

// Columns returns the export column order for schema-conformant records:
// the identifying field first, then the schema keys in schema order.
func Columns(schema record.Schema) []string {
	return append([]string{record.KeyHanja}, schema.Keys()...)
}

// DeriveColumns computes a column order from the records themselves: the
// identifying field first when any record has it, then every other key
// seen, sorted. Used for streams without a fixed schema.
func DeriveColumns(recs []record.Record) []string {
	seen := make(map[string]bool)
	hasKey := false
	for _, r := range recs {
		for k := range r {
			if k == record.KeyHanja {
				hasKey = true
				continue
			}
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(seen))
	for k := range seen {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	if hasKey {
		return append([]string{record.KeyHanja}, rest...)
	}
	return rest
}

// Cell renders one value for a table cell.
func Cell(v record.Value) string {
	return v.Join(ListSeparator)
}

// Row renders one record against a column order.
func Row(cols []string, r record.Record) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = Cell(r.Get(c))
	}
	return out
}
