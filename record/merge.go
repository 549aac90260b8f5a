// CLAUDE:SUMMARY Merge combines locally extracted and collaborator records under a schema, primary wins.
package record

import "fmt"

// Merge pairs primary and secondary records by position and produces one
// canonical record per pair. Each output holds exactly the schema keys
// plus the identifying field. Per key, the primary value wins when present
// and non-absent, then the secondary, then absent.
//
// Pairing stops at the shorter of the two sequences; callers that require
// strict alignment must check lengths beforehand. Every primary record
// must carry the identifying field, otherwise Merge fails with
// ErrMissingKey wrapped with the offending index.
func Merge(schema Schema, primary, secondary []Record) ([]Record, error) {
	n := len(primary)
	if len(secondary) < n {
		n = len(secondary)
	}
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		p, s := primary[i], secondary[i]
		if !p.Present(KeyHanja) {
			return nil, fmt.Errorf("record: merge entry %d: %w", i, ErrMissingKey)
		}
		merged := make(Record, schema.Len()+1)
		merged[KeyHanja] = p.Get(KeyHanja)
		for _, key := range schema.keys {
			switch {
			case p.Present(key):
				merged[key] = p.Get(key)
			case s.Present(key):
				merged[key] = s.Get(key)
			default:
				merged[key] = Absent()
			}
		}
		out = append(out, merged)
	}
	return out, nil
}
