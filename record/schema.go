package record

import (
	"fmt"
	"strings"
)

// KeyHanja is the identifying field every merged record carries.
const KeyHanja = "hanja"

// Schema is the ordered set of field names a merged record contains,
// beyond the identifying field.
type Schema struct {
	keys []string
}

// ParseSchema builds a Schema from a pipe-separated key list such as
// "meaning|radical|stroke_count". Keys keep their given order. Empty or
// duplicate keys are rejected; the identifying field must not be listed,
// it is always added by Merge.
func ParseSchema(keyList string) (Schema, error) {
	raw := strings.Split(keyList, "|")
	keys := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, k := range raw {
		k = strings.TrimSpace(k)
		if k == "" {
			return Schema{}, fmt.Errorf("record: schema key %d is empty: %w", i, ErrBadSchema)
		}
		if k == KeyHanja {
			return Schema{}, fmt.Errorf("record: schema key %d duplicates identifying field %q: %w", i, KeyHanja, ErrBadSchema)
		}
		if seen[k] {
			return Schema{}, fmt.Errorf("record: schema key %q repeated: %w", k, ErrBadSchema)
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return Schema{keys: keys}, nil
}

// Keys returns the schema keys in order. The slice is a copy.
func (s Schema) Keys() []string {
	cp := make([]string, len(s.keys))
	copy(cp, s.keys)
	return cp
}

// Len returns the number of schema keys.
func (s Schema) Len() int { return len(s.keys) }
