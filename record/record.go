// CLAUDE:SUMMARY Record and Value types: string/list/absent tagged values keyed by field name.
package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind discriminates the three value shapes a field can hold.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindText
	KindList
)

// Value is a field value: a single string, an ordered list of strings,
// or absent. The zero Value is absent.
type Value struct {
	kind Kind
	text string
	list []string
}

// Absent returns the absent Value.
func Absent() Value { return Value{} }

// Text returns a string Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// List returns a list Value. The slice is copied.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Kind reports the value shape.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the value is absent.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Text returns the string content. Empty for non-text values.
func (v Value) Text() string {
	if v.kind != KindText {
		return ""
	}
	return v.text
}

// List returns a copy of the list content. Nil for non-list values.
func (v Value) List() []string {
	if v.kind != KindList {
		return nil
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp
}

// Join flattens the value to a single string: text as-is, lists joined
// by sep, absent as "".
func (v Value) Join(sep string) string {
	switch v.kind {
	case KindText:
		return v.text
	case KindList:
		return strings.Join(v.list, sep)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

// MarshalJSON encodes absent as null, text as a string, list as an array.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindList:
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a string, or an array of strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = Value{}
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("record: decode list value: %w", err)
		}
		*v = Value{kind: KindList, list: items}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("record: decode text value: %w", err)
	}
	*v = Value{kind: KindText, text: s}
	return nil
}

// Record maps field names to values. Fields are added as extraction and
// enrichment succeed; a missing key reads as absent.
type Record map[string]Value

// New returns an empty record.
func New() Record { return Record{} }

// Get returns the value for key, absent if the key is missing.
func (r Record) Get(key string) Value { return r[key] }

// Set stores value under key.
func (r Record) Set(key string, v Value) { r[key] = v }

// Has reports whether key exists, absent values included.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Present reports whether key exists with a non-absent value.
func (r Record) Present(key string) bool {
	v, ok := r[key]
	return ok && !v.IsAbsent()
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	cp := make(Record, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}
