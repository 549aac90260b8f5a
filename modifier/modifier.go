// CLAUDE:SUMMARY Ordered modifier chain over record collections with per-step failure isolation and warning accumulation.
package modifier

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/okpyeon/record"
)

// Kind discriminates the two modifier shapes.
type Kind uint8

const (
	// KindCollection transforms the whole record slice and may change
	// its count or shape.
	KindCollection Kind = iota
	// KindField transforms one named field independently on every
	// record that has it.
	KindField
)

// CollectionFunc transforms a full record collection.
type CollectionFunc func(recs []record.Record) ([]record.Record, error)

// FieldFunc transforms a single field value.
type FieldFunc func(v record.Value) (record.Value, error)

// Modifier is one configured transformation step.
type Modifier struct {
	name  string
	kind  Kind
	coll  CollectionFunc
	field FieldFunc
	key   string
}

// Collection returns a whole-collection modifier.
func Collection(name string, fn CollectionFunc) Modifier {
	return Modifier{name: name, kind: KindCollection, coll: fn}
}

// Field returns a modifier applying fn to the named field of every
// record that has it.
func Field(name, key string, fn FieldFunc) Modifier {
	return Modifier{name: name, kind: KindField, field: fn, key: key}
}

// Name returns the modifier's configured name, which may be empty.
func (m Modifier) Name() string { return m.name }

// Kind returns the modifier shape.
func (m Modifier) Kind() Kind { return m.kind }

// Warning reports one recovered modifier failure.
type Warning struct {
	Modifier string `json:"modifier"`
	Target   string `json:"target"` // record identifier, or "collection"
	Detail   string `json:"detail"`
}

// Apply runs the modifiers in order over recs and returns the resulting
// collection plus the warnings accumulated along the way. A nil or empty
// modifier list returns recs unchanged.
//
// Failures never abort the batch. A field modifier that fails on one
// record leaves that record untouched and moves on; a collection modifier
// that fails leaves the whole pre-transform collection in place for the
// subsequent modifiers (collection funcs operate on a copy, so a partial
// in-place mutation is never exposed). Panics inside a modifier are
// recovered and treated as failures. Every failure is logged on log and
// returned as a Warning.
//
// Field modifiers update the given records in place; callers that need
// the originals must clone beforehand.
func Apply(recs []record.Record, mods []Modifier, log *slog.Logger) ([]record.Record, []Warning) {
	if log == nil {
		log = slog.Default()
	}
	if len(mods) == 0 {
		return recs, nil
	}
	var warnings []Warning
	warn := func(m Modifier, pos int, target string, err error) {
		name := m.name
		if name == "" {
			name = fmt.Sprintf("modifier[%d]", pos)
		}
		log.Warn("modifier failed", "modifier", name, "target", target, "error", err)
		warnings = append(warnings, Warning{Modifier: name, Target: target, Detail: err.Error()})
	}

	for pos, m := range mods {
		switch m.kind {
		case KindCollection:
			out, err := safeCollection(m.coll, cloneAll(recs))
			if err != nil {
				warn(m, pos, "collection", err)
				continue
			}
			recs = out
		case KindField:
			for i := range recs {
				if !recs[i].Has(m.key) {
					continue
				}
				v, err := safeField(m.field, recs[i].Get(m.key))
				if err != nil {
					warn(m, pos, recordTarget(recs[i], i), err)
					continue
				}
				recs[i].Set(m.key, v)
			}
		}
	}
	return recs, warnings
}

// recordTarget names a record for warnings: its identifying field when
// present, else its position.
func recordTarget(r record.Record, i int) string {
	if r.Present(record.KeyHanja) {
		return r.Get(record.KeyHanja).String()
	}
	return fmt.Sprintf("record %d", i)
}

func cloneAll(recs []record.Record) []record.Record {
	cp := make([]record.Record, len(recs))
	for i, r := range recs {
		cp[i] = r.Clone()
	}
	return cp
}

func safeCollection(fn CollectionFunc, recs []record.Record) (out []record.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("modifier: panic: %v", r)
		}
	}()
	return fn(recs)
}

func safeField(fn FieldFunc, v record.Value) (out record.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("modifier: panic: %v", r)
		}
	}()
	return fn(v)
}
