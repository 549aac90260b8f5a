// CLAUDE:SUMMARY Named modifier registry so profiles can wire chains declaratively; ships the built-in transforms.
package modifier

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/okpyeon/record"
)

// Ref names one modifier in a profile. A bare string selects a
// collection modifier; a {name, field} mapping selects a field modifier
// scoped to that field.
type Ref struct {
	Name  string `yaml:"name"`
	Field string `yaml:"field"`
}

// UnmarshalYAML accepts a scalar name or a {name, field} mapping.
func (r *Ref) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var name string
		if err := node.Decode(&name); err != nil {
			return fmt.Errorf("modifier: decode ref: %w", err)
		}
		*r = Ref{Name: name}
		return nil
	}
	type plain Ref
	var p plain
	if err := node.Decode(&p); err != nil {
		return fmt.Errorf("modifier: decode ref: %w", err)
	}
	*r = Ref(p)
	return nil
}

// Registry maps modifier names to their implementations. The zero value
// is unusable; NewRegistry returns one seeded with the built-ins.
type Registry struct {
	collection map[string]CollectionFunc
	field      map[string]FieldFunc
}

// NewRegistry returns a registry holding the built-in modifiers:
// collection "drop_missing_hanja" and "dedupe_hanja", field "trim_space",
// "normalize_space" and "join_list".
func NewRegistry() *Registry {
	r := &Registry{
		collection: make(map[string]CollectionFunc),
		field:      make(map[string]FieldFunc),
	}
	r.RegisterCollection("drop_missing_hanja", DropMissingHanja)
	r.RegisterCollection("dedupe_hanja", DedupeHanja)
	r.RegisterField("trim_space", TrimSpace)
	r.RegisterField("normalize_space", NormalizeSpace)
	r.RegisterField("join_list", JoinList)
	return r
}

// RegisterCollection adds or replaces a named collection modifier.
func (r *Registry) RegisterCollection(name string, fn CollectionFunc) {
	r.collection[name] = fn
}

// RegisterField adds or replaces a named field modifier.
func (r *Registry) RegisterField(name string, fn FieldFunc) {
	r.field[name] = fn
}

// Build resolves profile refs into a modifier chain. Unknown names and
// field modifiers referenced without a field are configuration errors;
// nothing is deferred to apply time.
func (r *Registry) Build(refs []Ref) ([]Modifier, error) {
	mods := make([]Modifier, 0, len(refs))
	for i, ref := range refs {
		if fn, ok := r.field[ref.Name]; ok {
			if ref.Field == "" {
				return nil, fmt.Errorf("modifier: ref %d (%s): %w", i, ref.Name, ErrFieldRequired)
			}
			mods = append(mods, Field(ref.Name, ref.Field, fn))
			continue
		}
		if fn, ok := r.collection[ref.Name]; ok {
			if ref.Field != "" {
				return nil, fmt.Errorf("modifier: ref %d (%s): collection modifier takes no field", i, ref.Name)
			}
			mods = append(mods, Collection(ref.Name, fn))
			continue
		}
		return nil, fmt.Errorf("modifier: ref %d (%q): %w", i, ref.Name, ErrUnknownModifier)
	}
	return mods, nil
}

// DropMissingHanja removes records lacking the identifying field.
func DropMissingHanja(recs []record.Record) ([]record.Record, error) {
	out := recs[:0]
	for _, r := range recs {
		if r.Present(record.KeyHanja) {
			out = append(out, r)
		}
	}
	return out, nil
}

// DedupeHanja keeps the first record per identifying field value.
// Records without the field are kept as-is.
func DedupeHanja(recs []record.Record) ([]record.Record, error) {
	seen := make(map[string]bool, len(recs))
	out := recs[:0]
	for _, r := range recs {
		if r.Present(record.KeyHanja) {
			h := r.Get(record.KeyHanja).String()
			if seen[h] {
				continue
			}
			seen[h] = true
		}
		out = append(out, r)
	}
	return out, nil
}

// TrimSpace trims surrounding whitespace from a text value or from each
// element of a list value. Absent values pass through.
func TrimSpace(v record.Value) (record.Value, error) {
	switch v.Kind() {
	case record.KindText:
		return record.Text(strings.TrimSpace(v.Text())), nil
	case record.KindList:
		items := v.List()
		for i, it := range items {
			items[i] = strings.TrimSpace(it)
		}
		return record.List(items...), nil
	default:
		return v, nil
	}
}

// NormalizeSpace collapses runs of whitespace to single spaces, after
// trimming. Lists are normalized per element.
func NormalizeSpace(v record.Value) (record.Value, error) {
	squeeze := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	switch v.Kind() {
	case record.KindText:
		return record.Text(squeeze(v.Text())), nil
	case record.KindList:
		items := v.List()
		for i, it := range items {
			items[i] = squeeze(it)
		}
		return record.List(items...), nil
	default:
		return v, nil
	}
}

// JoinList turns a list value into a single comma-separated text value.
// Text and absent values pass through.
func JoinList(v record.Value) (record.Value, error) {
	if v.Kind() != record.KindList {
		return v, nil
	}
	return record.Text(v.Join(", ")), nil
}
