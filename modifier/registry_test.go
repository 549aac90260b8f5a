package modifier

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/okpyeon/record"
)

func TestRefYAML(t *testing.T) {
	src := `
- drop_missing_hanja
- name: trim_space
  field: meaning
`
	var refs []Ref
	if err := yaml.Unmarshal([]byte(src), &refs); err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("decoded %d refs, want 2", len(refs))
	}
	if refs[0].Name != "drop_missing_hanja" || refs[0].Field != "" {
		t.Errorf("ref 0: %+v", refs[0])
	}
	if refs[1].Name != "trim_space" || refs[1].Field != "meaning" {
		t.Errorf("ref 1: %+v", refs[1])
	}
}

func TestRegistryBuild(t *testing.T) {
	reg := NewRegistry()
	mods, err := reg.Build([]Ref{
		{Name: "drop_missing_hanja"},
		{Name: "trim_space", Field: "meaning"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 2 {
		t.Fatalf("built %d modifiers, want 2", len(mods))
	}
	if mods[0].Kind() != KindCollection {
		t.Errorf("mods[0]: kind=%d, want collection", mods[0].Kind())
	}
	if mods[1].Kind() != KindField {
		t.Errorf("mods[1]: kind=%d, want field", mods[1].Kind())
	}
}

func TestRegistryBuildErrors(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Build([]Ref{{Name: "no_such_modifier"}})
	if !errors.Is(err, ErrUnknownModifier) {
		t.Fatalf("unknown name: got %v, want ErrUnknownModifier", err)
	}

	_, err = reg.Build([]Ref{{Name: "trim_space"}})
	if !errors.Is(err, ErrFieldRequired) {
		t.Fatalf("field modifier without field: got %v, want ErrFieldRequired", err)
	}

	_, err = reg.Build([]Ref{{Name: "dedupe_hanja", Field: "meaning"}})
	if err == nil {
		t.Fatal("collection modifier with field: expected error")
	}
}

func TestRegistryCustomModifier(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterField("upper_first", func(v record.Value) (record.Value, error) {
		return v, nil
	})
	if _, err := reg.Build([]Ref{{Name: "upper_first", Field: "meaning"}}); err != nil {
		t.Fatalf("custom modifier: %v", err)
	}
}

func TestDropMissingHanja(t *testing.T) {
	recs := []record.Record{
		{"hanja": record.Text("木")},
		{"meaning": record.Text("orphan")},
		{"hanja": record.Absent()},
		{"hanja": record.Text("水")},
	}
	out, err := DropMissingHanja(recs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("kept %d records, want 2", len(out))
	}
}

func TestNormalizeSpace(t *testing.T) {
	v, err := NormalizeSpace(record.Text("  나무   목  "))
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(record.Text("나무 목")) {
		t.Fatalf("got %v, want %q", v, "나무 목")
	}

	v, err = NormalizeSpace(record.Absent())
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsAbsent() {
		t.Fatalf("absent input: got %v, want absent", v)
	}
}

func TestJoinList(t *testing.T) {
	v, err := JoinList(record.List("木材", "木曜日"))
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(record.Text("木材, 木曜日")) {
		t.Fatalf("got %v", v)
	}

	// Text passes through.
	v, _ = JoinList(record.Text("unchanged"))
	if !v.Equal(record.Text("unchanged")) {
		t.Fatalf("text input: got %v", v)
	}
}
