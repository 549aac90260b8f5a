package record

import (
	"errors"
	"testing"
)

func mustSchema(t *testing.T, keyList string) Schema {
	t.Helper()
	s, err := ParseSchema(keyList)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestMergePrimaryWins(t *testing.T) {
	schema := mustSchema(t, "meaning|radical")
	primary := []Record{{"hanja": Text("木"), "meaning": Text("tree")}}
	secondary := []Record{{"meaning": Text("wood"), "radical": Text("木")}}

	out, err := Merge(schema, primary, secondary)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("merge: got %d records, want 1", len(out))
	}
	got := out[0]
	if !got.Get("hanja").Equal(Text("木")) {
		t.Errorf("hanja: got %v", got.Get("hanja"))
	}
	if !got.Get("meaning").Equal(Text("tree")) {
		t.Errorf("meaning: got %v, want primary value", got.Get("meaning"))
	}
	if !got.Get("radical").Equal(Text("木")) {
		t.Errorf("radical: got %v, want secondary value", got.Get("radical"))
	}
}

func TestMergeAbsentPrimaryFallsThrough(t *testing.T) {
	schema := mustSchema(t, "meaning")
	primary := []Record{{"hanja": Text("水"), "meaning": Absent()}}
	secondary := []Record{{"meaning": Text("water")}}

	out, err := Merge(schema, primary, secondary)
	if err != nil {
		t.Fatal(err)
	}
	if !out[0].Get("meaning").Equal(Text("water")) {
		t.Errorf("meaning: got %v, want secondary to fill absent primary", out[0].Get("meaning"))
	}
}

func TestMergeExactKeySet(t *testing.T) {
	schema := mustSchema(t, "meaning|radical|stroke_count")
	primary := []Record{{
		"hanja":   Text("火"),
		"meaning": Text("fire"),
		"extra":   Text("dropped"), // not in schema, must not survive
	}}
	secondary := []Record{{"another": Text("also dropped")}}

	out, err := Merge(schema, primary, secondary)
	if err != nil {
		t.Fatal(err)
	}
	got := out[0]
	if len(got) != 4 {
		t.Fatalf("key count: got %d, want 4 (schema + hanja)", len(got))
	}
	for _, key := range []string{"hanja", "meaning", "radical", "stroke_count"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if _, ok := got["extra"]; ok {
		t.Error("non-schema key leaked into merged record")
	}
	if !got.Get("radical").IsAbsent() {
		t.Errorf("radical: got %v, want absent when neither side has it", got.Get("radical"))
	}
}

func TestMergeUnequalLengths(t *testing.T) {
	schema := mustSchema(t, "meaning")
	primary := []Record{
		{"hanja": Text("一"), "meaning": Text("one")},
		{"hanja": Text("二"), "meaning": Text("two")},
		{"hanja": Text("三"), "meaning": Text("three")},
	}
	secondary := []Record{{}, {}}

	out, err := Merge(schema, primary, secondary)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("merge: got %d records, want common prefix of 2", len(out))
	}

	// Shorter primary side.
	out, err = Merge(schema, primary[:1], secondary)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("merge: got %d records, want 1", len(out))
	}
}

func TestMergeMissingIdentifier(t *testing.T) {
	schema := mustSchema(t, "meaning")
	primary := []Record{
		{"hanja": Text("一"), "meaning": Text("one")},
		{"meaning": Text("orphan")},
	}
	secondary := []Record{{}, {}}

	_, err := Merge(schema, primary, secondary)
	if err == nil {
		t.Fatal("merge: expected error for record without identifying field")
	}
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("merge: got %v, want ErrMissingKey", err)
	}
}

func TestMergeEmpty(t *testing.T) {
	schema := mustSchema(t, "meaning")
	out, err := Merge(schema, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("merge empty: got %d records, want 0", len(out))
	}
}
