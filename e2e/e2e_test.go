// Package e2e tests the full pipeline wiring: profile YAML and wordbook
// files on disk, file-backed journal database, the service layer, and the
// MCP surface, composed the way the production binary composes them.
package e2e

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/okpyeon/dbopen"
	"github.com/hazyhaar/okpyeon/naver"
	"github.com/hazyhaar/okpyeon/observability"
	"github.com/hazyhaar/okpyeon/pipeline"
	"github.com/hazyhaar/okpyeon/record"

	_ "modernc.org/sqlite"
)

const wordbookMD = `木 나무 목
용례: 木材, 木馬

水 물 수
용례: 水泳
`

// fakeDict is a canned collaborator standing in for the Chrome-driven
// client: entry details come from a fixed table, usage lookups echo
// their words.
type fakeDict struct {
	details    map[string]map[string]record.Value
	entryCalls int
}

func (f *fakeDict) LookupEntries(_ context.Context, hanja []string) ([]record.Record, error) {
	f.entryCalls++
	out := make([]record.Record, 0, len(hanja))
	for _, h := range hanja {
		rec := record.New()
		rec.Set(record.KeyHanja, record.Text(h))
		for k, v := range f.details[h] {
			rec.Set(k, v)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeDict) LookupUsages(_ context.Context, pairs []naver.UsagePair) ([]record.Record, error) {
	out := make([]record.Record, 0, len(pairs))
	for _, p := range pairs {
		rec := record.New()
		rec.Set(record.KeyHanja, record.Text(p.Hanja))
		rec.Set(naver.FieldWords, record.List(p.Words...))
		out = append(out, rec)
	}
	return out, nil
}

func newFakeDict() *fakeDict {
	return &fakeDict{details: map[string]map[string]record.Value{
		"木": {
			naver.FieldRadical:     record.Text("木"),
			naver.FieldStrokeCount: record.Text("4"),
		},
		"水": {
			naver.FieldRadical:     record.Text("水"),
			naver.FieldStrokeCount: record.Text("4"),
		},
	}}
}

// tree is the on-disk layout one production deployment uses: profiles,
// inputs, outputs, and the journal database file.
type tree struct {
	profiles    string
	inputs      string
	out         string
	journalPath string
}

func newTree(t *testing.T) *tree {
	t.Helper()
	root := t.TempDir()
	tr := &tree{
		profiles:    filepath.Join(root, "profiles"),
		inputs:      filepath.Join(root, "data", "input"),
		out:         filepath.Join(root, "data", "output"),
		journalPath: filepath.Join(root, "db", "journal.db"),
	}
	for _, dir := range []string{tr.profiles, tr.inputs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return tr
}

func (tr *tree) writeInput(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(tr.inputs, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (tr *tree) writeProfile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(tr.profiles, name+".yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newService wires a Service exactly like cmd/okpyeon does, with the
// fake collaborator in place of the browser client and a file-backed
// journal so persistence across handles is part of the test.
func newService(t *testing.T, tr *tree, client naver.Client) *pipeline.Service {
	t.Helper()
	db, err := dbopen.Open(tr.journalPath,
		dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	j := observability.NewJournal(db, 64)
	t.Cleanup(func() { j.Close() })

	runner := pipeline.NewRunner(pipeline.Config{
		InputRoot: tr.inputs,
		Client:    client,
		Journal:   j,
	})
	return pipeline.NewService(pipeline.ServiceConfig{
		ProfilesDir: tr.profiles,
		Runner:      runner,
		Journal:     j,
	})
}

// reopenJournal opens a second handle on the journal file, the way a
// later process would.
func reopenJournal(t *testing.T, tr *tree) *observability.Journal {
	t.Helper()
	db, err := dbopen.Open(tr.journalPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	j := observability.NewJournal(db, 8)
	t.Cleanup(func() { j.Close() })
	return j
}

func elemProfile(tr *tree) string {
	return fmt.Sprintf(`input: wordbook.md
patterns:
  - '(?P<hanja>\S)\s+(?P<meaning>.+)'
  - ['용례[:：]\s*(?P<usage>.+)', ', ']
schema: meaning|radical|stroke_count|usage
modifiers:
  entries:
    - name: normalize_space
      field: meaning
export:
  format: csv
  out_dir: %s
`, tr.out)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}
