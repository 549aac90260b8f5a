package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/okpyeon/dbopen"
	"github.com/hazyhaar/okpyeon/modifier"
	"github.com/hazyhaar/okpyeon/naver"
	"github.com/hazyhaar/okpyeon/observability"
	"github.com/hazyhaar/okpyeon/record"
	"github.com/hazyhaar/okpyeon/wordbook"

	_ "modernc.org/sqlite"
)

const testWordbook = `木 나무 목
용례: 木材, 木馬

水 물 수
용례: 水泳
`

// stubClient is a canned collaborator: entries get the detail fields
// from the entries map, usages echo their words with fake meanings.
type stubClient struct {
	entries    map[string]record.Record
	entryCalls [][]string
	usageCalls [][]naver.UsagePair
	entryErr   error
	dropLast   bool // return one record short, to break alignment
}

func (s *stubClient) LookupEntries(_ context.Context, hanja []string) ([]record.Record, error) {
	s.entryCalls = append(s.entryCalls, hanja)
	if s.entryErr != nil {
		return nil, s.entryErr
	}
	out := make([]record.Record, 0, len(hanja))
	for _, h := range hanja {
		rec := record.New()
		rec.Set(record.KeyHanja, record.Text(h))
		for k, v := range s.entries[h] {
			rec.Set(k, v)
		}
		out = append(out, rec)
	}
	if s.dropLast && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (s *stubClient) LookupUsages(_ context.Context, pairs []naver.UsagePair) ([]record.Record, error) {
	s.usageCalls = append(s.usageCalls, pairs)
	out := make([]record.Record, 0, len(pairs))
	for _, p := range pairs {
		rec := record.New()
		rec.Set(record.KeyHanja, record.Text(p.Hanja))
		rec.Set(naver.FieldWords, record.List(p.Words...))
		meanings := make([]string, len(p.Words))
		for i, w := range p.Words {
			meanings[i] = "뜻: " + w
		}
		rec.Set(naver.FieldWordMeanings, record.List(meanings...))
		out = append(out, rec)
	}
	return out, nil
}

func testProfile(t *testing.T, inputRoot, outDir string) *Profile {
	t.Helper()
	if err := os.WriteFile(filepath.Join(inputRoot, "wordbook.txt"), []byte(testWordbook), 0o644); err != nil {
		t.Fatal(err)
	}
	p := DefaultProfile()
	p.Name = "elem"
	p.Input = "wordbook.txt"
	p.Patterns = []wordbook.Spec{
		wordbook.Single(`(?P<hanja>\S)\s+(?P<meaning>.+)`),
		wordbook.Delimited(`용례[:：]\s*(?P<usage>.+)`, ", "),
	}
	p.Schema = "meaning|radical|usage"
	p.Export.OutDir = outDir
	return p
}

func compilePlan(t *testing.T, p *Profile) *Plan {
	t.Helper()
	plan, err := p.Compile(modifier.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	return plan
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

func TestRunner_Run(t *testing.T) {
	inputRoot, outDir := t.TempDir(), t.TempDir()
	prof := testProfile(t, inputRoot, outDir)
	plan := compilePlan(t, prof)

	stub := &stubClient{entries: map[string]record.Record{
		"木": {
			naver.FieldMeaning: record.Text("나무에 대한 사전 뜻"),
			naver.FieldRadical: record.Text("木"),
		},
		"水": {
			naver.FieldRadical: record.Text("水"),
		},
	}}

	db := dbopen.OpenMemory(t, dbopen.WithSchema(observability.Schema))
	j := observability.NewJournal(db, 64)

	r := NewRunner(Config{InputRoot: inputRoot, Client: stub, Journal: j})
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}

	if res.RunID == "" {
		t.Fatal("run_id not assigned")
	}
	if res.EntryCount != 2 || res.UsageCount != 2 {
		t.Fatalf("counts: got %d/%d, want 2/2", res.EntryCount, res.UsageCount)
	}

	// Primary wins on meaning, secondary fills radical.
	e0 := res.Entries[0]
	if !e0.Get("meaning").Equal(record.Text("나무 목")) {
		t.Errorf("meaning: got %v, want wordbook value", e0.Get("meaning"))
	}
	if !e0.Get("radical").Equal(record.Text("木")) {
		t.Errorf("radical: got %v, want dictionary value", e0.Get("radical"))
	}
	if !e0.Get("usage").Equal(record.List("木材", "木馬")) {
		t.Errorf("usage: got %v", e0.Get("usage"))
	}

	// Usage stream carries the looked-up words, never merged.
	u0 := res.Usages[0]
	if !u0.Get(naver.FieldWords).Equal(record.List("木材", "木馬")) {
		t.Errorf("usage words: got %v", u0.Get(naver.FieldWords))
	}
	if u0.Has("meaning") {
		t.Error("usage record leaked a merged entry field")
	}

	// One batched call per lookup kind.
	if len(stub.entryCalls) != 1 || len(stub.usageCalls) != 1 {
		t.Fatalf("lookup calls: got %d/%d, want 1/1", len(stub.entryCalls), len(stub.usageCalls))
	}
	if got := stub.entryCalls[0]; len(got) != 2 || got[0] != "木" || got[1] != "水" {
		t.Fatalf("entry batch: got %v", got)
	}

	// Exported CSV: entries plus usages.
	if len(res.Files) != 2 {
		t.Fatalf("files: got %v", res.Files)
	}
	rows := readCSV(t, res.Files[0])
	if got := rows[0]; got[0] != "hanja" || got[1] != "meaning" || got[2] != "radical" || got[3] != "usage" {
		t.Fatalf("header: got %v", got)
	}
	if got := rows[1]; got[0] != "木" || got[3] != "木材, 木馬" {
		t.Fatalf("first row: got %v", got)
	}

	// Journal: completed run with a full stage trail.
	j.Close()
	j2 := observability.NewJournal(db, 8)
	defer j2.Close()

	run, err := j2.GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run == nil || run.Status != observability.StatusCompleted {
		t.Fatalf("run: got %+v, want completed", run)
	}
	if run.PrimaryCount != 2 || run.SubCount != 2 {
		t.Fatalf("run counts: got %d/%d", run.PrimaryCount, run.SubCount)
	}

	events, err := j2.Events(context.Background(), res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	stages := make(map[string]bool, len(events))
	for _, e := range events {
		stages[e.Stage] = true
	}
	for _, want := range []string{
		observability.StageLoad, observability.StageExtract, observability.StageEnrich,
		observability.StageMerge, observability.StageModify, observability.StageExport,
	} {
		if !stages[want] {
			t.Errorf("stage %q not journaled (got %v)", want, stages)
		}
	}
}

func TestRunner_Run_EnrichNull(t *testing.T) {
	inputRoot, outDir := t.TempDir(), t.TempDir()
	prof := testProfile(t, inputRoot, outDir)
	prof.Enrich = EnrichNull
	plan := compilePlan(t, prof)

	stub := &stubClient{}
	r := NewRunner(Config{InputRoot: inputRoot, Client: stub})
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(stub.entryCalls) != 0 || len(stub.usageCalls) != 0 {
		t.Fatal("null mode must not touch the configured collaborator")
	}
	if res.Entries[0].Present("radical") {
		t.Errorf("radical: got %v, want absent offline", res.Entries[0].Get("radical"))
	}
	if !res.Entries[0].Get("meaning").Equal(record.Text("나무 목")) {
		t.Errorf("meaning: got %v, want wordbook value", res.Entries[0].Get("meaning"))
	}
}

func TestRunner_Run_MissingKey(t *testing.T) {
	inputRoot, outDir := t.TempDir(), t.TempDir()
	prof := testProfile(t, inputRoot, outDir)
	// Third chunk has no matching first line, so its record lacks hanja.
	if err := os.WriteFile(filepath.Join(inputRoot, "wordbook.txt"),
		[]byte(testWordbook+"\n고아줄\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	plan := compilePlan(t, prof)

	db := dbopen.OpenMemory(t, dbopen.WithSchema(observability.Schema))
	j := observability.NewJournal(db, 8)
	defer j.Close()

	r := NewRunner(Config{InputRoot: inputRoot, Client: &stubClient{}, Journal: j})
	res, err := r.Run(context.Background(), plan)
	if !errors.Is(err, record.ErrMissingKey) {
		t.Fatalf("got %v, want ErrMissingKey", err)
	}
	if res != nil {
		t.Fatal("result must be nil on fatal error")
	}

	runs, err := j.Runs(context.Background(), &observability.RunFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != observability.StatusFailed {
		t.Fatalf("runs: got %+v, want one failed", runs)
	}
	if runs[0].ErrorMessage == "" {
		t.Fatal("failed run must record the error")
	}
}

func TestRunner_Run_Misaligned(t *testing.T) {
	inputRoot, outDir := t.TempDir(), t.TempDir()
	prof := testProfile(t, inputRoot, outDir)
	plan := compilePlan(t, prof)

	stub := &stubClient{dropLast: true}
	r := NewRunner(Config{InputRoot: inputRoot, Client: stub})
	if _, err := r.Run(context.Background(), plan); !errors.Is(err, ErrAlignment) {
		t.Fatalf("got %v, want ErrAlignment", err)
	}
}

func TestRunner_Run_CollaboratorError(t *testing.T) {
	inputRoot, outDir := t.TempDir(), t.TempDir()
	prof := testProfile(t, inputRoot, outDir)
	plan := compilePlan(t, prof)

	boom := errors.New("browser crashed")
	r := NewRunner(Config{InputRoot: inputRoot, Client: &stubClient{entryErr: boom}})
	if _, err := r.Run(context.Background(), plan); !errors.Is(err, boom) {
		t.Fatalf("got %v, want the collaborator error", err)
	}
}

func TestRunner_Run_InputOutsideRoot(t *testing.T) {
	inputRoot, outDir := t.TempDir(), t.TempDir()
	prof := testProfile(t, inputRoot, outDir)
	prof.Input = "../../etc/passwd"
	plan := compilePlan(t, prof)

	r := NewRunner(Config{InputRoot: inputRoot, Client: &stubClient{}})
	if _, err := r.Run(context.Background(), plan); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

func TestRunner_Run_ModifierWarnings(t *testing.T) {
	inputRoot, outDir := t.TempDir(), t.TempDir()
	prof := testProfile(t, inputRoot, outDir)
	prof.Modifiers.Entries = []modifier.Ref{{Name: "explode"}}

	reg := modifier.NewRegistry()
	reg.RegisterCollection("explode", func(recs []record.Record) ([]record.Record, error) {
		return nil, errors.New("intentional failure")
	})
	plan, err := prof.Compile(reg)
	if err != nil {
		t.Fatal(err)
	}

	r := NewRunner(Config{InputRoot: inputRoot, Client: &stubClient{}})
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("modifier failure must not abort the run: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Modifier != "explode" {
		t.Fatalf("warnings: got %+v", res.Warnings)
	}
	// The failed collection modifier leaves the stream intact.
	if res.EntryCount != 2 {
		t.Fatalf("entries: got %d, want 2", res.EntryCount)
	}
}

func TestRunner_Run_ExportNone(t *testing.T) {
	inputRoot := t.TempDir()
	prof := testProfile(t, inputRoot, "")
	prof.Export.Format = FormatNone
	prof.Export.OutDir = ""
	plan := compilePlan(t, prof)

	r := NewRunner(Config{InputRoot: inputRoot, Client: &stubClient{}})
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 0 {
		t.Fatalf("files: got %v, want none", res.Files)
	}
}

func TestRunner_Run_XLSX(t *testing.T) {
	inputRoot, outDir := t.TempDir(), t.TempDir()
	prof := testProfile(t, inputRoot, outDir)
	prof.Export.Format = FormatXLSX
	plan := compilePlan(t, prof)

	r := NewRunner(Config{InputRoot: inputRoot, Client: &stubClient{}})
	res, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 1 || filepath.Ext(res.Files[0]) != ".xlsx" {
		t.Fatalf("files: got %v, want one workbook", res.Files)
	}
	if _, err := os.Stat(res.Files[0]); err != nil {
		t.Fatal(err)
	}
}
