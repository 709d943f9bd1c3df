package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/core"
	"github.com/matteoser/PiemonteDB/pkg/pax"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

func TestSplitLineQuoting(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{`a,b,c`, []string{"a", "b", "c"}},
		{`"a,b",c`, []string{"a,b", "c"}},
		{`"say ""hi""",x`, []string{`say "hi"`, "x"}},
		{`,,`, []string{"", "", ""}},
		{`plain`, []string{"plain"}},
	}
	for i, c := range cases {
		got := splitLine(c.line, ',', '"')
		if len(got) != len(c.want) {
			t.Fatalf("case %d: %v, want %v", i, got, c.want)
		}
		for j := range got {
			if got[j] != c.want[j] {
				t.Errorf("case %d field %d: %q, want %q", i, j, got[j], c.want[j])
			}
		}
	}
}

func TestEnclosureBalance(t *testing.T) {
	if enclosureBalanced(`"open`, '"') {
		t.Error("unmatched quote should read as unbalanced")
	}
	if !enclosureBalanced(`"closed"`, '"') {
		t.Error("matched quotes should read as balanced")
	}
	if !enclosureBalanced(`"escaped "" quote"`, '"') {
		t.Error("doubled quote must not toggle balance")
	}
}

func openTestDB(t *testing.T) *core.Database {
	t.Helper()
	db, err := core.OpenDatabase(t.TempDir(), 32, false)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func scanAll(t *testing.T, table *core.Table) [][]string {
	t.Helper()
	meta := table.Meta()
	scanner := table.OpenChunkScanner(pax.ReadOnly)
	defer scanner.CloseScan()

	capacity := pax.HeapPageCapacity(meta.RecordSize(), meta.FieldNum())
	out := chunk.NewChunk()
	for i := 0; i < meta.FieldNum(); i++ {
		field := meta.Field(i)
		out.AddColumn(chunk.NewColumn(field.Type, field.Len, capacity), i)
	}
	var rows [][]string
	for {
		err := scanner.NextChunk(out)
		if rc.IsEOF(err) {
			return rows
		}
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		for r := 0; r < out.Rows(); r++ {
			row := make([]string, out.ColumnNum())
			for c := 0; c < out.ColumnNum(); c++ {
				row[c] = out.GetValue(c, r).ToString()
			}
			rows = append(rows, row)
		}
	}
}

func TestLoadIntoPaxTable(t *testing.T) {
	db := openTestDB(t)
	table, err := db.CreateTable("people", []core.AttrInfo{
		{Name: "id", Type: types.Ints},
		{Name: "name", Type: types.Chars, Len: 8},
		{Name: "born", Type: types.Dates},
	}, pax.FormatPAX)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	content := "1,alice, 1990-01-02 \n\n2,bob,1985-12-31\n3,carol,2000-06-15\n"
	path := writeFile(t, t.TempDir(), "people.csv", content)

	report, err := NewLoader().Load(table, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(report, string(rc.Success)) {
		t.Errorf("report should end with SUCCESS: %q", report)
	}

	rows := scanAll(t, table)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	byID := map[string][]string{}
	for _, row := range rows {
		byID[row[0]] = row
	}
	if byID["1"][1] != "alice" || byID["1"][2] != "1990-01-02" {
		t.Errorf("row 1 mismatch: %v", byID["1"])
	}
	if byID["2"][2] != "1985-12-31" {
		t.Errorf("row 2 mismatch: %v", byID["2"])
	}
}

func TestLoadQuotedNewlineContinuation(t *testing.T) {
	db := openTestDB(t)
	table, err := db.CreateTable("notes", []core.AttrInfo{
		{Name: "id", Type: types.Ints},
		{Name: "body", Type: types.Chars, Len: 32},
	}, pax.FormatPAX)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	content := "1,\"line one\nline two\"\n2,simple\n"
	path := writeFile(t, t.TempDir(), "notes.csv", content)
	if _, err := NewLoader().Load(table, path); err != nil {
		t.Fatalf("load: %v", err)
	}

	rows := scanAll(t, table)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	joined := map[string]string{}
	for _, row := range rows {
		joined[row[0]] = row[1]
	}
	if joined["1"] != "line one\nline two" {
		t.Errorf("continuation mismatch: %q", joined["1"])
	}
}

func TestLoadReportsBadLinesAndContinues(t *testing.T) {
	db := openTestDB(t)
	table, err := db.CreateTable("nums", []core.AttrInfo{
		{Name: "v", Type: types.Ints},
	}, pax.FormatPAX)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	content := "1\nnot-a-number\n3\n"
	path := writeFile(t, t.TempDir(), "nums.csv", content)
	report, err := NewLoader().Load(table, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(report, "Line:2") {
		t.Errorf("report should name the failing line: %q", report)
	}
	if !strings.Contains(report, string(rc.Success)) {
		t.Errorf("loader keeps SUCCESS despite per-line failures: %q", report)
	}
	if rows := scanAll(t, table); len(rows) != 2 {
		t.Errorf("rows = %d, want 2", len(rows))
	}
}

func TestLoadIntoRowTable(t *testing.T) {
	db := openTestDB(t)
	table, err := db.CreateTable("rowfmt", []core.AttrInfo{
		{Name: "id", Type: types.Ints},
		{Name: "tag", Type: types.Chars, Len: 4},
	}, pax.FormatRow)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	path := writeFile(t, t.TempDir(), "row.csv", "7,abcd\n8,efgh\n")
	if _, err := NewLoader().Load(table, path); err != nil {
		t.Fatalf("load: %v", err)
	}
	rows := scanAll(t, table)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
}

func TestLoadMissingFile(t *testing.T) {
	db := openTestDB(t)
	table, err := db.CreateTable("t", []core.AttrInfo{{Name: "v", Type: types.Ints}}, pax.FormatPAX)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := NewLoader().Load(table, "/does/not/exist.csv"); !rc.Is(err, rc.FileNotExist) {
		t.Errorf("Expected FILE_NOT_EXIST, got %v", err)
	}
}
