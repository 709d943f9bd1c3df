package loader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/core"
	"github.com/matteoser/PiemonteDB/pkg/pax"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// Loader parses a delimited text file into table rows. Row-format tables take
// one insert per line; PAX tables buffer up to a page worth of rows per
// column and issue chunk inserts. Per-line failures go into the report and
// loading continues with the next line.
type Loader struct {
	Terminated byte
	Enclosed   byte
}

// NewLoader returns a loader with the default comma/double-quote grammar.
func NewLoader() *Loader {
	return &Loader{Terminated: ',', Enclosed: '"'}
}

// Load reads the file into table and returns the textual report.
func (l *Loader) Load(table *core.Table, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", rc.Errorf(rc.FileNotExist, "failed to open file %s: %v", path, err)
	}
	defer file.Close()

	meta := table.Meta()
	fieldNum := meta.FieldNum()
	var report strings.Builder

	var columns []*chunk.Column
	pageCapacity := 0
	if meta.StorageFormat == pax.FormatPAX {
		pageCapacity = pax.HeapPageCapacity(meta.RecordSize(), fieldNum)
		columns = l.freshColumns(meta, pageCapacity)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	var multiline string

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if multiline == "" {
			if isBlank(line) {
				continue
			}
			multiline = line
		} else {
			// An unmatched quote joins physical lines with a newline.
			multiline += "\n" + line
		}
		if !enclosureBalanced(multiline, l.Enclosed) {
			continue
		}
		fields := splitLine(multiline, l.Terminated, l.Enclosed)
		multiline = ""

		values, err := l.parseLine(meta, fields)
		if err != nil {
			fmt.Fprintf(&report, "Line:%d insert record failed. error:%s\n", lineNum, rc.CodeOf(err))
			continue
		}

		if meta.StorageFormat == pax.FormatRow {
			record, err := table.MakeRecord(values)
			if err == nil {
				_, err = table.InsertRecord(record)
			}
			if err != nil {
				fmt.Fprintf(&report, "Line:%d insert record failed. error:%s\n", lineNum, rc.CodeOf(err))
			}
			continue
		}

		for i, v := range values {
			if err := columns[i].AppendValue(v); err != nil {
				return report.String(), err
			}
		}
		if columns[0].Count() == pageCapacity {
			if err := l.flushColumns(table, columns); err != nil {
				return report.String(), err
			}
			columns = l.freshColumns(meta, pageCapacity)
		}
	}
	if err := scanner.Err(); err != nil {
		return report.String(), rc.Errorf(rc.IOErrRead, "read %s: %v", path, err)
	}

	if meta.StorageFormat == pax.FormatPAX && columns[0].Count() > 0 {
		if err := l.flushColumns(table, columns); err != nil {
			return report.String(), err
		}
	}

	report.WriteString(string(rc.Success))
	return report.String(), nil
}

// parseLine converts split fields into typed values; non-char fields have
// surrounding whitespace stripped first.
func (l *Loader) parseLine(meta *core.TableMeta, fields []string) ([]types.Value, error) {
	if len(fields) < meta.FieldNum() {
		return nil, rc.Errorf(rc.SchemaFieldMissing, "want %d fields, got %d", meta.FieldNum(), len(fields))
	}
	values := make([]types.Value, meta.FieldNum())
	for i := 0; i < meta.FieldNum(); i++ {
		field := meta.Field(i)
		raw := fields[i]
		if field.Type != types.Chars {
			raw = strings.TrimSpace(raw)
		}
		v, err := types.ParseValue(field.Type, raw)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (l *Loader) freshColumns(meta *core.TableMeta, capacity int) []*chunk.Column {
	columns := make([]*chunk.Column, meta.FieldNum())
	for i := 0; i < meta.FieldNum(); i++ {
		field := meta.Field(i)
		columns[i] = chunk.NewColumn(field.Type, field.Len, capacity)
	}
	return columns
}

func (l *Loader) flushColumns(table *core.Table, columns []*chunk.Column) error {
	ck := chunk.NewChunk()
	for i, col := range columns {
		ck.AddColumn(col, i)
	}
	return table.InsertChunk(ck)
}
