package core

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/pax"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/storage"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// Table binds a table's metadata to its heap file.
type Table struct {
	meta *TableMeta
	pool *storage.DiskBufferPool
	heap *pax.RecordFileHandler
}

// Meta returns the table metadata.
func (t *Table) Meta() *TableMeta { return t.meta }

// Name returns the table name.
func (t *Table) Name() string { return t.meta.Name }

// Pool exposes the table's buffer pool for stats.
func (t *Table) Pool() *storage.DiskBufferPool { return t.pool }

// MakeRecord encodes one row of values into the on-page record image,
// casting values to the field types where an implicit cast exists.
func (t *Table) MakeRecord(values []types.Value) ([]byte, error) {
	if len(values) != t.meta.FieldNum() {
		return nil, rc.Errorf(rc.SchemaFieldMissing, "table %s wants %d values, got %d",
			t.meta.Name, t.meta.FieldNum(), len(values))
	}
	// Encode through a single-row chunk so the value-to-bytes rules stay in
	// one place.
	row := chunk.NewChunk()
	for i, f := range t.meta.Fields {
		col := chunk.NewColumn(f.Type, f.Len, 1)
		v := values[i]
		if v.AttrType() != f.Type {
			cast, err := v.CastTo(f.Type)
			if err != nil {
				return nil, err
			}
			v = cast
		}
		if err := col.AppendValue(v); err != nil {
			return nil, err
		}
		row.AddColumn(col, i)
	}
	record := make([]byte, t.meta.RecordSize())
	offset := 0
	for i := 0; i < row.ColumnNum(); i++ {
		col := row.Column(i)
		copy(record[offset:offset+col.AttrLen()], col.Data())
		offset += col.AttrLen()
	}
	return record, nil
}

// InsertRecord places one encoded record and returns its RID.
func (t *Table) InsertRecord(record []byte) (pax.RID, error) {
	return t.heap.InsertRecord(record)
}

// InsertChunk bulk-inserts columnar data.
func (t *Table) InsertChunk(ck *chunk.Chunk) error {
	return t.heap.InsertChunk(ck)
}

// DeleteRecord removes the record at rid.
func (t *Table) DeleteRecord(rid pax.RID) error {
	return t.heap.DeleteRecord(rid)
}

// GetRecord reads the record image at rid.
func (t *Table) GetRecord(rid pax.RID) ([]byte, error) {
	return t.heap.GetRecord(rid)
}

// OpenChunkScanner starts a page-ordered columnar scan.
func (t *Table) OpenChunkScanner(mode pax.ReadWriteMode) *pax.ChunkFileScanner {
	scanner := &pax.ChunkFileScanner{}
	scanner.OpenScan(t.heap, mode)
	return scanner
}

// Sync flushes the table's pages.
func (t *Table) Sync() error { return t.pool.Sync() }
