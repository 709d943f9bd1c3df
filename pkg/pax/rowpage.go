package pax

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/storage"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// RowPageHandler stores each record contiguously; it exists as the contrast
// layout to PAX and serves the loader's record-at-a-time path.
type RowPageHandler struct {
	recordPage
}

// Attach latches an existing page.
func (p *RowPageHandler) Attach(pageNum storage.PageNum, mode ReadWriteMode) error {
	return p.attach(pageNum, mode)
}

// InitEmpty formats a fresh frame as an empty row page.
func (p *RowPageHandler) InitEmpty(frame *storage.Frame, recordSize int) error {
	return p.initEmpty(frame, recordSize, FormatRow)
}

// Detach releases the latch and pin.
func (p *RowPageHandler) Detach() { p.detach() }

func (p *RowPageHandler) recordData(slot int) []byte {
	size := int(p.header.recordSize())
	off := int(p.header.dataOffset()) + slot*size
	return p.header.data[off : off+int(p.header.recordRealSize())]
}

// InsertRecord copies one record image into the first free slot.
func (p *RowPageHandler) InsertRecord(data []byte) (RID, error) {
	if p.mode == ReadOnly {
		return RID{}, rc.New(rc.Internal, "insert on read-only page")
	}
	if p.IsFull() {
		return RID{}, rc.Errorf(rc.RecordNoMem, "page %d is full", p.PageNum())
	}
	bitmap := p.bitmap()
	index := bitmap.NextUnset(0)
	bitmap.Set(index)
	p.header.setRecordNum(p.header.recordNum() + 1)

	if err := p.log.InsertRecord(p.fileID, p.PageNum(), int32(index), data); err != nil {
		return RID{}, err
	}
	copy(p.recordData(index), data[:p.header.recordRealSize()])
	p.frame.MarkDirty()
	return RID{PageNum: p.PageNum(), Slot: int32(index)}, nil
}

// RecoverInsertRecord replays an insert at a fixed slot.
func (p *RowPageHandler) RecoverInsertRecord(data []byte, rid RID) error {
	if rid.Slot >= p.header.recordCapacity() {
		return rc.Errorf(rc.RecordInvalidRID, "slot %d exceeds capacity %d", rid.Slot, p.header.recordCapacity())
	}
	bitmap := p.bitmap()
	if !bitmap.Get(int(rid.Slot)) {
		bitmap.Set(int(rid.Slot))
		p.header.setRecordNum(p.header.recordNum() + 1)
	}
	copy(p.recordData(int(rid.Slot)), data[:p.header.recordRealSize()])
	p.frame.MarkDirty()
	return nil
}

// InsertChunk appends rows record-at-a-time; the row layout has no bulk path.
func (p *RowPageHandler) InsertChunk(ck *chunk.Chunk, startRow int) (int, error) {
	if p.mode == ReadOnly {
		return 0, rc.New(rc.Internal, "insert on read-only page")
	}
	record := make([]byte, p.header.recordRealSize())
	inserted := 0
	for row := startRow; row < ck.Rows(); row++ {
		if p.IsFull() {
			return inserted, rc.Errorf(rc.RecordNoMem, "page %d full after %d rows", p.PageNum(), inserted)
		}
		offset := 0
		for j := 0; j < ck.ColumnNum(); j++ {
			col := ck.Column(j)
			copy(record[offset:offset+col.AttrLen()], col.Data()[row*col.AttrLen():(row+1)*col.AttrLen()])
			offset += col.AttrLen()
		}
		if _, err := p.InsertRecord(record); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// DeleteRecord clears the slot.
func (p *RowPageHandler) DeleteRecord(rid RID) error { return p.deleteRecord(rid) }

// GetRecord returns a copy of the record image.
func (p *RowPageHandler) GetRecord(rid RID) ([]byte, error) {
	if err := p.checkSlot(rid); err != nil {
		return nil, err
	}
	record := make([]byte, p.header.recordRealSize())
	copy(record, p.recordData(int(rid.Slot)))
	return record, nil
}

// GetChunk slices each occupied record into the requested columns.
func (p *RowPageHandler) GetChunk(ck *chunk.Chunk) error {
	ck.ResetData()
	bitmap := p.bitmap()
	recordNum := int(p.header.recordNum())

	offsets := make([]int, len(p.fields))
	off := 0
	for i, f := range p.fields {
		offsets[i] = off
		off += f.Len
	}

	for j := 0; j < ck.ColumnNum(); j++ {
		colID := ck.ColumnIDs(j)
		col := ck.Column(j)
		if col.AttrType() == types.Undefined || colID < 0 {
			col.Resize(recordNum)
			continue
		}
		for i, index := 0, 0; i < recordNum; i, index = i+1, index+1 {
			index = bitmap.NextSet(index)
			if index < 0 {
				break
			}
			record := p.recordData(index)
			if err := col.AppendRaw(record[offsets[colID] : offsets[colID]+p.fields[colID].Len]); err != nil {
				return err
			}
		}
	}
	return nil
}
