package pax

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/storage"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// ReadWriteMode selects which page latch a handler acquires.
type ReadWriteMode uint8

const (
	// ReadOnly attaches under the shared latch.
	ReadOnly ReadWriteMode = iota
	// ReadWrite attaches under the exclusive latch.
	ReadWrite
)

// RecordPageHandler operates on one attached record page. A handler moves
// through detached -> attached(ro|rw) -> detached; every mutating call
// requires ReadWrite mode.
type RecordPageHandler interface {
	// Attach latches an existing page.
	Attach(pageNum storage.PageNum, mode ReadWriteMode) error
	// InitEmpty formats a freshly allocated frame and leaves it attached in
	// ReadWrite mode. The handler takes over the caller's pin.
	InitEmpty(frame *storage.Frame, recordSize int) error
	// Detach releases the latch and unpins the frame.
	Detach()

	InsertRecord(data []byte) (RID, error)
	InsertChunk(ck *chunk.Chunk, startRow int) (int, error)
	DeleteRecord(rid RID) error
	GetRecord(rid RID) ([]byte, error)
	GetChunk(ck *chunk.Chunk) error
	RecoverInsertRecord(data []byte, rid RID) error

	IsFull() bool
	IsEmpty() bool
	PageNum() storage.PageNum
}

// NewPageHandler builds the handler matching the storage format.
func NewPageHandler(format StorageFormat, pool *storage.DiskBufferPool, log *storage.LogHandler,
	lob *storage.LobFileHandler, fields []FieldSpec, fileID int32) RecordPageHandler {
	base := recordPage{pool: pool, log: log, lob: lob, fields: fields, fileID: fileID}
	if format == FormatRow {
		return &RowPageHandler{recordPage: base}
	}
	return &PaxPageHandler{recordPage: base}
}

// recordPage holds the state shared by the row and PAX handlers.
type recordPage struct {
	pool   *storage.DiskBufferPool
	log    *storage.LogHandler
	lob    *storage.LobFileHandler
	fields []FieldSpec
	fileID int32
	frame  *storage.Frame
	mode   ReadWriteMode
	header pageHeader
}

func (p *recordPage) attach(pageNum storage.PageNum, mode ReadWriteMode) error {
	if p.frame != nil {
		if p.frame.PageNum() == pageNum {
			return rc.Errorf(rc.Internal, "page %d already attached", pageNum)
		}
		p.detach()
	}
	frame, err := p.pool.GetPage(pageNum)
	if err != nil {
		return err
	}
	if mode == ReadOnly {
		frame.ReadLatch()
	} else {
		frame.WriteLatch()
	}
	p.frame = frame
	p.mode = mode
	p.header = pageHeader{data: frame.Data()}
	return nil
}

func (p *recordPage) initEmpty(frame *storage.Frame, recordSize int, format StorageFormat) error {
	if p.frame != nil {
		p.detach()
	}
	frame.WriteLatch()
	p.frame = frame
	p.mode = ReadWrite
	p.header = pageHeader{data: frame.Data()}

	colIndex := formatHeader(frame.Data(), recordSize, p.fields, format)
	if int(p.header.dataOffset())+int(p.header.recordCapacity())*int(p.header.recordSize()) > storage.PageSize {
		return rc.Errorf(rc.Internal, "record overflows page: %s", p.header)
	}
	frame.MarkDirty()
	if err := p.log.NewPage(p.fileID, frame.PageNum(), colIndex); err != nil {
		return err
	}
	return nil
}

func (p *recordPage) detach() {
	if p.frame == nil {
		return
	}
	if p.mode == ReadOnly {
		p.frame.ReadUnlatch()
	} else {
		p.frame.WriteUnlatch()
	}
	p.pool.UnpinPage(p.frame)
	p.frame = nil
}

func (p *recordPage) bitmap() Bitmap {
	return NewBitmap(p.header.data[pageHeaderSize:], int(p.header.recordCapacity()))
}

func (p *recordPage) deleteRecord(rid RID) error {
	if p.mode == ReadOnly {
		return rc.New(rc.Internal, "delete on read-only page")
	}
	bitmap := p.bitmap()
	if !bitmap.Get(int(rid.Slot)) {
		return rc.Errorf(rc.RecordNotExist, "slot %d is empty on page %d", rid.Slot, rid.PageNum)
	}
	bitmap.Clear(int(rid.Slot))
	p.header.setRecordNum(p.header.recordNum() - 1)
	p.frame.MarkDirty()
	return p.log.DeleteRecord(p.fileID, rid.PageNum, rid.Slot)
}

// IsFull reports whether every slot is occupied.
func (p *recordPage) IsFull() bool { return p.header.recordNum() >= p.header.recordCapacity() }

// IsEmpty reports whether no slot is occupied.
func (p *recordPage) IsEmpty() bool { return p.header.recordNum() == 0 }

// PageNum returns the attached page number, or -1 when detached.
func (p *recordPage) PageNum() storage.PageNum {
	if p.frame == nil {
		return -1
	}
	return p.frame.PageNum()
}

func (p *recordPage) checkSlot(rid RID) error {
	if rid.Slot < 0 || rid.Slot >= p.header.recordCapacity() {
		return rc.Errorf(rc.RecordInvalidRID, "slot %d exceeds capacity %d", rid.Slot, p.header.recordCapacity())
	}
	if !p.bitmap().Get(int(rid.Slot)) {
		return rc.Errorf(rc.RecordNotExist, "slot %d is empty on page %d", rid.Slot, rid.PageNum)
	}
	return nil
}

// PaxPageHandler lays records out as per-column runs.
type PaxPageHandler struct {
	recordPage
}

// Attach latches an existing page.
func (p *PaxPageHandler) Attach(pageNum storage.PageNum, mode ReadWriteMode) error {
	return p.attach(pageNum, mode)
}

// InitEmpty formats a fresh frame as an empty PAX page.
func (p *PaxPageHandler) InitEmpty(frame *storage.Frame, recordSize int) error {
	return p.initEmpty(frame, recordSize, FormatPAX)
}

// Detach releases the latch and pin.
func (p *PaxPageHandler) Detach() { p.detach() }

func (p *PaxPageHandler) fieldLen(colID int) int {
	idx := p.header.colIndex()
	capacity := int(p.header.recordCapacity())
	if colID == 0 {
		return int(idx[0]) / capacity
	}
	return int(idx[colID]-idx[colID-1]) / capacity
}

func (p *PaxPageHandler) fieldData(slot, colID int) []byte {
	idx := p.header.colIndex()
	fieldLen := p.fieldLen(colID)
	base := int(p.header.dataOffset())
	if colID > 0 {
		base += int(idx[colID-1])
	}
	off := base + slot*fieldLen
	return p.header.data[off : off+fieldLen]
}

// fieldRun returns the contiguous bytes of rows consecutive fields of one
// column, starting at slot 0.
func (p *PaxPageHandler) fieldRun(colID, rows int) []byte {
	idx := p.header.colIndex()
	fieldLen := p.fieldLen(colID)
	base := int(p.header.dataOffset())
	if colID > 0 {
		base += int(idx[colID-1])
	}
	return p.header.data[base : base+rows*fieldLen]
}

// InsertRecord splits one record image across the column runs.
func (p *PaxPageHandler) InsertRecord(data []byte) (RID, error) {
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

	recordOffset := 0
	for colID := 0; colID < int(p.header.columnNum()); colID++ {
		fieldLen := p.fieldLen(colID)
		copy(p.fieldData(index, colID), data[recordOffset:recordOffset+fieldLen])
		recordOffset += fieldLen
	}
	p.frame.MarkDirty()
	return RID{PageNum: p.PageNum(), Slot: int32(index)}, nil
}

// RecoverInsertRecord replays an insert at a fixed slot.
func (p *PaxPageHandler) RecoverInsertRecord(data []byte, rid RID) error {
	if rid.Slot >= p.header.recordCapacity() {
		return rc.Errorf(rc.RecordInvalidRID, "slot %d exceeds capacity %d", rid.Slot, p.header.recordCapacity())
	}
	bitmap := p.bitmap()
	if !bitmap.Get(int(rid.Slot)) {
		bitmap.Set(int(rid.Slot))
		p.header.setRecordNum(p.header.recordNum() + 1)
	}
	recordOffset := 0
	for colID := 0; colID < int(p.header.columnNum()); colID++ {
		fieldLen := p.fieldLen(colID)
		copy(p.fieldData(int(rid.Slot), colID), data[recordOffset:recordOffset+fieldLen])
		recordOffset += fieldLen
	}
	p.frame.MarkDirty()
	return nil
}

// InsertChunk bulk-copies rows starting at startRow into this page, which
// must be freshly formatted. It returns the number of rows written; when the
// chunk has rows left over the error carries RECORD_NOMEM and the caller
// moves to a new page.
func (p *PaxPageHandler) InsertChunk(ck *chunk.Chunk, startRow int) (int, error) {
	if p.mode == ReadOnly {
		return 0, rc.New(rc.Internal, "insert on read-only page")
	}
	rowsToInsert := ck.Rows() - startRow
	rowsLeft := int(p.header.recordCapacity()) - int(p.header.recordNum())
	insertRows := rowsToInsert
	if insertRows > rowsLeft {
		insertRows = rowsLeft
	}

	bitmap := p.bitmap()
	bitmap.SetFirst(insertRows)
	p.header.setRecordNum(int32(insertRows))

	for j := 0; j < ck.ColumnNum(); j++ {
		colID := ck.ColumnIDs(j)
		col := ck.Column(j)
		if col.AttrType() == types.Texts && col.Arena().Len() > 0 {
			// Spill arena-backed payloads to the lob file and rewrite the
			// descriptors with their external offsets before copying.
			for i := startRow; i < startRow+insertRows; i++ {
				desc := col.StringAt(i)
				if !desc.IsInline() {
					offset, err := p.lob.InsertData(col.Arena().Bytes(desc))
					if err != nil {
						return 0, err
					}
					desc.SetOffset(uint64(offset))
					col.SetStringAt(i, desc)
				}
				copy(p.fieldData(i-startRow, colID), col.Data()[i*col.AttrLen():(i+1)*col.AttrLen()])
			}
			continue
		}
		src := col.Data()[startRow*col.AttrLen() : (startRow+insertRows)*col.AttrLen()]
		copy(p.fieldRun(colID, insertRows), src)
	}
	p.frame.MarkDirty()
	if err := p.log.InsertChunk(p.fileID, p.PageNum(), int32(insertRows)); err != nil {
		return insertRows, err
	}
	if rowsToInsert > rowsLeft {
		return insertRows, rc.Errorf(rc.RecordNoMem, "page %d full after %d rows", p.PageNum(), insertRows)
	}
	return insertRows, nil
}

// DeleteRecord clears the slot.
func (p *PaxPageHandler) DeleteRecord(rid RID) error { return p.deleteRecord(rid) }

// GetRecord reassembles one record image from the column runs.
func (p *PaxPageHandler) GetRecord(rid RID) ([]byte, error) {
	if rid.Slot < 0 || rid.Slot >= p.header.recordCapacity() {
		return nil, rc.Errorf(rc.RecordInvalidRID, "slot %d exceeds capacity %d", rid.Slot, p.header.recordCapacity())
	}
	if !p.bitmap().Get(int(rid.Slot)) {
		return nil, rc.Errorf(rc.RecordNotExist, "slot %d is empty on page %d", rid.Slot, rid.PageNum)
	}
	record := make([]byte, p.header.recordRealSize())
	recordOffset := 0
	for colID := 0; colID < int(p.header.columnNum()); colID++ {
		fieldLen := p.fieldLen(colID)
		copy(record[recordOffset:recordOffset+fieldLen], p.fieldData(int(rid.Slot), colID))
		recordOffset += fieldLen
	}
	return record, nil
}

// GetChunk copies the page's occupied rows into the requested columns of ck.
// Fully packed fixed-width columns take the bulk path; otherwise rows are
// appended bit by bit. Non-inline text descriptors are materialized from the
// lob file into the destination column's arena.
func (p *PaxPageHandler) GetChunk(ck *chunk.Chunk) error {
	ck.ResetData()
	bitmap := p.bitmap()
	recordNum := int(p.header.recordNum())
	packed := recordNum == int(p.header.recordCapacity())

	for j := 0; j < ck.ColumnNum(); j++ {
		colID := ck.ColumnIDs(j)
		col := ck.Column(j)
		if col.AttrType() == types.Undefined || colID < 0 {
			col.Resize(recordNum)
			continue
		}
		if packed && col.AttrType() != types.Texts {
			if err := col.AppendSlice(p.fieldRun(colID, recordNum), recordNum); err != nil {
				return err
			}
			continue
		}
		for i, index := 0, 0; i < recordNum; i, index = i+1, index+1 {
			index = bitmap.NextSet(index)
			if index < 0 {
				break
			}
			if col.AttrType() == types.Texts {
				desc := chunk.DecodeStringT(p.fieldData(index, colID))
				if !desc.IsInline() {
					lobOffset := int64(desc.Offset())
					arenaOffset, window := col.Arena().Alloc(desc.Size())
					if err := p.lob.GetData(lobOffset, window); err != nil {
						return err
					}
					desc = chunk.MakeOffsetString(desc.Size(), window[:chunk.StringPrefixSize], arenaOffset)
				}
				if err := col.AppendStringT(desc); err != nil {
					return err
				}
				continue
			}
			if err := col.AppendRaw(p.fieldData(index, colID)); err != nil {
				return err
			}
		}
	}
	return nil
}
