package pax

import (
	"sync"

	"github.com/google/btree"

	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/storage"
)

// RecordFileHandler manages the page-list heap of one table file. It tracks
// the set of not-full pages so inserts can fill existing pages first.
//
// Lock ordering: the insert path takes the free-set mutex, releases it, then
// acquires the page latch. Paths that already hold a page latch must release
// it before touching the free set again.
type RecordFileHandler struct {
	pool       *storage.DiskBufferPool
	log        *storage.LogHandler
	lob        *storage.LobFileHandler
	fields     []FieldSpec
	format     StorageFormat
	recordSize int
	fileID     int32

	mu        sync.Mutex
	freePages *btree.BTreeG[storage.PageNum]
}

// NewRecordFileHandler opens the heap over an already-open buffer pool and
// scans it for not-full pages.
func NewRecordFileHandler(pool *storage.DiskBufferPool, log *storage.LogHandler,
	lob *storage.LobFileHandler, fields []FieldSpec, format StorageFormat, fileID int32) (*RecordFileHandler, error) {
	recordSize := 0
	for _, f := range fields {
		recordSize += f.Len
	}
	h := &RecordFileHandler{
		pool:       pool,
		log:        log,
		lob:        lob,
		fields:     fields,
		format:     format,
		recordSize: recordSize,
		fileID:     fileID,
		freePages: btree.NewG(8, func(a, b storage.PageNum) bool {
			return a < b
		}),
	}
	if err := h.initFreePages(); err != nil {
		return nil, err
	}
	return h, nil
}

// RecordSize returns the unaligned record width.
func (h *RecordFileHandler) RecordSize() int { return h.recordSize }

// Format returns the storage format of this heap.
func (h *RecordFileHandler) Format() StorageFormat { return h.format }

// initFreePages walks every page looking for spare slots. Runs once at open,
// before any concurrency, so it takes no locks.
func (h *RecordFileHandler) initFreePages() error {
	it := h.pool.NewIterator(1)
	for {
		num, ok := it.Next()
		if !ok {
			return nil
		}
		handler := NewPageHandler(h.format, h.pool, h.log, h.lob, h.fields, h.fileID)
		if err := handler.Attach(num, ReadOnly); err != nil {
			return err
		}
		if !handler.IsFull() {
			h.freePages.ReplaceOrInsert(num)
		}
		handler.Detach()
	}
}

// InsertRecord places one record image on a not-full page, allocating a new
// page when none has room, and returns its RID.
func (h *RecordFileHandler) InsertRecord(data []byte) (RID, error) {
	handler := NewPageHandler(h.format, h.pool, h.log, h.lob, h.fields, h.fileID)
	pageFound := false

	for {
		h.mu.Lock()
		num, ok := h.freePages.Min()
		h.mu.Unlock()
		if !ok {
			break
		}
		if err := handler.Attach(num, ReadWrite); err != nil {
			return RID{}, err
		}
		if !handler.IsFull() {
			pageFound = true
			break
		}
		handler.Detach()
		h.mu.Lock()
		h.freePages.Delete(num)
		h.mu.Unlock()
	}
	// holding the page write latch now if a page was found

	if !pageFound {
		frame, err := h.pool.AllocatePage()
		if err != nil {
			return RID{}, err
		}
		num := frame.PageNum()
		if err := handler.InitEmpty(frame, h.recordSize); err != nil {
			handler.Detach()
			return RID{}, err
		}
		// Reversed relative to the loop above, but safe: the latch is held
		// on a page no other path can reach until it enters the free set.
		h.mu.Lock()
		h.freePages.ReplaceOrInsert(num)
		h.mu.Unlock()
	}

	defer handler.Detach()
	return handler.InsertRecord(data)
}

// InsertChunk writes the chunk across freshly allocated pages, one page-sized
// slice at a time.
func (h *RecordFileHandler) InsertChunk(ck *chunk.Chunk) error {
	for startRow := 0; startRow < ck.Rows(); {
		frame, err := h.pool.AllocatePage()
		if err != nil {
			return err
		}
		handler := NewPageHandler(h.format, h.pool, h.log, h.lob, h.fields, h.fileID)
		if err := handler.InitEmpty(frame, h.recordSize); err != nil {
			handler.Detach()
			return err
		}
		num := frame.PageNum()

		inserted, err := handler.InsertChunk(ck, startRow)
		full := handler.IsFull()
		handler.Detach()
		if err != nil && !rc.Is(err, rc.RecordNoMem) {
			return err
		}
		if !full {
			h.mu.Lock()
			h.freePages.ReplaceOrInsert(num)
			h.mu.Unlock()
		}
		startRow += inserted
	}
	return nil
}

// DeleteRecord clears the slot and returns the page to the free set.
func (h *RecordFileHandler) DeleteRecord(rid RID) error {
	handler := NewPageHandler(h.format, h.pool, h.log, h.lob, h.fields, h.fileID)
	if err := handler.Attach(rid.PageNum, ReadWrite); err != nil {
		return err
	}
	err := handler.DeleteRecord(rid)
	// Detach before touching the free set so the lock order never inverts
	// against InsertRecord.
	handler.Detach()
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.freePages.ReplaceOrInsert(rid.PageNum)
	h.mu.Unlock()
	return nil
}

// GetRecord reads one record image.
func (h *RecordFileHandler) GetRecord(rid RID) ([]byte, error) {
	handler := NewPageHandler(h.format, h.pool, h.log, h.lob, h.fields, h.fileID)
	if err := handler.Attach(rid.PageNum, ReadOnly); err != nil {
		return nil, err
	}
	defer handler.Detach()
	return handler.GetRecord(rid)
}

// RecoverInsertRecord replays a logged insert at its original RID.
func (h *RecordFileHandler) RecoverInsertRecord(data []byte, rid RID) error {
	handler := NewPageHandler(h.format, h.pool, h.log, h.lob, h.fields, h.fileID)
	if err := handler.Attach(rid.PageNum, ReadWrite); err != nil {
		return err
	}
	defer handler.Detach()
	return handler.RecoverInsertRecord(data, rid)
}

// FreePageCount returns the size of the not-full page set.
func (h *RecordFileHandler) FreePageCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.freePages.Len()
}

// ChunkFileScanner yields one chunk per page of a heap file.
type ChunkFileScanner struct {
	handler *RecordFileHandler
	mode    ReadWriteMode
	iter    *storage.Iterator
}

// OpenScan starts a page-ordered scan.
func (s *ChunkFileScanner) OpenScan(handler *RecordFileHandler, mode ReadWriteMode) {
	s.handler = handler
	s.mode = mode
	s.iter = handler.pool.NewIterator(1)
}

// NextChunk fills ck with the next page's rows; RECORD_EOF when exhausted.
func (s *ChunkFileScanner) NextChunk(ck *chunk.Chunk) error {
	for {
		num, ok := s.iter.Next()
		if !ok {
			return rc.EOF()
		}
		page := NewPageHandler(s.handler.format, s.handler.pool, s.handler.log, s.handler.lob, s.handler.fields, s.handler.fileID)
		if err := page.Attach(num, s.mode); err != nil {
			return err
		}
		err := page.GetChunk(ck)
		page.Detach()
		if err != nil {
			return err
		}
		return nil
	}
}

// CloseScan releases scanner state.
func (s *ChunkFileScanner) CloseScan() error {
	s.iter = nil
	s.handler = nil
	return nil
}
