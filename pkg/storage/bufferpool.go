package storage

import (
	"bytes"
	"container/list"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"sync"
	"time"

	"github.com/matteoser/PiemonteDB/pkg/rc"
)

var headerMagic = [8]byte{'P', 'I', 'E', 'M', 'O', 'N', 'T', 'E'}

// DiskBufferPool manages the frames of one paged file. Frames stay resident
// while pinned; unpinned frames are kept on an LRU list and evicted when the
// pool exceeds its capacity.
type DiskBufferPool struct {
	path string
	file *os.File

	mu       sync.Mutex
	frames   map[PageNum]*Frame
	lru      *list.List // of PageNum, most recent in front
	lruPos   map[PageNum]*list.Element
	capacity int
	header   FileHeader
	freeList []PageNum
	hits     uint64
	misses   uint64
}

// OpenBufferPool opens or creates a paged file.
func OpenBufferPool(path string, cacheSize int) (*DiskBufferPool, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	p := &DiskBufferPool{
		path:     path,
		frames:   make(map[PageNum]*Frame),
		lru:      list.New(),
		lruPos:   make(map[PageNum]*list.Element),
		capacity: cacheSize,
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			if err := p.createNewFile(path); err != nil {
				return nil, err
			}
			return p, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	p.file = file
	if err := p.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return p, nil
}

// Close flushes dirty frames and the header, then closes the file.
func (p *DiskBufferPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	if err := p.flushAllLocked(); err != nil {
		return err
	}
	if err := p.writeHeader(); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return err
	}
	err := p.file.Close()
	p.file = nil
	if err != nil {
		return rc.Errorf(rc.IOErrClose, "close %s: %v", p.path, err)
	}
	return nil
}

// Sync writes back every dirty frame and the header.
func (p *DiskBufferPool) Sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.flushAllLocked(); err != nil {
		return err
	}
	if err := p.writeHeader(); err != nil {
		return err
	}
	return p.file.Sync()
}

// GetPage returns a pinned frame for an existing page.
func (p *DiskBufferPool) GetPage(num PageNum) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if num <= 0 || uint32(num) >= p.header.PageCount {
		return nil, rc.Errorf(rc.RecordInvalidRID, "page %d out of range", num)
	}
	if frame, ok := p.frames[num]; ok {
		p.hits++
		frame.pin()
		p.touchLocked(num)
		return frame, nil
	}
	p.misses++

	frame := &Frame{pageNum: num, data: make([]byte, PageSize)}
	if _, err := p.file.ReadAt(frame.data, int64(num)*PageSize); err != nil {
		return nil, rc.Errorf(rc.IOErrRead, "read page %d: %v", num, err)
	}
	frame.pin()
	p.frames[num] = frame
	p.touchLocked(num)
	p.evictLocked()
	return frame, nil
}

// AllocatePage returns a pinned frame for a fresh zeroed page, reusing a
// disposed page when one is available.
func (p *DiskBufferPool) AllocatePage() (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var num PageNum
	if n := len(p.freeList); n > 0 {
		num = p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
	} else {
		num = PageNum(p.header.PageCount)
		p.header.PageCount++
	}

	frame := &Frame{pageNum: num, data: make([]byte, PageSize)}
	frame.dirty = true
	frame.pin()
	p.frames[num] = frame
	p.touchLocked(num)
	p.evictLocked()
	return frame, nil
}

// UnpinPage releases one pin on the frame.
func (p *DiskBufferPool) UnpinPage(frame *Frame) { frame.unpin() }

// DisposePage returns a page to the free list. The caller must hold no latch
// on it.
func (p *DiskBufferPool) DisposePage(num PageNum) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if frame, ok := p.frames[num]; ok {
		if frame.pinned() {
			return rc.Errorf(rc.Internal, "dispose pinned page %d", num)
		}
		delete(p.frames, num)
		if elem, ok := p.lruPos[num]; ok {
			p.lru.Remove(elem)
			delete(p.lruPos, num)
		}
	}
	p.freeList = append(p.freeList, num)
	return nil
}

// PageCount returns the number of pages in the file, header page included.
func (p *DiskBufferPool) PageCount() PageNum {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PageNum(p.header.PageCount)
}

// Stats reports pool counters.
func (p *DiskBufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.hits + p.misses
	rate := 0.0
	if total > 0 {
		rate = float64(p.hits) / float64(total)
	}
	return PoolStats{
		TotalPages: uint64(p.header.PageCount),
		FreePages:  uint64(len(p.freeList)),
		Frames:     len(p.frames),
		Capacity:   p.capacity,
		Hits:       p.hits,
		Misses:     p.misses,
		HitRate:    rate,
	}
}

// FlushPage writes one frame back if dirty.
func (p *DiskBufferPool) FlushPage(frame *Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushFrameLocked(frame)
}

// Private methods

func (p *DiskBufferPool) createNewFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	p.file = file
	now := time.Now().Unix()
	p.header = FileHeader{
		Magic:     headerMagic,
		Version:   1,
		PageSize:  PageSize,
		PageCount: 1, // header page
		Created:   now,
		Modified:  now,
	}
	return p.writeHeader()
}

func (p *DiskBufferPool) readHeader() error {
	data := make([]byte, PageSize)
	if _, err := p.file.ReadAt(data, 0); err != nil {
		return err
	}
	buf := bytes.NewReader(data)
	if err := binary.Read(buf, binary.LittleEndian, &p.header); err != nil {
		return err
	}
	if p.header.Magic != headerMagic {
		return fmt.Errorf("invalid file format")
	}
	p.freeList = make([]PageNum, p.header.FreeCount)
	if err := binary.Read(buf, binary.LittleEndian, p.freeList); err != nil {
		return err
	}
	return nil
}

func (p *DiskBufferPool) writeHeader() error {
	p.header.Modified = time.Now().Unix()
	p.header.FreeCount = uint32(len(p.freeList))
	p.header.Checksum = 0
	p.header.Checksum = p.headerChecksum()

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &p.header); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, p.freeList); err != nil {
		return err
	}
	if buf.Len() > PageSize {
		return rc.Errorf(rc.IOErrTooLong, "free list overflows header page")
	}
	data := make([]byte, PageSize)
	copy(data, buf.Bytes())
	if _, err := p.file.WriteAt(data, 0); err != nil {
		return rc.Errorf(rc.IOErrWrite, "write header: %v", err)
	}
	return nil
}

func (p *DiskBufferPool) headerChecksum() uint32 {
	header := p.header
	header.Checksum = 0
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, &header)
	return crc32.ChecksumIEEE(buf.Bytes())
}

func (p *DiskBufferPool) flushFrameLocked(frame *Frame) error {
	if !frame.takeDirty() {
		return nil
	}
	if _, err := p.file.WriteAt(frame.data, int64(frame.pageNum)*PageSize); err != nil {
		frame.MarkDirty()
		return rc.Errorf(rc.IOErrWrite, "write page %d: %v", frame.pageNum, err)
	}
	return nil
}

func (p *DiskBufferPool) flushAllLocked() error {
	for _, frame := range p.frames {
		if err := p.flushFrameLocked(frame); err != nil {
			return err
		}
	}
	return nil
}

func (p *DiskBufferPool) touchLocked(num PageNum) {
	if elem, ok := p.lruPos[num]; ok {
		p.lru.MoveToFront(elem)
		return
	}
	p.lruPos[num] = p.lru.PushFront(num)
}

func (p *DiskBufferPool) evictLocked() {
	for len(p.frames) > p.capacity {
		evicted := false
		for elem := p.lru.Back(); elem != nil; elem = elem.Prev() {
			num := elem.Value.(PageNum)
			frame, ok := p.frames[num]
			if !ok || frame.pinned() {
				continue
			}
			if err := p.flushFrameLocked(frame); err != nil {
				return
			}
			delete(p.frames, num)
			p.lru.Remove(elem)
			delete(p.lruPos, num)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

// Iterator walks data pages in page-number order, skipping disposed pages.
type Iterator struct {
	pool *DiskBufferPool
	next PageNum
	free map[PageNum]bool
}

// NewIterator starts iterating at the given page number.
func (p *DiskBufferPool) NewIterator(start PageNum) *Iterator {
	p.mu.Lock()
	free := make(map[PageNum]bool, len(p.freeList))
	for _, num := range p.freeList {
		free[num] = true
	}
	p.mu.Unlock()
	if start < 1 {
		start = 1
	}
	return &Iterator{pool: p, next: start, free: free}
}

// Next returns the next live page number, or false when exhausted.
func (it *Iterator) Next() (PageNum, bool) {
	for it.next < it.pool.PageCount() {
		num := it.next
		it.next++
		if !it.free[num] {
			return num, true
		}
	}
	return 0, false
}
