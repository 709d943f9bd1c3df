package storage

import (
	"os"
	"sync"

	"github.com/matteoser/PiemonteDB/pkg/rc"
)

// LobFileHandler stores the overflow bytes of long strings. Descriptors on
// PAX pages address payloads by the offset this handler returns. The handler
// is injected into whoever needs it and opened when the database opens; all
// access is serialized internally.
type LobFileHandler struct {
	path string
	file *os.File
	mu   sync.Mutex
	size int64
}

// OpenLobFile opens or creates the lob file.
func OpenLobFile(path string) (*LobFileHandler, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, rc.Errorf(rc.FileNotExist, "open lob file %s: %v", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, rc.Errorf(rc.IOErrRead, "stat lob file %s: %v", path, err)
	}
	return &LobFileHandler{path: path, file: file, size: info.Size()}, nil
}

// Close closes the lob file.
func (h *LobFileHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	if err != nil {
		return rc.Errorf(rc.IOErrClose, "close lob file: %v", err)
	}
	return nil
}

// InsertData appends data and returns its offset.
func (h *LobFileHandler) InsertData(data []byte) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	offset := h.size
	if _, err := h.file.WriteAt(data, offset); err != nil {
		return 0, rc.Errorf(rc.IOErrWrite, "write lob at %d: %v", offset, err)
	}
	h.size += int64(len(data))
	return offset, nil
}

// GetData reads len(dst) bytes stored at offset into dst.
func (h *LobFileHandler) GetData(offset int64, dst []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.file.ReadAt(dst, offset); err != nil {
		return rc.Errorf(rc.IOErrRead, "read lob at %d: %v", offset, err)
	}
	return nil
}

// Size returns the current file size.
func (h *LobFileHandler) Size() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}
