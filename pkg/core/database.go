package core

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/matteoser/PiemonteDB/pkg/pax"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/storage"
)

const (
	tableDataSuffix = ".data"
	tableMetaSuffix = ".meta.json"
	logFileName     = "piemonte.log"
	lobFileName     = "piemonte.lob"
)

// Database owns the catalog of one data directory: every table's heap file,
// the shared write-ahead log and the shared lob file.
type Database struct {
	dir       string
	cacheSize int
	syncLog   bool

	mu     sync.RWMutex
	tables map[string]*Table
	log    *storage.LogHandler
	lob    *storage.LobFileHandler
}

// OpenDatabase opens the data directory, the shared log and lob files, and
// every persisted table.
func OpenDatabase(dir string, cacheSize int, syncLog bool) (*Database, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	walLog, err := storage.OpenLogHandler(filepath.Join(dir, logFileName), syncLog)
	if err != nil {
		return nil, err
	}
	lob, err := storage.OpenLobFile(filepath.Join(dir, lobFileName))
	if err != nil {
		walLog.Close()
		return nil, err
	}
	db := &Database{
		dir:       dir,
		cacheSize: cacheSize,
		syncLog:   syncLog,
		tables:    make(map[string]*Table),
		log:       walLog,
		lob:       lob,
	}
	if err := db.loadTables(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close flushes and closes every table and the shared files.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	var firstErr error
	for _, t := range db.tables {
		if err := t.pool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	db.tables = make(map[string]*Table)
	if db.lob != nil {
		if err := db.lob.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if db.log != nil {
		if err := db.log.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LobHandler returns the shared lob file handler.
func (db *Database) LobHandler() *storage.LobFileHandler { return db.lob }

// LogHandler returns the shared write-ahead log handler.
func (db *Database) LogHandler() *storage.LogHandler { return db.log }

// CreateTable creates a table with the given attributes and layout.
func (db *Database) CreateTable(name string, attrs []AttrInfo, format pax.StorageFormat) (*Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.tables[name]; ok {
		return nil, rc.Errorf(rc.SchemaMaterializedViewNameRepeat, "table %s already exists", name)
	}
	meta, err := NewTableMeta(name, attrs, format)
	if err != nil {
		return nil, err
	}
	if err := db.writeMeta(meta); err != nil {
		return nil, err
	}
	table, err := db.openTable(meta)
	if err != nil {
		return nil, err
	}
	db.tables[name] = table
	return table, nil
}

// FindTable resolves a table by name.
func (db *Database) FindTable(name string) (*Table, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[name]
	return t, ok
}

// DropTable removes a table and its files.
func (db *Database) DropTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[name]
	if !ok {
		return rc.Errorf(rc.RecordNotExist, "table %s does not exist", name)
	}
	if err := t.pool.Close(); err != nil {
		return err
	}
	delete(db.tables, name)
	if err := os.Remove(filepath.Join(db.dir, name+tableDataSuffix)); err != nil {
		return err
	}
	return os.Remove(filepath.Join(db.dir, name+tableMetaSuffix))
}

// TableNames lists tables in name order.
func (db *Database) TableNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sync flushes every table.
func (db *Database) Sync() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, t := range db.tables {
		if err := t.pool.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// Private methods

func (db *Database) loadTables() error {
	entries, err := os.ReadDir(db.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, tableMetaSuffix) {
			continue
		}
		meta, err := db.readMeta(filepath.Join(db.dir, name))
		if err != nil {
			return err
		}
		table, err := db.openTable(meta)
		if err != nil {
			return err
		}
		db.tables[meta.Name] = table
	}
	return nil
}

func (db *Database) openTable(meta *TableMeta) (*Table, error) {
	pool, err := storage.OpenBufferPool(filepath.Join(db.dir, meta.Name+tableDataSuffix), db.cacheSize)
	if err != nil {
		return nil, err
	}
	heap, err := pax.NewRecordFileHandler(pool, db.log, db.lob, meta.FieldSpecs(), meta.StorageFormat, meta.FileID())
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Table{meta: meta, pool: pool, heap: heap}, nil
}

// Recover replays the write-ahead log into the catalog, re-applying record
// inserts and deletes whose pages survived. Entries for dropped tables or
// unreachable pages are skipped; bulk chunk inserts carry no payload in the
// log and rely on page write-back.
func (db *Database) Recover() error {
	db.mu.RLock()
	byFileID := make(map[int32]*Table, len(db.tables))
	for _, t := range db.tables {
		byFileID[t.meta.FileID()] = t
	}
	db.mu.RUnlock()

	return db.log.Replay(func(entry *storage.LogEntry) error {
		table, ok := byFileID[entry.FileID]
		if !ok {
			return nil
		}
		rid := pax.RID{PageNum: entry.PageNum, Slot: entry.Slot}
		switch entry.Type {
		case storage.LogOpInsert:
			if err := table.heap.RecoverInsertRecord(entry.Data, rid); err != nil {
				log.Printf("recover: skip insert %s on %s: %v", rid, table.Name(), err)
			}
		case storage.LogOpDelete:
			if err := table.heap.DeleteRecord(rid); err != nil && !rc.Is(err, rc.RecordNotExist) {
				log.Printf("recover: skip delete %s on %s: %v", rid, table.Name(), err)
			}
		}
		return nil
	})
}

func (db *Database) writeMeta(meta *TableMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(db.dir, meta.Name+tableMetaSuffix), data, 0644)
}

func (db *Database) readMeta(path string) (*TableMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta := &TableMeta{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return meta, nil
}
