package fs

import (
	"sync"

	"github.com/dantenoguera/nachOS/synch"
)

// FileEntry is the rendezvous point for every open handle on one absolute
// path. The entry lock plus the readers counter implement the
// single-writer/multi-reader protocol; Deleted is the tombstone for
// unlink-while-open.
type FileEntry struct {
	Name     string
	RefCount int

	Readers        int
	Writers        int
	WaitingReaders int
	WaitingWriters int

	Deleted bool

	Lock    *synch.Lock
	CanRead *synch.Condition
	// CanWrite is carried for accounting parity; writers exclude each
	// other by holding Lock across the whole write, so nothing waits on it.
	CanWrite *synch.Condition
}

func newFileEntry(name string) *FileEntry {
	e := &FileEntry{Name: name, RefCount: 1}
	e.Lock = synch.NewLock(name)
	e.CanRead = synch.NewCondition(e.Lock)
	e.CanWrite = synch.NewCondition(e.Lock)
	return e
}

// FileTable is the process-wide registry of open files, keyed by absolute
// path. Structural changes happen under the table mutex; per-file
// coordination happens under each entry's own lock.
type FileTable struct {
	mu      sync.Mutex
	entries map[string]*FileEntry

	// onLastClose completes a deferred unlink once a tombstoned entry
	// loses its last reference. Runs without the table mutex held.
	onLastClose func(tid int, name string)
}

func newFileTable() *FileTable {
	return &FileTable{entries: make(map[string]*FileEntry)}
}

// Add registers one more handle on name, creating the entry if needed.
func (t *FileTable) Add(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[name]; ok {
		e.RefCount++
		return
	}
	t.entries[name] = newFileEntry(name)
}

// Find returns the entry for name, or nil.
func (t *FileTable) Find(name string) *FileEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[name]
}

// MarkDeleted sets the tombstone on name's entry, if it has one.
func (t *FileTable) MarkDeleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[name]; ok {
		e.Deleted = true
	}
}

// Remove drops one reference on name. When the last reference of a
// tombstoned entry goes away, the deferred unlink runs on behalf of the
// closing thread.
func (t *FileTable) Remove(tid int, name string) {
	t.mu.Lock()
	e, ok := t.entries[name]
	if !ok {
		t.mu.Unlock()
		return
	}
	e.RefCount--
	if e.RefCount > 0 {
		t.mu.Unlock()
		return
	}
	delete(t.entries, name)
	deleted := e.Deleted
	cb := t.onLastClose
	t.mu.Unlock()

	if deleted && cb != nil {
		cb(tid, name)
	}
}
