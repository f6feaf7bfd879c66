package fs

import (
	"log"
	"sync"

	"github.com/dantenoguera/nachOS/synch"
)

// dirNode is one live working directory: the set of threads whose cwd it
// is, an open handle on its backing file, and the lock that serializes
// contents-mutating operations on it.
type dirNode struct {
	tids []int
	file *OpenFile
	lock *synch.Lock
}

func (n *dirNode) has(tid int) bool {
	for _, t := range n.tids {
		if t == tid {
			return true
		}
	}
	return false
}

func (n *dirNode) remove(tid int) {
	for i, t := range n.tids {
		if t == tid {
			n.tids = append(n.tids[:i], n.tids[i+1:]...)
			return
		}
	}
}

// DirTable maps active threads to their working directories. At any time
// the nodes partition the threads that have established a cwd; a node dies
// when its last thread leaves.
type DirTable struct {
	fs *FileSystem

	mu    sync.Mutex
	nodes []*dirNode
}

func newDirTable(fs *FileSystem) *DirTable {
	return &DirTable{fs: fs}
}

// Ensure gives tid a working directory if it has none yet, attaching it to
// the root. Idempotent; called at the top of every façade operation.
func (t *DirTable) Ensure(tid int) {
	t.mu.Lock()
	for _, n := range t.nodes {
		if n.has(tid) {
			t.mu.Unlock()
			return
		}
	}
	t.mu.Unlock()
	if err := t.Add(tid, DirectorySector, "/"); err != nil {
		log.Fatalf("fs: cannot open root directory: %v", err)
	}
}

func (t *DirTable) node(tid int) *dirNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.nodes {
		if n.has(tid) {
			return n
		}
	}
	return nil
}

// Get returns the open handle on tid's working directory.
func (t *DirTable) Get(tid int) *OpenFile {
	if n := t.node(tid); n != nil {
		return n.file
	}
	return nil
}

// GetLock returns the mutation lock of tid's working directory.
func (t *DirTable) GetLock(tid int) *synch.Lock {
	if n := t.node(tid); n != nil {
		return n.lock
	}
	return nil
}

// Path returns the absolute path of tid's working directory.
func (t *DirTable) Path(tid int) string {
	if n := t.node(tid); n != nil {
		return n.file.Name()
	}
	return ""
}

// LockForPath returns the mutation lock of the directory at the given
// absolute path if some thread has it as cwd, else nil. Scans the whole
// table.
func (t *DirTable) LockForPath(name string) *synch.Lock {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.nodes {
		if n.file.Name() == name {
			return n.lock
		}
	}
	return nil
}

// Add attaches tid to the directory at the given sector and absolute
// path, opening a fresh handle and lock if no thread is there yet.
func (t *DirTable) Add(tid int, sector uint32, name string) error {
	t.mu.Lock()
	for _, n := range t.nodes {
		if n.has(tid) {
			log.Fatalf("fs: thread %d already has a working directory", tid)
		}
		if n.file.Name() == name {
			n.tids = append(n.tids, tid)
			t.mu.Unlock()
			return nil
		}
	}
	t.mu.Unlock()

	// Opening the handle registers with the file table; keep the table
	// mutex dropped while it happens.
	f, err := t.fs.openAtSector(sector, name, tid)
	if err != nil {
		return err
	}

	t.mu.Lock()
	// somebody may have raced us here; fold into their node
	for _, n := range t.nodes {
		if n.file.Name() == name {
			n.tids = append(n.tids, tid)
			t.mu.Unlock()
			f.Close()
			return nil
		}
	}
	t.nodes = append(t.nodes, &dirNode{
		tids: []int{tid},
		file: f,
		lock: synch.NewLock(name),
	})
	t.mu.Unlock()
	return nil
}

// Remove detaches tid from its working directory, destroying the node if
// it was the last user. The handle close runs outside the table mutex
// because it can trigger a deferred unlink.
func (t *DirTable) Remove(tid int) {
	t.mu.Lock()
	var toClose *OpenFile
	for i, n := range t.nodes {
		if n.has(tid) {
			n.remove(tid)
			if len(n.tids) == 0 {
				t.nodes = append(t.nodes[:i], t.nodes[i+1:]...)
				toClose = n.file
			}
			break
		}
	}
	t.mu.Unlock()
	if toClose != nil {
		toClose.Close()
	}
}
