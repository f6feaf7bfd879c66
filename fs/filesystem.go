// Package fs is the filesystem façade: create, open and remove files and
// directories on a raw sector device, with per-thread working directories
// and safe unlink-while-open semantics.
//
// Two files live in well-known sectors so everything else can be found on
// boot: the free-sector map in sector 0 and the root directory's header in
// sector 1. The free map is kept open for the life of the filesystem; the
// root directory is opened by the threads that use it. Both are flushed on
// every successful mutation.
package fs

import (
	"fmt"
	"io"
	"log"

	"github.com/dantenoguera/nachOS/bitmap"
	"github.com/dantenoguera/nachOS/directory"
	"github.com/dantenoguera/nachOS/disk"
	"github.com/dantenoguera/nachOS/inode"
	"github.com/dantenoguera/nachOS/synch"
)

const (
	// FreeMapSector holds the free map's file header.
	FreeMapSector = 0
	// DirectorySector holds the root directory's file header.
	DirectorySector = 1

	// FreeMapFileSize is the free map's size in bytes.
	FreeMapFileSize = disk.NumSectors / 8
	// DirectoryFileSize is the backing-file size of every directory.
	DirectoryFileSize = directory.FileSize

	// freeMapName keys the free-map handle in the open file table. User
	// paths always start with '/', so it can never collide with one.
	freeMapName = "FREE_MAP_SECTOR"

	// fsTid is the thread id the filesystem's own singleton handles are
	// registered under. Their use is serialized by freeMapLock and the
	// per-directory locks, never by thread identity.
	fsTid = -1
)

type FileSystem struct {
	disk disk.Disk

	freeMapFile *OpenFile
	freeMapLock *synch.Lock

	files *FileTable
	dirs  *DirTable
}

// New initializes a filesystem on d. With format set the disk is laid out
// from scratch: an empty free map marking sectors 0 and 1, an empty root
// directory, and both their headers. Without it only the free-map file is
// opened; the root directory is opened when a thread first uses the
// filesystem.
func New(d disk.Disk, format bool) (*FileSystem, error) {
	s := &FileSystem{
		disk:        d,
		freeMapLock: synch.NewLock("freeMapLock"),
		files:       newFileTable(),
	}
	s.dirs = newDirTable(s)
	s.files.onLastClose = s.finishRemove

	if format {
		m := bitmap.New(disk.NumSectors)
		m.Mark(FreeMapSector)
		m.Mark(DirectorySector)

		mapH := &inode.Header{Sector: FreeMapSector}
		if err := mapH.Allocate(m, FreeMapFileSize); err != nil {
			return nil, err
		}
		dirH := &inode.Header{Sector: DirectorySector}
		if err := dirH.Allocate(m, DirectoryFileSize); err != nil {
			return nil, err
		}
		if err := mapH.WriteBack(d); err != nil {
			return nil, err
		}
		if err := dirH.WriteBack(d); err != nil {
			return nil, err
		}

		var err error
		s.freeMapFile, err = s.openAtSector(FreeMapSector, freeMapName, fsTid)
		if err != nil {
			return nil, err
		}
		if err := m.WriteBack(s.freeMapFile); err != nil {
			return nil, err
		}

		root, err := s.openAtSector(DirectorySector, "/", fsTid)
		if err != nil {
			return nil, err
		}
		if err := directory.New().WriteBack(root); err != nil {
			return nil, err
		}
		root.Close()
		return s, nil
	}

	var err error
	s.freeMapFile, err = s.openAtSector(FreeMapSector, freeMapName, fsTid)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// openAtSector builds a handle on the file whose header chain starts at
// sector, registering the absolute path with the open file table.
func (s *FileSystem) openAtSector(sector uint32, name string, tid int) (*OpenFile, error) {
	hdr, err := inode.FetchFrom(s.disk, sector)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	s.files.Add(name)
	return &OpenFile{fs: s, hdr: hdr, sector: sector, name: name, tid: tid}, nil
}

// fetchFreeMap loads the persisted free map. Caller holds freeMapLock.
func (s *FileSystem) fetchFreeMap() (*bitmap.Bitmap, error) {
	m := bitmap.New(disk.NumSectors)
	if err := m.FetchFrom(s.freeMapFile); err != nil {
		return nil, err
	}
	return m, nil
}

// Create makes a new file of the given initial size in the caller's
// working directory. On a mid-way failure the unflushed free map and
// directory are discarded, so nothing leaks.
func (s *FileSystem) Create(tid int, name string, size uint32) error {
	s.dirs.Ensure(tid)
	if err := validName(name); err != nil {
		return err
	}
	if len(name) > directory.NameMaxLen {
		return ErrNameTooLong
	}
	lk := s.dirs.GetLock(tid)
	lk.Acquire(tid)
	defer lk.Release(tid)
	return s.createEntry(tid, name, size, false)
}

// CreateDir makes an empty subdirectory in the caller's working directory.
func (s *FileSystem) CreateDir(tid int, name string) error {
	s.dirs.Ensure(tid)
	if err := validName(name); err != nil {
		return err
	}
	if len(name) > directory.NameMaxLen {
		return ErrNameTooLong
	}
	lk := s.dirs.GetLock(tid)
	lk.Acquire(tid)
	defer lk.Release(tid)
	return s.createEntry(tid, name, DirectoryFileSize, true)
}

// createEntry is the shared tail of Create and CreateDir. Caller holds
// the working directory's lock.
func (s *FileSystem) createEntry(tid int, name string, size uint32, isDir bool) error {
	dirFile := s.dirs.Get(tid)
	dir := directory.New()
	if err := dir.FetchFrom(dirFile); err != nil {
		return err
	}
	if dir.FindEntry(name) != nil {
		return ErrExists
	}

	s.freeMapLock.Acquire(tid)
	m, err := s.fetchFreeMap()
	if err != nil {
		s.freeMapLock.Release(tid)
		return err
	}
	sector := m.Find()
	if sector < 0 {
		s.freeMapLock.Release(tid)
		return ErrNoSpace
	}
	if err := dir.Add(name, uint32(sector), isDir); err != nil {
		s.freeMapLock.Release(tid)
		return err
	}
	hdr := &inode.Header{Sector: uint32(sector)}
	if err := hdr.Allocate(m, size); err != nil {
		// undo locally instead of re-entering Remove under a held lock
		dir.Remove(name)
		s.freeMapLock.Release(tid)
		return err
	}
	if err := hdr.WriteBack(s.disk); err != nil {
		s.freeMapLock.Release(tid)
		return err
	}
	if err := m.WriteBack(s.freeMapFile); err != nil {
		s.freeMapLock.Release(tid)
		return err
	}
	s.freeMapLock.Release(tid)

	if err := dir.WriteBack(dirFile); err != nil {
		return err
	}

	if isDir {
		abs := joinPath(s.dirs.Path(tid), name)
		nf, err := s.openAtSector(uint32(sector), abs, tid)
		if err != nil {
			return err
		}
		err = directory.New().WriteBack(nf)
		nf.Close()
		return err
	}
	return nil
}

// Open looks the name up in the caller's working directory and returns a
// fresh handle on it. A tombstoned name is already unlinked and reports
// not-found.
func (s *FileSystem) Open(tid int, name string) (*OpenFile, error) {
	s.dirs.Ensure(tid)
	if err := validName(name); err != nil {
		return nil, err
	}
	lk := s.dirs.GetLock(tid)
	lk.Acquire(tid)
	dirFile := s.dirs.Get(tid)
	dir := directory.New()
	err := dir.FetchFrom(dirFile)
	lk.Release(tid)
	if err != nil {
		return nil, err
	}

	e := dir.FindEntry(name)
	if e == nil {
		return nil, ErrNotFound
	}
	abs := joinPath(s.dirs.Path(tid), name)
	if fe := s.files.Find(abs); fe != nil && fe.Deleted {
		return nil, ErrNotFound
	}
	return s.openAtSector(e.Sector, abs, tid)
}

// Remove unlinks a file in the caller's working directory. If any handle
// is still open on it the name is tombstoned and ErrInUse comes back: the
// unlink happened logically and the sectors are reclaimed on last close.
func (s *FileSystem) Remove(tid int, name string) error {
	s.dirs.Ensure(tid)
	if err := validName(name); err != nil {
		return err
	}
	lk := s.dirs.GetLock(tid)
	lk.Acquire(tid)
	defer lk.Release(tid)

	dirFile := s.dirs.Get(tid)
	dir := directory.New()
	if err := dir.FetchFrom(dirFile); err != nil {
		return err
	}
	e := dir.FindEntry(name)
	if e == nil {
		return ErrNotFound
	}
	abs := joinPath(s.dirs.Path(tid), name)
	if fe := s.files.Find(abs); fe != nil {
		s.files.MarkDeleted(abs)
		return ErrInUse
	}
	return s.removeEntry(tid, dir, dirFile, name, e.Sector)
}

// removeEntry frees a file's chain and drops its directory entry. Caller
// holds the containing directory's lock.
func (s *FileSystem) removeEntry(tid int, dir *directory.Directory, dirFile *OpenFile, name string, sector uint32) error {
	hdr, err := inode.FetchFrom(s.disk, sector)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	s.freeMapLock.Acquire(tid)
	m, err := s.fetchFreeMap()
	if err != nil {
		s.freeMapLock.Release(tid)
		return err
	}
	hdr.Deallocate(m)
	m.Clear(sector)
	err = m.WriteBack(s.freeMapFile)
	s.freeMapLock.Release(tid)
	if err != nil {
		return err
	}

	dir.Remove(name)
	return dir.WriteBack(dirFile)
}

// finishRemove completes a deferred unlink after the last handle on a
// tombstoned path went away. Runs on the closing thread.
func (s *FileSystem) finishRemove(tid int, abs string) {
	parent, base := splitPath(abs)
	psec, err := s.walk(tid, parent)
	if err != nil {
		log.Printf("fs: deferred unlink of %s: %v", abs, err)
		return
	}

	lk := s.dirs.LockForPath(parent)
	if lk != nil {
		lk.Acquire(tid)
	} else {
		s.dirs.mu.Lock()
	}
	release := func() {
		if lk != nil {
			lk.Release(tid)
		} else {
			s.dirs.mu.Unlock()
		}
	}

	pf, err := s.openAtSector(psec, parent, tid)
	if err != nil {
		release()
		log.Printf("fs: deferred unlink of %s: %v", abs, err)
		return
	}
	dir := directory.New()
	if err := dir.FetchFrom(pf); err == nil {
		if e := dir.FindEntry(base); e != nil {
			if fe := s.files.Find(abs); fe != nil {
				// reopened in the window; defer again
				s.files.MarkDeleted(abs)
			} else if err := s.removeEntry(tid, dir, pf, base, e.Sector); err != nil {
				log.Printf("fs: deferred unlink of %s: %v", abs, err)
			}
		}
	}
	release()
	pf.Close()
}

// walk resolves a cleaned absolute path to its header sector, locking
// each parent along the way: through its usage-table lock when some
// thread has it as cwd, else briefly through the table's list lock.
func (s *FileSystem) walk(tid int, abs string) (uint32, error) {
	cur := "/"
	sector := uint32(DirectorySector)
	for _, seg := range segments(abs) {
		lk := s.dirs.LockForPath(cur)
		if lk != nil {
			lk.Acquire(tid)
		} else {
			s.dirs.mu.Lock()
		}
		f, err := s.openAtSector(sector, cur, tid)
		var e *directory.Entry
		if err == nil {
			dir := directory.New()
			if ferr := dir.FetchFrom(f); ferr != nil {
				err = ferr
			} else {
				e = dir.FindEntry(seg)
			}
		}
		if lk != nil {
			lk.Release(tid)
		} else {
			s.dirs.mu.Unlock()
		}
		if f != nil {
			f.Close()
		}
		if err != nil {
			return 0, err
		}
		if e == nil {
			return 0, ErrNotFound
		}
		next := joinPath(cur, seg)
		if fe := s.files.Find(next); fe != nil && fe.Deleted {
			return 0, ErrNotFound
		}
		if !e.IsDir {
			return 0, ErrInvalidPath
		}
		cur, sector = next, e.Sector
	}
	return sector, nil
}

// RemoveDir unlinks an empty subdirectory of the caller's working
// directory.
func (s *FileSystem) RemoveDir(tid int, name string) error {
	s.dirs.Ensure(tid)
	if err := validName(name); err != nil {
		return err
	}
	lk := s.dirs.GetLock(tid)
	lk.Acquire(tid)
	defer lk.Release(tid)

	dirFile := s.dirs.Get(tid)
	dir := directory.New()
	if err := dir.FetchFrom(dirFile); err != nil {
		return err
	}
	e := dir.FindEntry(name)
	if e == nil {
		return ErrNotFound
	}
	if !e.IsDir {
		return ErrInvalidPath
	}
	abs := joinPath(s.dirs.Path(tid), name)
	if fe := s.files.Find(abs); fe != nil {
		// some thread has it as cwd or otherwise open
		s.files.MarkDeleted(abs)
		return ErrInUse
	}

	tf, err := s.openAtSector(e.Sector, abs, tid)
	if err != nil {
		return err
	}
	target := directory.New()
	err = target.FetchFrom(tf)
	empty := err == nil && target.IsEmpty()
	tf.Close()
	if err != nil {
		return err
	}
	if !empty {
		return ErrNotEmpty
	}
	return s.removeEntry(tid, dir, dirFile, name, e.Sector)
}

// ChangeDir moves the caller's working directory. Changing to the
// current directory is a no-op.
func (s *FileSystem) ChangeDir(tid int, p string) error {
	s.dirs.Ensure(tid)
	abs, err := resolve(s.dirs.Path(tid), p)
	if err != nil {
		return err
	}
	if abs == s.dirs.Path(tid) {
		return nil
	}
	sector, err := s.walk(tid, abs)
	if err != nil {
		return err
	}
	s.dirs.Remove(tid)
	return s.dirs.Add(tid, sector, abs)
}

// List returns the entries of the caller's working directory.
func (s *FileSystem) List(tid int) ([]directory.Entry, error) {
	s.dirs.Ensure(tid)
	lk := s.dirs.GetLock(tid)
	lk.Acquire(tid)
	defer lk.Release(tid)
	dir := directory.New()
	if err := dir.FetchFrom(s.dirs.Get(tid)); err != nil {
		return nil, err
	}
	return dir.Entries(), nil
}

// Print dumps the free map and the caller's working directory. Debug.
func (s *FileSystem) Print(tid int, w io.Writer) error {
	s.dirs.Ensure(tid)

	s.freeMapLock.Acquire(tid)
	m, err := s.fetchFreeMap()
	s.freeMapLock.Release(tid)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "free sectors: %d of %d\n", m.CountClear(), disk.NumSectors)

	entries, err := s.List(tid)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s:\n", s.dirs.Path(tid))
	for _, e := range entries {
		kind := "file"
		if e.IsDir {
			kind = "dir"
		}
		hdr, err := inode.FetchFrom(s.disk, e.Sector)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %-10s %-4s sector %4d  %6d bytes  %d link(s)\n",
			e.Name(), kind, e.Sector, hdr.Length(), hdr.Links())
	}
	return nil
}

// Exit detaches tid from its working directory; call it when a thread is
// done with the filesystem.
func (s *FileSystem) Exit(tid int) {
	s.dirs.Remove(tid)
}
