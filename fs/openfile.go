package fs

import (
	"fmt"
	"io"
	"log"

	"github.com/dantenoguera/nachOS/disk"
	"github.com/dantenoguera/nachOS/inode"
)

// OpenFile is a per-open cursor over a file: the in-memory header chain,
// a seek position, and the absolute path used to rendezvous with the open
// file table. Construction registers the path; Close deregisters it and
// may complete a deferred unlink.
//
// Reads and writes go through the entry's reader/writer protocol: any
// number of readers may overlap, a writer holds the entry lock across its
// whole critical section and waits out the readers. The nested reads a
// misaligned write issues against its own file are detected by lock
// ownership and bypass the protocol.
type OpenFile struct {
	fs     *FileSystem
	hdr    *inode.Header
	sector uint32
	name   string
	tid    int
	seek   int64
	closed bool
}

// Name returns the absolute path the handle was opened with.
func (f *OpenFile) Name() string {
	return f.name
}

// Length returns the current file size in bytes.
func (f *OpenFile) Length() int64 {
	return int64(f.hdr.Length())
}

// Seek sets the position for the next Read or Write.
func (f *OpenFile) Seek(pos int64) {
	f.seek = pos
}

func (f *OpenFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.seek)
	f.seek += int64(n)
	return n, err
}

func (f *OpenFile) Write(p []byte) (int, error) {
	n, err := f.WriteAt(p, f.seek)
	f.seek += int64(n)
	return n, err
}

func (f *OpenFile) entry() *FileEntry {
	e := f.fs.files.Find(f.name)
	if e == nil {
		log.Fatalf("fs: open handle on %q has no table entry", f.name)
	}
	return e
}

// ReadAt reads up to len(p) bytes at off. Requests past EOF return 0 and
// io.EOF; requests crossing EOF are clamped.
func (f *OpenFile) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, ErrBadFd
	}
	if len(p) == 0 {
		return 0, nil
	}

	e := f.entry()
	reenter := e.Lock.HeldBy(f.tid)
	if !reenter {
		e.Lock.Acquire(f.tid)
		e.Readers++
		e.Lock.Release(f.tid)
		defer func() {
			e.Lock.Acquire(f.tid)
			e.Readers--
			if e.Readers == 0 {
				e.CanRead.Broadcast()
			}
			e.Lock.Release(f.tid)
		}()
	}

	length := int64(f.hdr.Length())
	if off < 0 {
		return 0, ErrBadOffset
	}
	if off >= length {
		return 0, io.EOF
	}
	n := len(p)
	if off+int64(n) > length {
		n = int(length - off)
	}

	first := uint32(off) / disk.SectorSize
	last := (uint32(off) + uint32(n) - 1) / disk.SectorSize
	buf := make([]byte, (last-first+1)*disk.SectorSize)
	for i := first; i <= last; i++ {
		s := f.hdr.ByteToSector(i * disk.SectorSize)
		if err := f.fs.disk.ReadSector(s, buf[(i-first)*disk.SectorSize:]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	copy(p[:n], buf[uint32(off)-first*disk.SectorSize:])

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes len(p) bytes at off, extending the file when the write
// runs past the current end. Writes starting past EOF fail. A failed
// extension returns 0 bytes written; the header may keep an extra
// emptily-allocated tail sector.
func (f *OpenFile) WriteAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, ErrBadFd
	}

	e := f.entry()
	e.Lock.Acquire(f.tid)
	e.WaitingWriters++
	for e.Readers > 0 {
		e.CanRead.Wait(f.tid)
	}
	e.WaitingWriters--
	e.Writers = 1
	defer func() {
		e.Writers = 0
		e.CanRead.Signal()
		e.Lock.Release(f.tid)
	}()

	length := int64(f.hdr.Length())
	if off < 0 || off > length {
		return 0, ErrBadOffset
	}
	if len(p) == 0 {
		return 0, nil
	}

	if newLen := off + int64(len(p)); newLen > length {
		if err := f.extend(uint32(newLen)); err != nil {
			return 0, err
		}
	}

	n := uint32(len(p))
	first := uint32(off) / disk.SectorSize
	last := (uint32(off) + n - 1) / disk.SectorSize
	buf := make([]byte, (last-first+1)*disk.SectorSize)

	firstAligned := uint32(off) == first*disk.SectorSize
	lastAligned := uint32(off)+n == (last+1)*disk.SectorSize

	// Pull in the first and last sectors if they are partially modified.
	// These nested reads see the entry lock already held and skip the
	// reader protocol.
	if !firstAligned {
		f.ReadAt(buf[:disk.SectorSize], int64(first)*disk.SectorSize)
	}
	if !lastAligned && (first != last || firstAligned) {
		f.ReadAt(buf[(last-first)*disk.SectorSize:], int64(last)*disk.SectorSize)
	}

	copy(buf[uint32(off)-first*disk.SectorSize:], p)

	for i := first; i <= last; i++ {
		s := f.hdr.ByteToSector(i * disk.SectorSize)
		if err := f.fs.disk.WriteSector(s, buf[(i-first)*disk.SectorSize:]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	return len(p), nil
}

// extend grows the header chain so the file can hold newLen bytes: the
// tail link first, then a fresh chained header for whatever is left.
// Caller holds the entry lock.
func (f *OpenFile) extend(newLen uint32) error {
	f.fs.freeMapLock.Acquire(f.tid)
	defer f.fs.freeMapLock.Release(f.tid)

	m, err := f.fs.fetchFreeMap()
	if err != nil {
		return err
	}

	tail := f.hdr.Tail()
	if err := tail.UpdateRaw(m, newLen-f.hdr.Length()); err != nil {
		return err
	}
	if rest := newLen - f.hdr.Length(); rest > 0 {
		s := m.Find()
		if s < 0 {
			// the grown tail stays allocated; flush and give up
			f.hdr.WriteBack(f.fs.disk)
			m.WriteBack(f.fs.freeMapFile)
			return ErrNoSpace
		}
		next := &inode.Header{Sector: uint32(s)}
		if err := next.Allocate(m, rest); err != nil {
			tail.SetNext(next)
			f.hdr.WriteBack(f.fs.disk)
			m.WriteBack(f.fs.freeMapFile)
			return err
		}
		tail.SetNext(next)
	}
	if err := f.hdr.WriteBack(f.fs.disk); err != nil {
		return err
	}
	return m.WriteBack(f.fs.freeMapFile)
}

// Close drops the handle's registration. The last close of a tombstoned
// name finishes the physical unlink.
func (f *OpenFile) Close() error {
	if f.closed {
		return ErrBadFd
	}
	f.closed = true
	f.fs.files.Remove(f.tid, f.name)
	return nil
}
