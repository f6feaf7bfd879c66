// Package directory implements the fixed-entry name table that maps a
// filename to the sector of its file header. A directory's contents are
// persisted as an ordinary file, so fetch and write-back go through any
// io.ReaderAt/io.WriterAt (in practice an open file handle).
package directory

import (
	"errors"
	"fmt"
	"io"
)

const (
	// NumEntries is the fixed table size; directories do not grow.
	NumEntries = 10

	// NameMaxLen is the longest filename, not counting the NUL.
	NameMaxLen = 9

	// entrySize: inUse + isDir + name[NameMaxLen+1] + sector.
	entrySize = 2 + NameMaxLen + 1 + 4

	// FileSize is the size of a directory's backing file.
	FileSize = NumEntries * entrySize
)

var (
	ErrNotFound    = errors.New("no such file or directory")
	ErrExists      = errors.New("name already in directory")
	ErrFull        = errors.New("directory is full")
	ErrNameTooLong = errors.New("file name too long")
)

// Entry maps one name to the sector of its file header.
type Entry struct {
	InUse  bool
	IsDir  bool
	Sector uint32
	name   [NameMaxLen + 1]byte
}

// Name returns the stored name up to its NUL terminator.
func (e *Entry) Name() string {
	for i, c := range e.name {
		if c == 0 {
			return string(e.name[:i])
		}
	}
	return string(e.name[:NameMaxLen])
}

func (e *Entry) setName(name string) {
	e.name = [NameMaxLen + 1]byte{}
	copy(e.name[:NameMaxLen], name)
}

// Directory is the in-memory form of the table.
type Directory struct {
	table [NumEntries]Entry
}

func New() *Directory {
	return &Directory{}
}

// FetchFrom loads the table from the start of its backing file.
func (d *Directory) FetchFrom(r io.ReaderAt) error {
	buf := make([]byte, FileSize)
	n, err := r.ReadAt(buf, 0)
	if n != FileSize {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("fetching directory: %w", err)
	}
	decode(d, buf)
	return nil
}

// WriteBack flushes the table to its backing file.
func (d *Directory) WriteBack(w io.WriterAt) error {
	buf := make([]byte, FileSize)
	encode(d, buf)
	if _, err := w.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("flushing directory: %w", err)
	}
	return nil
}

// FindEntry returns the in-use entry for name, or nil. Names compare up
// to NameMaxLen.
func (d *Directory) FindEntry(name string) *Entry {
	if len(name) > NameMaxLen {
		name = name[:NameMaxLen]
	}
	for i := range d.table {
		if d.table[i].InUse && d.table[i].Name() == name {
			return &d.table[i]
		}
	}
	return nil
}

// Find returns the header sector for name, or -1.
func (d *Directory) Find(name string) int {
	if e := d.FindEntry(name); e != nil {
		return int(e.Sector)
	}
	return -1
}

// Add records name -> sector. Fails on a duplicate name, an over-long
// name, or a full table.
func (d *Directory) Add(name string, sector uint32, isDir bool) error {
	if len(name) > NameMaxLen {
		return ErrNameTooLong
	}
	if d.FindEntry(name) != nil {
		return ErrExists
	}
	for i := range d.table {
		if !d.table[i].InUse {
			d.table[i].InUse = true
			d.table[i].IsDir = isDir
			d.table[i].Sector = sector
			d.table[i].setName(name)
			return nil
		}
	}
	return ErrFull
}

// Remove frees the entry for name.
func (d *Directory) Remove(name string) error {
	e := d.FindEntry(name)
	if e == nil {
		return ErrNotFound
	}
	*e = Entry{}
	return nil
}

func (d *Directory) IsEmpty() bool {
	for i := range d.table {
		if d.table[i].InUse {
			return false
		}
	}
	return true
}

// Entries returns copies of the in-use entries in table order.
func (d *Directory) Entries() []Entry {
	var out []Entry
	for i := range d.table {
		if d.table[i].InUse {
			out = append(out, d.table[i])
		}
	}
	return out
}
