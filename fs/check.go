package fs

import (
	"fmt"
	"log"

	"github.com/dantenoguera/nachOS/bitmap"
	"github.com/dantenoguera/nachOS/directory"
	"github.com/dantenoguera/nachOS/disk"
	"github.com/dantenoguera/nachOS/inode"
)

// checker accumulates findings of an integrity sweep and builds the
// shadow bitmap of every sector reachable from the root.
type checker struct {
	fs     *FileSystem
	shadow *bitmap.Bitmap
	errs   int
}

func (c *checker) errorf(format string, args ...interface{}) {
	c.errs++
	log.Printf("check: "+format, args...)
}

// markSector notes one sector in the shadow map, complaining about
// out-of-range and doubly-claimed sectors.
func (c *checker) markSector(sector uint32) {
	if sector >= disk.NumSectors {
		c.errorf("sector %d out of range", sector)
		return
	}
	if c.shadow.Test(sector) {
		c.errorf("sector %d claimed twice", sector)
		return
	}
	c.shadow.Mark(sector)
}

// checkHeader validates one chain link and claims its data sectors.
func (c *checker) checkHeader(h *inode.Header) {
	if h.Raw.NumSectors > inode.NumDirect-1 {
		c.errorf("header at sector %d has too many blocks (%d)", h.Sector, h.Raw.NumSectors)
		return
	}
	if h.Next != nil && h.Raw.NumBytes < inode.MaxLinkBytes {
		c.errorf("header at sector %d is partially full but not the tail", h.Sector)
	}
	for i := uint32(0); i < h.Raw.NumSectors; i++ {
		c.markSector(h.Raw.DataSectors[i])
	}
	if h.Next != nil {
		c.markSector(h.Next.Sector)
		c.checkHeader(h.Next)
	}
}

// checkDirectory validates one directory's entries and recurses into its
// subdirectories.
func (c *checker) checkDirectory(sector uint32, path string, tid int) {
	f, err := c.fs.openAtSector(sector, path, tid)
	if err != nil {
		c.errorf("cannot open directory %s: %v", path, err)
		return
	}
	dir := directory.New()
	err = dir.FetchFrom(f)
	f.Close()
	if err != nil {
		c.errorf("cannot fetch directory %s: %v", path, err)
		return
	}

	seen := map[string]bool{}
	for _, e := range dir.Entries() {
		name := e.Name()
		if len(name) > directory.NameMaxLen {
			c.errorf("%s: name %q too long", path, name)
		}
		if seen[name] {
			c.errorf("%s: name %q repeated", path, name)
		}
		seen[name] = true

		c.markSector(e.Sector)
		hdr, err := inode.FetchFrom(c.fs.disk, e.Sector)
		if err != nil {
			c.errorf("%s/%s: bad header: %v", path, name, err)
			continue
		}
		c.checkHeader(hdr)
		if e.IsDir {
			c.checkDirectory(e.Sector, joinPath(path, name), tid)
		}
	}
}

// Check sweeps the whole disk: it rebuilds the set of sectors reachable
// from the root directory and compares it against the persisted free map,
// validating headers, chains and directory tables along the way.
func (s *FileSystem) Check(tid int) error {
	c := &checker{fs: s, shadow: bitmap.New(disk.NumSectors)}
	c.shadow.Mark(FreeMapSector)
	c.shadow.Mark(DirectorySector)

	mapH, err := inode.FetchFrom(s.disk, FreeMapSector)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if mapH.Length() != FreeMapFileSize {
		c.errorf("free map header: wrong file size %d", mapH.Length())
	}
	c.checkHeader(mapH)

	dirH, err := inode.FetchFrom(s.disk, DirectorySector)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	c.checkHeader(dirH)

	c.checkDirectory(DirectorySector, "/", tid)

	s.freeMapLock.Acquire(tid)
	m, err := s.fetchFreeMap()
	s.freeMapLock.Release(tid)
	if err != nil {
		return err
	}
	for i := uint32(0); i < disk.NumSectors; i++ {
		if m.Test(i) != c.shadow.Test(i) {
			c.errorf("free map disagrees about sector %d (marked=%v)", i, m.Test(i))
		}
	}

	if c.errs > 0 {
		return fmt.Errorf("%w: %d problem(s)", ErrCheckFailed, c.errs)
	}
	return nil
}
