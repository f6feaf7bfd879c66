// Package inode manages on-disk file headers. A header is one sector: a
// byte count, a sector count, and a fixed table of direct sector pointers.
// The last table slot does not point at data; it chains to the next header
// of the same file, which is how files grow past one header's worth of
// sectors. Sector 0 always belongs to the free map, so it doubles as the
// nil value for the chain pointer.
package inode

import (
	"errors"
	"fmt"
	"log"

	"github.com/dantenoguera/nachOS/bitmap"
	"github.com/dantenoguera/nachOS/disk"
)

const (
	// NumDirect is the number of table slots in a raw header, chosen so
	// the header fills one sector exactly.
	NumDirect = (disk.SectorSize - 2*4) / 4

	// MaxLinkBytes is the data capacity of a single chain link.
	MaxLinkBytes = (NumDirect - 1) * disk.SectorSize
)

var (
	ErrNoSpace = errors.New("no free sectors left")
	ErrCorrupt = errors.New("file header chain is corrupt")
)

// RawHeader is the on-disk layout, little-endian u32 words.
type RawHeader struct {
	NumBytes    uint32
	NumSectors  uint32
	DataSectors [NumDirect]uint32
}

// Header is a raw header plus its own disk location and the next link of
// the chain, fetched lazily alongside it.
type Header struct {
	Raw    RawHeader
	Sector uint32
	Next   *Header
}

func divRoundUp(a, b uint32) uint32 {
	return (a + b - 1) / b
}

// Allocate reserves data sectors for a file of size bytes, chaining new
// headers as needed. On ErrNoSpace the sectors taken so far stay marked in
// the map; the caller undoes them (usually by discarding the unflushed
// map or by a compensating remove).
func (h *Header) Allocate(m *bitmap.Bitmap, size uint32) error {
	nb := size
	if nb > MaxLinkBytes {
		nb = MaxLinkBytes
	}
	total := divRoundUp(nb, disk.SectorSize)
	h.Raw.NumBytes = nb
	h.Raw.NumSectors = 0
	h.Raw.DataSectors[NumDirect-1] = 0
	for i := uint32(0); i < total; i++ {
		s := m.Find()
		if s < 0 {
			// claim only what is actually backed, so a later
			// deallocation stays consistent
			h.Raw.NumBytes = h.Raw.NumSectors * disk.SectorSize
			return ErrNoSpace
		}
		h.Raw.DataSectors[i] = uint32(s)
		h.Raw.NumSectors++
	}
	if size > MaxLinkBytes {
		s := m.Find()
		if s < 0 {
			return ErrNoSpace
		}
		next := &Header{Sector: uint32(s)}
		h.Raw.DataSectors[NumDirect-1] = uint32(s)
		h.Next = next
		return next.Allocate(m, size-MaxLinkBytes)
	}
	return nil
}

// UpdateRaw grows this link by up to extra bytes, capped at the link's
// capacity. Only legal on the tail of a chain; chaining a fresh header
// once the tail saturates is the caller's job.
func (h *Header) UpdateRaw(m *bitmap.Bitmap, extra uint32) error {
	if h.Next != nil {
		log.Fatal("inode: UpdateRaw on a non-tail header")
	}
	nb := h.Raw.NumBytes + extra
	if nb > MaxLinkBytes {
		nb = MaxLinkBytes
	}
	ns := divRoundUp(nb, disk.SectorSize)
	if ns > h.Raw.NumSectors {
		if m.CountClear() < ns-h.Raw.NumSectors {
			return ErrNoSpace
		}
		for i := h.Raw.NumSectors; i < ns; i++ {
			s := m.Find()
			if s < 0 {
				return ErrNoSpace
			}
			h.Raw.DataSectors[i] = uint32(s)
		}
	}
	h.Raw.NumBytes = nb
	h.Raw.NumSectors = ns
	return nil
}

// SetNext chains a freshly allocated header onto a saturated tail.
func (h *Header) SetNext(next *Header) {
	if h.Next != nil {
		log.Fatal("inode: SetNext on a chained header")
	}
	h.Raw.DataSectors[NumDirect-1] = next.Sector
	h.Next = next
}

// ByteToSector translates a byte offset within the file to the sector
// holding it, descending the chain as needed.
func (h *Header) ByteToSector(offset uint32) uint32 {
	if offset >= MaxLinkBytes {
		if h.Next == nil {
			log.Fatalf("inode: offset %d past the end of the chain", offset)
		}
		return h.Next.ByteToSector(offset - MaxLinkBytes)
	}
	return h.Raw.DataSectors[offset/disk.SectorSize]
}

// Length returns the file size in bytes, summed over the chain.
func (h *Header) Length() uint32 {
	if h.Next != nil {
		return h.Raw.NumBytes + h.Next.Length()
	}
	return h.Raw.NumBytes
}

// Links returns the chain length.
func (h *Header) Links() int {
	if h.Next != nil {
		return 1 + h.Next.Links()
	}
	return 1
}

// Tail returns the last link of the chain.
func (h *Header) Tail() *Header {
	p := h
	for p.Next != nil {
		p = p.Next
	}
	return p
}

// Deallocate frees every data sector and every chained header sector.
// The sector holding this header itself stays marked; the caller clears it.
func (h *Header) Deallocate(m *bitmap.Bitmap) {
	for i := uint32(0); i < h.Raw.NumSectors; i++ {
		if !m.Test(h.Raw.DataSectors[i]) {
			log.Fatalf("inode: data sector %d not marked", h.Raw.DataSectors[i])
		}
		m.Clear(h.Raw.DataSectors[i])
	}
	if h.Next != nil {
		m.Clear(h.Next.Sector)
		h.Next.Deallocate(m)
	}
}

// FetchFrom reads a header chain starting at sector.
func FetchFrom(d disk.Disk, sector uint32) (*Header, error) {
	return fetchChain(d, sector, disk.NumSectors)
}

func fetchChain(d disk.Disk, sector uint32, depth int) (*Header, error) {
	if depth == 0 {
		return nil, ErrCorrupt
	}
	buf := make([]byte, disk.SectorSize)
	if err := d.ReadSector(sector, buf); err != nil {
		return nil, fmt.Errorf("fetching header at sector %d: %w", sector, err)
	}
	h := &Header{Sector: sector}
	decodeRaw(&h.Raw, buf)
	if next := h.Raw.DataSectors[NumDirect-1]; next != 0 {
		nh, err := fetchChain(d, next, depth-1)
		if err != nil {
			return nil, err
		}
		h.Next = nh
	}
	return h, nil
}

// WriteBack writes the whole chain to disk, each link at its own sector.
func (h *Header) WriteBack(d disk.Disk) error {
	buf := make([]byte, disk.SectorSize)
	encodeRaw(&h.Raw, buf)
	if err := d.WriteSector(h.Sector, buf); err != nil {
		return fmt.Errorf("writing header at sector %d: %w", h.Sector, err)
	}
	if h.Next != nil {
		return h.Next.WriteBack(d)
	}
	return nil
}
