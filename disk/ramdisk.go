package disk

import "sync"

// RamDisk keeps the whole image in memory. Used by tests.
type RamDisk struct {
	mu   sync.Mutex
	data []byte
}

func NewRamDisk() *RamDisk {
	return &RamDisk{data: make([]byte, DiskSize)}
}

func (d *RamDisk) ReadSector(sector uint32, into []byte) error {
	if err := checkArgs(sector, into); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(into[:SectorSize], d.data[int(sector)*SectorSize:])
	return nil
}

func (d *RamDisk) WriteSector(sector uint32, from []byte) error {
	if err := checkArgs(sector, from); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.data[int(sector)*SectorSize:(int(sector)+1)*SectorSize], from[:SectorSize])
	return nil
}

// Image returns a copy of the current disk contents.
func (d *RamDisk) Image() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.data))
	copy(out, d.data)
	return out
}
