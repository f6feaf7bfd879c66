package disk

import (
	"fmt"
	"os"
	"sync"
)

// FileDisk backs the sector store with an image file on the host.
type FileDisk struct {
	mu sync.Mutex
	f  *os.File
}

// OpenImage opens (or creates) a disk image and pads it out to DiskSize.
func OpenImage(path string) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening disk image: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening disk image: %w", err)
	}
	if st.Size() < DiskSize {
		if err := f.Truncate(DiskSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("sizing disk image: %w", err)
		}
	}
	return &FileDisk{f: f}, nil
}

func (d *FileDisk) ReadSector(sector uint32, into []byte) error {
	if err := checkArgs(sector, into); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.f.ReadAt(into[:SectorSize], int64(sector)*SectorSize); err != nil {
		return fmt.Errorf("reading sector %d: %w", sector, err)
	}
	return nil
}

func (d *FileDisk) WriteSector(sector uint32, from []byte) error {
	if err := checkArgs(sector, from); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.f.WriteAt(from[:SectorSize], int64(sector)*SectorSize); err != nil {
		return fmt.Errorf("writing sector %d: %w", sector, err)
	}
	return nil
}

func (d *FileDisk) Sync() error {
	return d.f.Sync()
}

func (d *FileDisk) Close() error {
	return d.f.Close()
}
