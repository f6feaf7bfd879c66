package directory

import "encoding/binary"

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func encode(d *Directory, b []byte) {
	for i := range d.table {
		e := &d.table[i]
		p := b[i*entrySize:]
		p[0] = boolByte(e.InUse)
		p[1] = boolByte(e.IsDir)
		copy(p[2:2+NameMaxLen+1], e.name[:])
		binary.LittleEndian.PutUint32(p[2+NameMaxLen+1:], e.Sector)
	}
}

func decode(d *Directory, b []byte) {
	for i := range d.table {
		e := &d.table[i]
		p := b[i*entrySize:]
		e.InUse = p[0] != 0
		e.IsDir = p[1] != 0
		copy(e.name[:], p[2:2+NameMaxLen+1])
		e.Sector = binary.LittleEndian.Uint32(p[2+NameMaxLen+1:])
	}
}
