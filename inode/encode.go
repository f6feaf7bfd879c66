package inode

import "encoding/binary"

func putU32(b []byte, off int, u uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], u)
}

func getU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

func encodeRaw(r *RawHeader, b []byte) {
	putU32(b, 0, r.NumBytes)
	putU32(b, 4, r.NumSectors)
	for i := 0; i < NumDirect; i++ {
		putU32(b, 8+4*i, r.DataSectors[i])
	}
}

func decodeRaw(r *RawHeader, b []byte) {
	r.NumBytes = getU32(b, 0)
	r.NumSectors = getU32(b, 4)
	for i := 0; i < NumDirect; i++ {
		r.DataSectors[i] = getU32(b, 8+4*i)
	}
}
