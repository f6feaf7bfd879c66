package fs

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/dantenoguera/nachOS/disk"
)

// Partitions:
//	-> ReadAt
//		-> at 0; mid-file; crossing EOF (clamped); past EOF (=0, EOF);
//		   misaligned both ends
//	-> WriteAt
//		-> at 0; mid-file overwrite; append at EOF; past EOF (=FAIL);
//		   misaligned both ends
//	-> Read/Write advance the seek position
//	-> reader/writer protocol
//		-> concurrent readers overlap; a writer excludes readers;
//		   counters stay within the invariants

// Covers:
//	-> readat/clamped+past EOF
//	-> writeat/past EOF
func TestReadWriteBounds(tt *testing.T) {
	fsys := newTestFS(tt)
	fsys.Create(0, "a", 0)
	h, _ := fsys.Open(0, "a")
	defer h.Close()

	if n, err := h.WriteAt([]byte("0123456789"), 0); n != 10 || err != nil {
		tt.Fatalf("write gave (%d, %v)", n, err)
	}

	buf := make([]byte, 10)
	n, err := h.ReadAt(buf, 5)
	if n != 5 || err != io.EOF {
		tt.Errorf("clamped read gave (%d, %v), wanted (5, EOF)", n, err)
	}
	if string(buf[:n]) != "56789" {
		tt.Errorf("clamped read got %q", buf[:n])
	}

	if n, err := h.ReadAt(buf, 50); n != 0 || err != io.EOF {
		tt.Errorf("read past EOF gave (%d, %v), wanted (0, EOF)", n, err)
	}
	if n, err := h.WriteAt([]byte("x"), 50); n != 0 || err == nil {
		tt.Errorf("write past EOF gave (%d, %v), wanted an error", n, err)
	}
}

// Covers:
//	-> writeat/misaligned both ends
//	-> readat/misaligned both ends
func TestMisalignedWrite(tt *testing.T) {
	fsys := newTestFS(tt)
	size := 3 * disk.SectorSize
	fsys.Create(0, "a", uint32(size))
	h, _ := fsys.Open(0, "a")
	defer h.Close()

	base := bytes.Repeat([]byte("ab"), size/2)
	if n, err := h.WriteAt(base, 0); n != size || err != nil {
		tt.Fatalf("base write gave (%d, %v)", n, err)
	}

	// overwrite a span that starts and ends inside sectors
	patch := bytes.Repeat([]byte("Z"), disk.SectorSize)
	at := int64(disk.SectorSize/2 + 3)
	if n, err := h.WriteAt(patch, at); n != len(patch) || err != nil {
		tt.Fatalf("patch write gave (%d, %v)", n, err)
	}

	want := append([]byte{}, base...)
	copy(want[at:], patch)
	got := make([]byte, size)
	if n, err := h.ReadAt(got, 0); n != size || err != nil {
		tt.Fatalf("read back gave (%d, %v)", n, err)
	}
	if !bytes.Equal(want, got) {
		tt.Errorf("surrounding bytes were clobbered by a misaligned write")
	}
}

// Covers:
//	-> read+write advance the seek position
func TestSeekAdvances(tt *testing.T) {
	fsys := newTestFS(tt)
	fsys.Create(0, "a", 0)
	h, _ := fsys.Open(0, "a")
	defer h.Close()

	h.Write([]byte("hello "))
	h.Write([]byte("world"))
	h.Seek(0)

	buf := make([]byte, 11)
	if n, err := h.Read(buf); n != 11 || (err != nil && err != io.EOF) {
		tt.Fatalf("read gave (%d, %v)", n, err)
	}
	if string(buf) != "hello world" {
		tt.Errorf("sequential writes gave %q", buf)
	}
}

// Covers:
//	-> protocol/concurrent readers, one writer, counter invariants
func TestReadersWriterProtocol(tt *testing.T) {
	fsys := newTestFS(tt)
	const payloadLen = 3 * disk.SectorSize / 2 // crosses sector boundaries

	fsys.Create(0, "shared", 0)
	w, _ := fsys.Open(0, "shared")
	first := bytes.Repeat([]byte{'A'}, payloadLen)
	if n, err := w.WriteAt(first, 0); n != payloadLen || err != nil {
		tt.Fatalf("initial write gave (%d, %v)", n, err)
	}

	e := fsys.files.Find("/shared")
	if e == nil {
		tt.Fatal("no table entry for the shared file")
	}

	stop := make(chan struct{})
	var violations int
	var wg sync.WaitGroup

	// monitor: the counters must always satisfy the invariants
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			e.Lock.Acquire(100)
			if e.Writers < 0 || e.Writers > 1 {
				violations++
			}
			if e.Writers == 1 && e.Readers > 0 {
				violations++
			}
			if e.Readers < 0 {
				violations++
			}
			e.Lock.Release(100)
		}
	}()

	// readers: every observed payload must be a complete one
	for tid := 1; tid <= 2; tid++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			r, err := fsys.Open(tid, "shared")
			if err != nil {
				tt.Errorf("reader open failed: %v", err)
				return
			}
			defer r.Close()
			buf := make([]byte, payloadLen)
			for i := 0; i < 200; i++ {
				if n, err := r.ReadAt(buf, 0); n != payloadLen || err != nil {
					tt.Errorf("reader got (%d, %v)", n, err)
					return
				}
				for _, b := range buf {
					if b != buf[0] {
						tt.Errorf("torn read: saw %q and %q", buf[0], b)
						return
					}
				}
			}
		}(tid)
	}

	// writer: alternate complete payloads
	last := byte('A')
	for i := 0; i < 100; i++ {
		last = byte('B' + i%2)
		payload := bytes.Repeat([]byte{last}, payloadLen)
		if n, err := w.WriteAt(payload, 0); n != payloadLen || err != nil {
			tt.Fatalf("writer got (%d, %v)", n, err)
		}
	}
	close(stop)
	wg.Wait()
	w.Close()

	if violations > 0 {
		tt.Errorf("%d counter invariant violations observed", violations)
	}

	// the file ends as the last complete payload
	final, _ := fsys.Open(0, "shared")
	defer final.Close()
	buf := make([]byte, payloadLen)
	if n, err := final.ReadAt(buf, 0); n != payloadLen || err != nil {
		tt.Fatalf("final read gave (%d, %v)", n, err)
	}
	for _, b := range buf {
		if b != last {
			tt.Fatalf("final bytes aren't the last payload: saw %q, wanted %q", b, last)
		}
	}
}
