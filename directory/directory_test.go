package directory

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Partitions:
//	-> Add
//		-> fresh name; duplicate (=FAIL); full table (=FAIL);
//		   over-long name (=FAIL)
//	-> Find/FindEntry
//		-> present, absent, compared up to NameMaxLen
//	-> Remove
//		-> present, absent (=FAIL)
//	-> IsEmpty, Entries
//	-> FetchFrom/WriteBack round trip

type byteFile struct {
	data []byte
}

func (f *byteFile) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, f.data[off:]), nil
}

func (f *byteFile) WriteAt(p []byte, off int64) (int, error) {
	return copy(f.data[off:], p), nil
}

// Covers:
//	-> add/fresh
//	-> find/present+absent
//	-> isempty
func TestAddFind(tt *testing.T) {
	d := New()
	if !d.IsEmpty() {
		tt.Errorf("fresh directory isn't empty")
	}
	if err := d.Add("hello", 42, false); err != nil {
		tt.Fatalf("add failed: %v", err)
	}
	if d.IsEmpty() {
		tt.Errorf("directory with an entry claims to be empty")
	}
	if got := d.Find("hello"); got != 42 {
		tt.Errorf("found sector %d, wanted 42", got)
	}
	if got := d.Find("missing"); got != -1 {
		tt.Errorf("found %d for a missing name", got)
	}
}

// Covers:
//	-> add/duplicate
//	-> add/over-long
func TestAddRejects(tt *testing.T) {
	d := New()
	if err := d.Add("x", 2, false); err != nil {
		tt.Fatalf("add failed: %v", err)
	}
	if err := d.Add("x", 3, false); err != ErrExists {
		tt.Errorf("duplicate add gave %v, wanted ErrExists", err)
	}
	if err := d.Add("waytoolongname", 4, false); err != ErrNameTooLong {
		tt.Errorf("over-long add gave %v, wanted ErrNameTooLong", err)
	}
}

// Covers:
//	-> add/full table
func TestAddFullTable(tt *testing.T) {
	d := New()
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for i, n := range names {
		if err := d.Add(n, uint32(i+2), false); err != nil {
			tt.Fatalf("add %q failed: %v", n, err)
		}
	}
	if err := d.Add("k", 99, false); err != ErrFull {
		tt.Errorf("add to a full table gave %v, wanted ErrFull", err)
	}
}

// Covers:
//	-> remove/present+absent
func TestRemove(tt *testing.T) {
	d := New()
	d.Add("x", 2, false)
	if err := d.Remove("x"); err != nil {
		tt.Errorf("remove failed: %v", err)
	}
	if !d.IsEmpty() {
		tt.Errorf("directory not empty after removing its only entry")
	}
	if err := d.Remove("x"); err != ErrNotFound {
		tt.Errorf("double remove gave %v, wanted ErrNotFound", err)
	}
}

// Covers:
//	-> fetch+writeback round trip
//	-> entries
func TestPersistenceRoundTrip(tt *testing.T) {
	d := New()
	d.Add("file", 5, false)
	d.Add("subdir", 9, true)

	f := &byteFile{data: make([]byte, FileSize)}
	if err := d.WriteBack(f); err != nil {
		tt.Fatalf("writeback failed: %v", err)
	}

	d2 := New()
	if err := d2.FetchFrom(f); err != nil {
		tt.Fatalf("fetch failed: %v", err)
	}
	if !cmp.Equal(d.Entries(), d2.Entries(), cmp.AllowUnexported(Entry{})) {
		tt.Errorf("entries didn't round-trip:\n%v\nvs\n%v", d.Entries(), d2.Entries())
	}

	e := d2.FindEntry("subdir")
	if e == nil || !e.IsDir || e.Sector != 9 {
		tt.Errorf("subdir entry came back wrong: %+v", e)
	}
}
