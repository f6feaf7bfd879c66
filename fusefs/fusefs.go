// Package fusefs exposes the filesystem façade as a host FUSE mount.
// Every kernel request is translated into façade calls made on one
// dedicated thread id; the adapter mutex serializes them because the
// façade resolves names against that thread's working directory.
package fusefs

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"

	"bazil.org/fuse"
	bfs "bazil.org/fuse/fs"

	"github.com/dantenoguera/nachOS/directory"
	"github.com/dantenoguera/nachOS/fs"
)

type FS struct {
	mu   sync.Mutex
	fsys *fs.FileSystem
	tid  int
}

func New(fsys *fs.FileSystem, tid int) *FS {
	return &FS{fsys: fsys, tid: tid}
}

// Mount serves fsys at mountpoint until the connection closes.
func Mount(mountpoint string, fsys *fs.FileSystem, tid int) error {
	conn, err := fuse.Mount(
		mountpoint,
		fuse.FSName("nachos"),
		fuse.Subtype("nachosfs"),
	)
	if err != nil {
		return err
	}
	defer conn.Close()
	return bfs.Serve(conn, New(fsys, tid))
}

func (f *FS) Root() (bfs.Node, error) {
	return &Dir{fsys: f, path: "/"}, nil
}

// inDir runs fn with the adapter's working directory moved to path.
func (f *FS) inDir(path string, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fsys.ChangeDir(f.tid, path); err != nil {
		return fuse.ENOENT
	}
	return fn()
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, fs.ErrExists):
		return fuse.EEXIST
	case errors.Is(err, fs.ErrNotEmpty):
		return fuse.Errno(syscall.ENOTEMPTY)
	case errors.Is(err, fs.ErrNoSpace), errors.Is(err, fs.ErrDirectoryFull):
		return fuse.Errno(syscall.ENOSPC)
	default:
		return fuse.EIO
	}
}

// Dir is a directory node, identified by its absolute path.
type Dir struct {
	fsys *FS
	path string
}

func (d *Dir) Attr(ctx context.Context, attr *fuse.Attr) error {
	attr.Mode = os.ModeDir | 0755
	return nil
}

func (d *Dir) entries() ([]directory.Entry, error) {
	var out []directory.Entry
	err := d.fsys.inDir(d.path, func() error {
		entries, err := d.fsys.fsys.List(d.fsys.tid)
		if err != nil {
			return mapErr(err)
		}
		out = entries
		return nil
	})
	return out, err
}

func (d *Dir) Lookup(ctx context.Context, name string) (bfs.Node, error) {
	entries, err := d.entries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name() != name {
			continue
		}
		if e.IsDir {
			return &Dir{fsys: d.fsys, path: join(d.path, name)}, nil
		}
		return &File{fsys: d.fsys, dir: d.path, name: name}, nil
	}
	return nil, fuse.ENOENT
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := d.entries()
	if err != nil {
		return nil, err
	}
	out := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		typ := fuse.DT_File
		if e.IsDir {
			typ = fuse.DT_Dir
		}
		out = append(out, fuse.Dirent{Name: e.Name(), Type: typ})
	}
	return out, nil
}

func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (bfs.Node, error) {
	err := d.fsys.inDir(d.path, func() error {
		return mapErr(d.fsys.fsys.CreateDir(d.fsys.tid, req.Name))
	})
	if err != nil {
		return nil, err
	}
	return &Dir{fsys: d.fsys, path: join(d.path, req.Name)}, nil
}

func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (bfs.Node, bfs.Handle, error) {
	var handle *fs.OpenFile
	err := d.fsys.inDir(d.path, func() error {
		if err := d.fsys.fsys.Create(d.fsys.tid, req.Name, 0); err != nil && !errors.Is(err, fs.ErrExists) {
			return mapErr(err)
		}
		f, err := d.fsys.fsys.Open(d.fsys.tid, req.Name)
		if err != nil {
			return mapErr(err)
		}
		handle = f
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	node := &File{fsys: d.fsys, dir: d.path, name: req.Name}
	return node, &Handle{fsys: d.fsys, file: handle}, nil
}

func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	return d.fsys.inDir(d.path, func() error {
		var err error
		if req.Dir {
			err = d.fsys.fsys.RemoveDir(d.fsys.tid, req.Name)
		} else {
			err = d.fsys.fsys.Remove(d.fsys.tid, req.Name)
		}
		if errors.Is(err, fs.ErrInUse) {
			// tombstoned: the unlink happened logically
			return nil
		}
		return mapErr(err)
	})
}

// File is a regular-file node, identified by directory and name.
type File struct {
	fsys *FS
	dir  string
	name string
}

func (f *File) Attr(ctx context.Context, attr *fuse.Attr) error {
	return f.fsys.inDir(f.dir, func() error {
		h, err := f.fsys.fsys.Open(f.fsys.tid, f.name)
		if err != nil {
			return mapErr(err)
		}
		attr.Mode = 0644
		attr.Size = uint64(h.Length())
		h.Close()
		return nil
	})
}

func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (bfs.Handle, error) {
	var handle *fs.OpenFile
	err := f.fsys.inDir(f.dir, func() error {
		h, err := f.fsys.fsys.Open(f.fsys.tid, f.name)
		if err != nil {
			return mapErr(err)
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Handle{fsys: f.fsys, file: handle}, nil
}

// Handle wraps one open façade handle.
type Handle struct {
	fsys *FS
	file *fs.OpenFile
}

// Handle I/O also runs under the adapter mutex: the kernel issues
// requests concurrently, but every handle shares the adapter's thread id
// and the entry-lock protocol is per thread.
func (h *Handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	h.fsys.mu.Lock()
	defer h.fsys.mu.Unlock()
	buf := make([]byte, req.Size)
	n, err := h.file.ReadAt(buf, req.Offset)
	if err != nil && n == 0 && err != io.EOF {
		return fuse.EIO
	}
	resp.Data = buf[:n]
	return nil
}

func (h *Handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	h.fsys.mu.Lock()
	defer h.fsys.mu.Unlock()
	n, err := h.file.WriteAt(req.Data, req.Offset)
	if err != nil {
		return fuse.EIO
	}
	resp.Size = n
	return nil
}

func (h *Handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	h.fsys.mu.Lock()
	defer h.fsys.mu.Unlock()
	return h.file.Close()
}

func join(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
