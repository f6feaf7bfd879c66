package fs

import "io"

// Proc is the system-call surface one thread sees: the façade plus a
// table of open file descriptors. Descriptors 0 and 1 are reserved for
// the console, as usual.
type Proc struct {
	fs    *FileSystem
	tid   int
	fds   map[int]*OpenFile
	maxFd int
}

// NewProc attaches a thread id to the filesystem and returns its
// syscall surface.
func (s *FileSystem) NewProc(tid int) *Proc {
	return &Proc{fs: s, tid: tid, fds: make(map[int]*OpenFile), maxFd: 2}
}

func (p *Proc) mkFd() int {
	p.maxFd++
	return p.maxFd - 1
}

// Create makes a file of the given initial size. 0 on success, -1 on
// error.
func (p *Proc) Create(name string, size int) int {
	if size < 0 || p.fs.Create(p.tid, name, uint32(size)) != nil {
		return -1
	}
	return 0
}

// Open returns a fresh descriptor on name, or -1.
func (p *Proc) Open(name string) int {
	f, err := p.fs.Open(p.tid, name)
	if err != nil {
		return -1
	}
	fd := p.mkFd()
	p.fds[fd] = f
	return fd
}

// Close releases a descriptor. 0 on success, -1 on a bad descriptor.
func (p *Proc) Close(fd int) int {
	f, ok := p.fds[fd]
	if !ok {
		return -1
	}
	delete(p.fds, fd)
	if f.Close() != nil {
		return -1
	}
	return 0
}

// Read fills buf from the descriptor's current position and advances it.
// Returns the byte count, or -1.
func (p *Proc) Read(fd int, buf []byte) int {
	f, ok := p.fds[fd]
	if !ok {
		return -1
	}
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return -1
	}
	return n
}

// Write stores buf at the descriptor's current position and advances it.
// Returns the byte count, or -1.
func (p *Proc) Write(fd int, buf []byte) int {
	f, ok := p.fds[fd]
	if !ok {
		return -1
	}
	n, err := f.Write(buf)
	if err != nil {
		return -1
	}
	return n
}

// Seek repositions a descriptor. 0 on success, -1 on a bad descriptor.
func (p *Proc) Seek(fd int, pos int64) int {
	f, ok := p.fds[fd]
	if !ok || pos < 0 {
		return -1
	}
	f.Seek(pos)
	return 0
}

// File returns the open handle behind a descriptor, or nil.
func (p *Proc) File(fd int) *OpenFile {
	return p.fds[fd]
}

// Remove unlinks a file. Note that unlinking an open file reports -1
// even though the name is now tombstoned and will be reclaimed on last
// close; callers tolerate that.
func (p *Proc) Remove(name string) int {
	if p.fs.Remove(p.tid, name) != nil {
		return -1
	}
	return 0
}

func (p *Proc) CreateDir(name string) int {
	if p.fs.CreateDir(p.tid, name) != nil {
		return -1
	}
	return 0
}

func (p *Proc) ChangeDir(path string) int {
	if p.fs.ChangeDir(p.tid, path) != nil {
		return -1
	}
	return 0
}

func (p *Proc) RemoveDir(name string) int {
	if p.fs.RemoveDir(p.tid, name) != nil {
		return -1
	}
	return 0
}

// List names the entries of the working directory, nil on error.
func (p *Proc) List() []string {
	entries, err := p.fs.List(p.tid)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// Exit closes every descriptor and detaches the thread.
func (p *Proc) Exit() {
	for fd, f := range p.fds {
		f.Close()
		delete(p.fds, fd)
	}
	p.fs.Exit(p.tid)
}
