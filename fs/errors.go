package fs

import (
	"errors"

	"github.com/dantenoguera/nachOS/directory"
	"github.com/dantenoguera/nachOS/inode"
)

// The façade's error kinds. Name and directory failures surface the
// sentinels of the packages that detect them, so errors.Is works across
// layers.
var (
	ErrNotFound      = directory.ErrNotFound
	ErrExists        = directory.ErrExists
	ErrNoSpace       = inode.ErrNoSpace
	ErrDirectoryFull = directory.ErrFull
	ErrNameTooLong   = directory.ErrNameTooLong

	ErrNotEmpty    = errors.New("directory not empty")
	ErrInvalidPath = errors.New("invalid path")
	ErrBadFd       = errors.New("bad file descriptor")
	ErrIO          = errors.New("i/o error")
	ErrBadOffset   = errors.New("offset past end of file")

	// ErrInUse is the "false but logically deleted" outcome: the name is
	// tombstoned and the sectors are reclaimed on last close.
	ErrInUse = errors.New("file in use, removal deferred to last close")

	ErrCheckFailed = errors.New("filesystem check failed")
)
