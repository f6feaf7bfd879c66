package fs

import (
	gopath "path"
	"strings"
)

// Path handling: Create/Open/Remove and friends take single-segment names
// resolved in the caller's working directory; ChangeDir takes arbitrary
// absolute or relative paths. Absolute paths always start with '/'.

// validName rejects anything that cannot be a directory entry.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return ErrInvalidPath
	}
	return nil
}

// joinPath appends a name to an absolute directory path.
func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// splitPath splits an absolute path into its parent and last segment.
func splitPath(abs string) (parent, base string) {
	dir, base := gopath.Split(abs)
	if dir != "/" {
		dir = strings.TrimSuffix(dir, "/")
	}
	return dir, base
}

// resolve normalizes a path against cwd: absolute paths are cleaned,
// relative ones are joined to cwd first.
func resolve(cwd, p string) (string, error) {
	if p == "" {
		return "", ErrInvalidPath
	}
	if !strings.HasPrefix(p, "/") {
		p = joinPath(cwd, p)
	}
	return gopath.Clean(p), nil
}

// segments splits a cleaned absolute path into its components.
func segments(abs string) []string {
	if abs == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(abs, "/"), "/")
}
