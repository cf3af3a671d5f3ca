package gosfs

import "strings"

// Path resolution: splits a slash-separated absolute path into components
// and walks the directory tree one component at a time, starting from the
// root inode (spec.md §4.F). "." and ".." are not interpreted: lookups
// match REGULAR entries only, so the EntryThis self-reference written at
// directory creation is never found by name — GOSFS paths are always
// resolved from the root.

// splitPath breaks an absolute path like "/a/b/c" into ["a", "b", "c"].
// Repeated slashes collapse; a trailing slash is ignored. The root path
// "/" (or "") yields an empty slice.
func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, c := range parts {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Resolve walks path from the root and returns the inode number it names.
// Fails with ErrNotFound if any component is missing, or ErrNotDirectory if
// a non-terminal component is not a directory.
func (m *Mount) resolve(path string) (InodeNum, error) {
	if !strings.HasPrefix(path, "/") {
		return 0, ErrInvalidArgument
	}
	cur := InodeNum(RootIno)
	for _, comp := range splitPath(path) {
		ino, err := m.readInode(cur)
		if err != nil {
			return 0, err
		}
		if !ino.IsDir() {
			return 0, ErrNotDirectory
		}
		next, err := m.findEntry(cur, comp)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	return cur, nil
}

// resolveParent splits path into its containing directory's inode number
// and the final component's name. Fails with ErrNotFound if the parent
// does not exist, or ErrInvalidArgument if path names the root itself.
func (m *Mount) resolveParent(path string) (InodeNum, string, error) {
	if !strings.HasPrefix(path, "/") {
		return 0, "", ErrInvalidArgument
	}
	parts := splitPath(path)
	if len(parts) == 0 {
		return 0, "", ErrInvalidArgument
	}
	parentPath := "/" + strings.Join(parts[:len(parts)-1], "/")
	parentIno, err := m.resolve(parentPath)
	if err != nil {
		return 0, "", err
	}
	ino, err := m.readInode(parentIno)
	if err != nil {
		return 0, "", err
	}
	if !ino.IsDir() {
		return 0, "", ErrNotDirectory
	}
	return parentIno, parts[len(parts)-1], nil
}
