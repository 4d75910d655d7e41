// Package rgssad parses RPG Maker RGSSAD/RGSS2A/RGSS3A and Fux2Pack
// archives and exposes their contents as a read-only virtual filesystem:
// an inode tree built from the archive's encrypted metadata, plus seekable
// streams that decrypt each entry's payload lazily.
package rgssad

import (
	"strings"

	"golang.org/x/exp/mmap"
	"golang.org/x/xerrors"
)

// Stat describes an inode the way a filesystem consumer (FUSE, WebDAV, the
// CLI) needs to render it.
type Stat struct {
	Kind Kind
	Size uint32
}

// Options configures Open. See WithFilenameDecoder.
type Options struct {
	decodeFilename filenameDecoder
}

// Option mutates Options. Functional options, so new knobs (e.g. a lenient
// Shift-JIS decoder for legacy non-UTF-8 archive filenames) can be added
// without breaking existing callers.
type Option func(*Options)

// WithFilenameDecoder overrides how raw decrypted filename bytes become a
// Go string. The default rejects non-UTF-8 names with ErrInvalidUTF8.
func WithFilenameDecoder(decode func([]byte) (string, error)) Option {
	return func(o *Options) { o.decodeFilename = decode }
}

// Archive is an opened, immutable RGSSAD/Fux2Pack archive.
type Archive struct {
	path   string
	raw    *mmap.ReaderAt
	inodes []inode
}

// Open parses path's header and metadata table, builds the directory tree,
// and returns an immutable Archive. The underlying file is kept mapped
// (golang.org/x/exp/mmap) until Close; every read it serves afterwards,
// including concurrent ones issued by independent Streams, goes through
// io.ReaderAt.ReadAt and needs no locking.
func Open(path string, opts ...Option) (*Archive, error) {
	o := Options{decodeFilename: strictUTF8Decoder}
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := mmap.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("rgssad: open %s: %w", path, err)
	}

	entries, err := parseMetadata(raw, int64(raw.Len()), o.decodeFilename)
	if err != nil {
		raw.Close()
		return nil, xerrors.Errorf("rgssad: parsing %s: %w", path, err)
	}

	t := newTree()
	t.addEntries(entries)

	return &Archive{path: path, raw: raw, inodes: t.inodes}, nil
}

// Close releases the archive's mapped file at once. Streams opened from the
// Archive read through that same mapping and hold no reference count on it,
// so their reads fail after Close.
func (a *Archive) Close() error {
	return a.raw.Close()
}

// RootInode returns the id of the root directory.
func (a *Archive) RootInode() InodeID { return RootInodeID }

func (a *Archive) exists(id InodeID) bool {
	return int(id) >= 0 && int(id) < len(a.inodes)
}

// Readdir lists a directory's children in insertion order, which always
// begins with synthetic "." and ".." entries. If offset is given, listing
// starts there (0-based, inclusive) instead of at the beginning.
func (a *Archive) Readdir(id InodeID, offset int) ([]DirEntry, error) {
	if !a.exists(id) || a.inodes[id].kind != KindDirectory {
		return nil, xerrors.Errorf("rgssad: readdir %d: %w", id, ErrNotFound)
	}
	children := a.inodes[id].children
	if offset < 0 {
		offset = 0
	}
	if offset >= len(children) {
		return nil, nil
	}
	return children[offset:], nil
}

// Lookup finds a single child of parent by name.
func (a *Archive) Lookup(parent InodeID, name string) (InodeID, error) {
	if !a.exists(parent) || a.inodes[parent].kind != KindDirectory {
		return 0, xerrors.Errorf("rgssad: lookup %q in %d: %w", name, parent, ErrNotFound)
	}
	for _, c := range a.inodes[parent].children {
		if c.Name == name {
			return c.Inode, nil
		}
	}
	return 0, xerrors.Errorf("rgssad: lookup %q in %d: %w", name, parent, ErrNotFound)
}

// LookupPath resolves a forward-slash path from the root, the way a FUSE or
// WebDAV adapter resolves an incoming request path.
func (a *Archive) LookupPath(path string) (InodeID, error) {
	cur := a.RootInode()
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." {
			continue
		}
		next, err := a.Lookup(cur, part)
		if err != nil {
			return 0, xerrors.Errorf("rgssad: lookup path %q: %w", path, ErrNotFound)
		}
		cur = next
	}
	return cur, nil
}

// Stat reports an inode's kind and (for files) size.
func (a *Archive) Stat(id InodeID) (Stat, error) {
	if !a.exists(id) {
		return Stat{}, xerrors.Errorf("rgssad: stat %d: %w", id, ErrNotFound)
	}
	in := a.inodes[id]
	if in.kind == KindDirectory {
		return Stat{Kind: KindDirectory}, nil
	}
	return Stat{Kind: KindFile, Size: in.size}, nil
}

// Exists reports whether id names a live inode.
func (a *Archive) Exists(id InodeID) bool { return a.exists(id) }

// IsFile reports whether id is a file inode. Callers must check Exists
// first: IsFile and IsDir index the inode table directly and panic on a
// nonexistent inode, unlike Readdir, Lookup, Stat and OpenEntry, which
// return ErrNotFound.
func (a *Archive) IsFile(id InodeID) bool { return a.inodes[id].kind == KindFile }

// IsDir reports whether id is a directory inode.
func (a *Archive) IsDir(id InodeID) bool { return a.inodes[id].kind == KindDirectory }

// OpenEntry opens a seekable, decrypting stream over a file inode's
// payload. Each call returns an independent Stream: independent virtual
// cursor, independent keystream state, safe to use concurrently with
// siblings opened from the same Archive.
func (a *Archive) OpenEntry(id InodeID) (*Stream, error) {
	if !a.exists(id) {
		return nil, xerrors.Errorf("rgssad: open entry %d: %w", id, ErrNotFound)
	}
	in := a.inodes[id]
	if in.kind == KindDirectory {
		return nil, xerrors.Errorf("rgssad: open entry %d: %w", id, ErrIsADirectory)
	}
	return newStream(a.raw, in.offset, in.size, in.seed), nil
}
