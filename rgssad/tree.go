package rgssad

import "strings"

// InodeID identifies a node in an Archive's directory tree. Inode 0 is
// always the root directory.
type InodeID uint32

// RootInodeID is the id of the root directory inode.
const RootInodeID InodeID = 0

// Kind distinguishes directory inodes from file inodes.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

// DirEntry is one child of a directory inode, as returned by Readdir.
type DirEntry struct {
	Name  string
	Inode InodeID
}

// inode is the tagged-variant node stored in Archive.inodes. Directory
// fields and file fields are mutually exclusive depending on kind: a tagged
// Directory/File variant instead of the untyped key/value mapping the
// Python original uses.
type inode struct {
	kind     Kind
	children []DirEntry // directory only, always starts with "." and ".."

	offset uint32 // file only: absolute byte offset of payload
	size   uint32 // file only: payload length
	seed   uint32 // file only: initial keystream value
}

// tree builds the inode table from a flat list of parsed entry records, the
// way archive.go's Open assembles an Archive.
type tree struct {
	inodes []inode
}

func newTree() *tree {
	t := &tree{}
	t.inodes = append(t.inodes, inode{
		kind: KindDirectory,
		children: []DirEntry{
			{Name: ".", Inode: RootInodeID},
			{Name: "..", Inode: RootInodeID},
		},
	})
	return t
}

func (t *tree) addEntries(entries []entryRecord) {
	for _, e := range entries {
		dir, base := splitWindowsPath(e.path)
		parent := t.mkdirAll(dir)
		t.addFile(parent, base, e.offset, e.size, e.seed)
	}
}

func (t *tree) mknod(parent InodeID, name string, in inode) InodeID {
	t.inodes = append(t.inodes, in)
	id := InodeID(len(t.inodes) - 1)
	t.inodes[parent].children = append(t.inodes[parent].children, DirEntry{Name: name, Inode: id})
	return id
}

func (t *tree) mkdir(parent InodeID, name string) InodeID {
	id := t.mknod(parent, name, inode{kind: KindDirectory})
	t.inodes[id].children = []DirEntry{
		{Name: ".", Inode: id},
		{Name: "..", Inode: parent},
	}
	return id
}

func (t *tree) addFile(parent InodeID, name string, offset, size, seed uint32) InodeID {
	return t.mknod(parent, name, inode{kind: KindFile, offset: offset, size: size, seed: seed})
}

// mkdirAll walks from root creating any missing directory components of a
// backslash-normalized path (already split into its components).
func (t *tree) mkdirAll(components []string) InodeID {
	cur := RootInodeID
	for _, c := range components {
		if next, ok := t.lookup(cur, c); ok {
			cur = next
			continue
		}
		cur = t.mkdir(cur, c)
	}
	return cur
}

func (t *tree) lookup(parent InodeID, name string) (InodeID, bool) {
	for _, c := range t.inodes[parent].children {
		if c.Name == name {
			return c.Inode, true
		}
	}
	return 0, false
}

func (t *tree) exists(id InodeID) bool {
	return int(id) >= 0 && int(id) < len(t.inodes)
}

// splitWindowsPath normalizes a backslash-separated RGSSAD path: collapses
// repeated separators, drops "." components, and splits off the final
// (file) component from its parent directory components.
func splitWindowsPath(path string) (dirComponents []string, base string) {
	parts := strings.Split(strings.ReplaceAll(path, "/", `\`), `\`)
	var clean []string
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		clean = append(clean, p)
	}
	if len(clean) == 0 {
		return nil, ""
	}
	return clean[:len(clean)-1], clean[len(clean)-1]
}
