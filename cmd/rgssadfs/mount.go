package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dogtopus/rgssad-fuse/rgssad"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/xerrors"
)

const mountHelp = `rgssadfs mount [-flags] <archive> <mountpoint>

Mount an archive read-only as a FUSE filesystem. Runs until interrupted or
the mountpoint is unmounted (fusermount -u <mountpoint>).

Example:
  % mkdir /tmp/game && rgssadfs mount Game.rgssad /tmp/game
`

// never is used for FUSE cache expiration timestamps. The archive is
// immutable for the lifetime of the mount, so the kernel can cache
// attributes and directory entries forever.
var never = time.Now().Add(365 * 24 * time.Hour)

func cmdMount(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("mount", flag.ExitOnError)
	allowOther := fset.Bool("allow_other", false, "allow all users to read the mounted filesystem")
	fset.Usage = usage(fset, mountHelp)
	fset.Parse(args)
	if fset.NArg() != 2 {
		return xerrors.Errorf("syntax: mount <archive> <mountpoint>")
	}
	archivePath, mountpoint := fset.Arg(0), fset.Arg(1)

	a, err := rgssad.Open(archivePath)
	if err != nil {
		return xerrors.Errorf("opening %s: %w", archivePath, err)
	}
	defer a.Close()

	fs := &archiveFS{archive: a, handles: make(map[fuseops.HandleID]*rgssad.Stream)}
	server := fuseutil.NewFileSystemServer(fs)

	opts := map[string]string{}
	if *allowOther {
		opts["allow_other"] = ""
	}
	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		FSName:   "rgssadfs",
		ReadOnly: true,
		Options:  opts,
	})
	if err != nil {
		return xerrors.Errorf("mounting %s: %w", mountpoint, err)
	}

	go func() {
		<-ctx.Done()
		if err := fuse.Unmount(mountpoint); err != nil {
			log.Printf("unmount %s: %v", mountpoint, err)
		}
	}()

	if err := mfs.Join(ctx); err != nil {
		return xerrors.Errorf("serving %s: %w", mountpoint, err)
	}
	return nil
}

// archiveFS adapts rgssad.Archive, an already-immutable in-memory tree, to
// jacobsa/fuse's fuseutil.FileSystem interface. Every unimplemented
// operation (anything that would mutate the archive) falls through to
// fuseutil.NotImplementedFileSystem, which answers ENOSYS.
type archiveFS struct {
	fuseutil.NotImplementedFileSystem

	archive *rgssad.Archive

	mu         sync.Mutex
	handles    map[fuseops.HandleID]*rgssad.Stream
	nextHandle fuseops.HandleID
}

func fuseInode(id rgssad.InodeID) fuseops.InodeID { return fuseops.InodeID(id) + 1 }
func archiveInode(id fuseops.InodeID) rgssad.InodeID {
	return rgssad.InodeID(id - 1)
}

func (fs *archiveFS) attributesFor(id rgssad.InodeID) (fuseops.InodeAttributes, error) {
	st, err := fs.archive.Stat(id)
	if err != nil {
		return fuseops.InodeAttributes{}, err
	}
	if st.Kind == rgssad.KindDirectory {
		return fuseops.InodeAttributes{
			Nlink: 1,
			Mode:  os.ModeDir | 0555,
		}, nil
	}
	return fuseops.InodeAttributes{
		Size:  uint64(st.Size),
		Nlink: 1,
		Mode:  0444,
	}, nil
}

func (fs *archiveFS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	op.BlockSize = 4096
	op.Blocks = 1
	op.BlocksFree = 0
	op.BlocksAvailable = 0
	op.IoSize = 65536
	return nil
}

func (fs *archiveFS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	op.Entry.AttributesExpiration = never
	op.Entry.EntryExpiration = never

	child, err := fs.archive.Lookup(archiveInode(op.Parent), op.Name)
	if err != nil {
		return fuse.ENOENT
	}
	attrs, err := fs.attributesFor(child)
	if err != nil {
		return fuse.EIO
	}
	op.Entry.Child = fuseInode(child)
	op.Entry.Attributes = attrs
	return nil
}

func (fs *archiveFS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	op.AttributesExpiration = never
	attrs, err := fs.attributesFor(archiveInode(op.Inode))
	if err != nil {
		return fuse.ENOENT
	}
	op.Attributes = attrs
	return nil
}

func (fs *archiveFS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	if !fs.archive.IsDir(archiveInode(op.Inode)) {
		return fuse.ENOENT
	}
	return nil
}

func (fs *archiveFS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	id := archiveInode(op.Inode)
	children, err := fs.archive.Readdir(id, int(op.Offset))
	if err != nil {
		return fuse.EIO
	}

	for i, c := range children {
		typ := fuseutil.DT_File
		if fs.archive.IsDir(c.Inode) {
			typ = fuseutil.DT_Directory
		}
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: op.Offset + fuseops.DirOffset(i) + 1,
			Inode:  fuseInode(c.Inode),
			Name:   c.Name,
			Type:   typ,
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *archiveFS) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	return nil
}

func (fs *archiveFS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	id := archiveInode(op.Inode)
	s, err := fs.archive.OpenEntry(id)
	if err != nil {
		return fuse.ENOENT
	}

	fs.mu.Lock()
	fs.nextHandle++
	handle := fs.nextHandle
	fs.handles[handle] = s
	fs.mu.Unlock()

	op.Handle = handle
	op.KeepPageCache = true
	return nil
}

func (fs *archiveFS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	s, ok := fs.handles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return fuse.EIO
	}

	if _, err := s.Seek(op.Offset, io.SeekStart); err != nil {
		return xerrors.Errorf("seeking to %d: %w", op.Offset, err)
	}
	n, err := io.ReadFull(s, op.Dst)
	op.BytesRead = n
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil
	}
	return err
}

func (fs *archiveFS) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fs.mu.Lock()
	s, ok := fs.handles[op.Handle]
	delete(fs.handles, op.Handle)
	fs.mu.Unlock()
	if ok {
		s.Close()
	}
	return nil
}

func (fs *archiveFS) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	return nil
}
