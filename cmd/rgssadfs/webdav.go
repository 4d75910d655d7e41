package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dogtopus/rgssad-fuse/rgssad"
	"github.com/lpar/gzipped/v2"
	"golang.org/x/net/webdav"
	"golang.org/x/xerrors"
)

const webdavHelp = `rgssadfs webdav [-flags] <archive>

Serve an archive read-only over WebDAV, so it can be mounted as a network
drive without a kernel FUSE module.

Example:
  % rgssadfs webdav -listen :8080 Game.rgssad
`

func cmdWebdav(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("webdav", flag.ExitOnError)
	var (
		listen = fset.String("listen", ":8080", "[host]:port to listen on")
		gzip   = fset.Bool("gzip", true, "negotiate gzip-compressed responses with clients that accept them")
	)
	fset.Usage = usage(fset, webdavHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: webdav <archive>")
	}
	archivePath := fset.Arg(0)

	a, err := rgssad.Open(archivePath)
	if err != nil {
		return xerrors.Errorf("opening %s: %w", archivePath, err)
	}
	defer a.Close()

	handler := &webdav.Handler{
		FileSystem: &archiveWebdavFS{archive: a},
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				log.Printf("WEBDAV %s %s: %v", r.Method, r.URL.Path, err)
			}
		},
	}

	var mux http.Handler = handler
	if *gzip {
		gz := gzipped.FileServer(gzippedAdapter{handler})
		mux = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only plain GETs benefit from gzip negotiation; WebDAV verbs
			// (PROPFIND, MKCOL, ...) must reach the real handler untouched.
			if r.Method == http.MethodGet {
				gz.ServeHTTP(w, r)
				return
			}
			handler.ServeHTTP(w, r)
		})
	}

	server := &http.Server{Addr: *listen, Handler: mux}
	log.Printf("serving %s over webdav on %s", archivePath, *listen)

	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()
	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return xerrors.Errorf("webdav: %w", err)
		}
		return nil
	case <-ctx.Done():
		return server.Shutdown(context.Background())
	}
}

// gzippedAdapter exposes the webdav.Handler's FileSystem as an
// http.FileSystem, so gzipped.FileServer can serve GET requests from it. It
// only implements Open; non-GET methods (PROPFIND, etc.) are sent to the
// webdav.Handler by the dispatch in cmdWebdav, not by this adapter.
type gzippedAdapter struct {
	h *webdav.Handler
}

func (g gzippedAdapter) Open(name string) (http.File, error) {
	f, err := g.h.FileSystem.OpenFile(context.Background(), name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return f.(http.File), nil
}

// archiveWebdavFS adapts rgssad.Archive to webdav.FileSystem. The archive is
// read-only, so every mutating method reports os.ErrPermission.
type archiveWebdavFS struct {
	archive *rgssad.Archive
}

func (fs *archiveWebdavFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return os.ErrPermission
}

func (fs *archiveWebdavFS) RemoveAll(ctx context.Context, name string) error {
	return os.ErrPermission
}

func (fs *archiveWebdavFS) Rename(ctx context.Context, oldName, newName string) error {
	return os.ErrPermission
}

func (fs *archiveWebdavFS) resolve(name string) (rgssad.InodeID, error) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		return fs.archive.RootInode(), nil
	}
	return fs.archive.LookupPath(name)
}

func (fs *archiveWebdavFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	id, err := fs.resolve(name)
	if err != nil {
		return nil, os.ErrNotExist
	}
	st, err := fs.archive.Stat(id)
	if err != nil {
		return nil, os.ErrNotExist
	}
	return archiveFileInfo{name: path.Base(path.Clean("/" + name)), st: st}, nil
}

func (fs *archiveWebdavFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_APPEND|os.O_TRUNC) != 0 {
		return nil, os.ErrPermission
	}
	id, err := fs.resolve(name)
	if err != nil {
		return nil, os.ErrNotExist
	}

	base := path.Base(path.Clean("/" + name))
	if fs.archive.IsDir(id) {
		entries, err := fs.archive.Readdir(id, 0)
		if err != nil {
			return nil, os.ErrNotExist
		}
		return &archiveDirFile{fs: fs, id: id, name: base, entries: entries}, nil
	}

	s, err := fs.archive.OpenEntry(id)
	if err != nil {
		return nil, os.ErrNotExist
	}
	st, _ := fs.archive.Stat(id)
	return &archiveFile{fs: fs, stream: s, info: archiveFileInfo{name: base, st: st}}, nil
}

// archiveFileInfo implements os.FileInfo for one inode.
type archiveFileInfo struct {
	name string
	st   rgssad.Stat
}

func (i archiveFileInfo) Name() string       { return i.name }
func (i archiveFileInfo) Size() int64        { return int64(i.st.Size) }
func (i archiveFileInfo) ModTime() time.Time { return time.Time{} }
func (i archiveFileInfo) IsDir() bool        { return i.st.Kind == rgssad.KindDirectory }
func (i archiveFileInfo) Sys() interface{}   { return nil }
func (i archiveFileInfo) Mode() os.FileMode {
	if i.IsDir() {
		return os.ModeDir | 0555
	}
	return 0444
}

// archiveFile implements webdav.File for a file entry.
type archiveFile struct {
	fs     *archiveWebdavFS
	stream *rgssad.Stream
	info   archiveFileInfo
}

func (f *archiveFile) Read(p []byte) (int, error)              { return f.stream.Read(p) }
func (f *archiveFile) Seek(off int64, whence int) (int64, error) { return f.stream.Seek(off, whence) }
func (f *archiveFile) Close() error                              { return f.stream.Close() }
func (f *archiveFile) Stat() (os.FileInfo, error)                { return f.info, nil }
func (f *archiveFile) Write(p []byte) (int, error)               { return 0, os.ErrPermission }
func (f *archiveFile) Readdir(count int) ([]os.FileInfo, error) {
	return nil, xerrors.Errorf("readdir %s: %w", f.info.name, rgssad.ErrNotAFile)
}

// archiveDirFile implements webdav.File for a directory entry.
type archiveDirFile struct {
	fs      *archiveWebdavFS
	id      rgssad.InodeID
	name    string
	entries []rgssad.DirEntry
	pos     int
}

func (d *archiveDirFile) Read(p []byte) (int, error) {
	return 0, xerrors.Errorf("read %s: %w", d.name, rgssad.ErrIsADirectory)
}
func (d *archiveDirFile) Seek(off int64, whence int) (int64, error) {
	return 0, xerrors.Errorf("seek %s: %w", d.name, rgssad.ErrIsADirectory)
}
func (d *archiveDirFile) Close() error { return nil }
func (d *archiveDirFile) Write(p []byte) (int, error) {
	return 0, os.ErrPermission
}
func (d *archiveDirFile) Stat() (os.FileInfo, error) {
	st, err := d.fs.archive.Stat(d.id)
	if err != nil {
		return nil, os.ErrNotExist
	}
	return archiveFileInfo{name: d.name, st: st}, nil
}
func (d *archiveDirFile) Readdir(count int) ([]os.FileInfo, error) {
	var out []os.FileInfo
	remaining := d.entries[d.pos:]
	if count > 0 && count < len(remaining) {
		remaining = remaining[:count]
	}
	for _, e := range remaining {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		st, err := d.fs.archive.Stat(e.Inode)
		if err != nil {
			continue
		}
		out = append(out, archiveFileInfo{name: e.Name, st: st})
	}
	d.pos += len(remaining)
	return out, nil
}
