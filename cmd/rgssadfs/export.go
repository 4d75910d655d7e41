package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cavaliercoder/go-cpio"
	"github.com/dogtopus/rgssad-fuse/internal/env"
	"github.com/dogtopus/rgssad-fuse/rgssad"
	"github.com/google/renameio"
	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

const exportHelp = `rgssadfs export [-flags] <archive>

Extract an archive to a directory tree (default), a cpio archive, or a
gzip-compressed cpio archive (-format cpio.gz written to -out).

Example:
  % rgssadfs export -out extracted/ Game.rgssad
  % rgssadfs export -format cpio.gz -out game.cpio.gz Game.rgssad
`

func cmdExport(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("export", flag.ExitOnError)
	var (
		out    = fset.String("out", "", "output directory (format=dir, default: "+env.DefaultExportDir+") or file (format=cpio/cpio.gz, required)")
		format = fset.String("format", "dir", "output format: dir, cpio, or cpio.gz")
	)
	fset.Usage = usage(fset, exportHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: export <archive>")
	}
	archivePath := fset.Arg(0)

	a, err := rgssad.Open(archivePath)
	if err != nil {
		return xerrors.Errorf("opening %s: %w", archivePath, err)
	}
	defer a.Close()

	var paths []string
	if err := walkFiles(a, a.RootInode(), "", &paths); err != nil {
		return err
	}

	switch *format {
	case "dir":
		dir := *out
		if dir == "" {
			dir = env.DefaultExportDir
		}
		return exportDir(a, paths, dir)
	case "cpio":
		return exportCPIO(a, paths, *out, false)
	case "cpio.gz":
		return exportCPIO(a, paths, *out, true)
	default:
		return xerrors.Errorf("unknown -format %q (want dir, cpio, or cpio.gz)", *format)
	}
}

func exportDir(a *rgssad.Archive, paths []string, dir string) error {
	for _, p := range paths {
		dest := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(p, "/")))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return xerrors.Errorf("mkdir for %s: %w", dest, err)
		}
		id, err := a.LookupPath(p)
		if err != nil {
			return xerrors.Errorf("%s: %w", p, err)
		}
		s, err := a.OpenEntry(id)
		if err != nil {
			return xerrors.Errorf("opening %s: %w", p, err)
		}
		if err := writeEntryFile(dest, s); err != nil {
			s.Close()
			return err
		}
		s.Close()
		log.Printf("extracted %s", p)
	}
	return nil
}

// writeEntryFile writes s to dest atomically (github.com/google/renameio),
// so a process killed mid-export never leaves a half-written file behind.
func writeEntryFile(dest string, s io.Reader) error {
	out, err := renameio.TempFile("", dest)
	if err != nil {
		return xerrors.Errorf("creating temp file for %s: %w", dest, err)
	}
	defer out.Cleanup()
	if _, err := io.Copy(out, s); err != nil {
		return xerrors.Errorf("writing %s: %w", dest, err)
	}
	if err := out.CloseAtomicallyReplace(); err != nil {
		return xerrors.Errorf("replacing %s: %w", dest, err)
	}
	return nil
}

func exportCPIO(a *rgssad.Archive, paths []string, out string, gzipped bool) error {
	if out == "" {
		return xerrors.Errorf("export: -out is required for format cpio/cpio.gz")
	}

	tmp, err := renameio.TempFile("", out)
	if err != nil {
		return xerrors.Errorf("creating temp file for %s: %w", out, err)
	}
	defer tmp.Cleanup()

	var w io.Writer = tmp
	var zw *pgzip.Writer
	if gzipped {
		zw = pgzip.NewWriter(tmp)
		w = zw
	}

	cw := cpio.NewWriter(w)
	dirs := map[string]bool{}
	for _, p := range paths {
		rel := strings.TrimPrefix(p, "/")
		if err := mkdirCPIO(cw, dirs, filepath.Dir(rel)); err != nil {
			return err
		}

		id, err := a.LookupPath(p)
		if err != nil {
			return xerrors.Errorf("%s: %w", p, err)
		}
		st, err := a.Stat(id)
		if err != nil {
			return xerrors.Errorf("%s: stat: %w", p, err)
		}
		if err := cw.WriteHeader(&cpio.Header{
			Name: rel,
			Mode: cpio.FileMode(0644),
			Size: int64(st.Size),
		}); err != nil {
			return xerrors.Errorf("writing cpio header for %s: %w", rel, err)
		}
		s, err := a.OpenEntry(id)
		if err != nil {
			return xerrors.Errorf("opening %s: %w", p, err)
		}
		_, err = io.Copy(cw, s)
		s.Close()
		if err != nil {
			return xerrors.Errorf("writing %s into cpio: %w", rel, err)
		}
	}
	if err := cw.Close(); err != nil {
		return xerrors.Errorf("closing cpio writer: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return xerrors.Errorf("closing gzip writer: %w", err)
		}
	}
	if err := tmp.CloseAtomicallyReplace(); err != nil {
		return xerrors.Errorf("replacing %s: %w", out, err)
	}
	return nil
}

func mkdirCPIO(cw *cpio.Writer, seen map[string]bool, dir string) error {
	if dir == "." || dir == "/" || dir == "" || seen[dir] {
		return nil
	}
	if err := mkdirCPIO(cw, seen, filepath.Dir(dir)); err != nil {
		return err
	}
	seen[dir] = true
	return cw.WriteHeader(&cpio.Header{
		Name: dir,
		Mode: cpio.ModeDir | 0755,
	})
}
