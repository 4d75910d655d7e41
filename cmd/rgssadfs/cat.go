package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/dogtopus/rgssad-fuse/rgssad"
	"golang.org/x/xerrors"
)

const catHelp = `rgssadfs cat [-flags] <archive> <path>

Print one archive entry's decrypted contents to stdout.

Example:
  % rgssadfs cat Game.rgssad Data/Scripts.rvdata2 > Scripts.rvdata2
`

func cmdCat(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("cat", flag.ExitOnError)
	fset.Usage = usage(fset, catHelp)
	fset.Parse(args)
	if fset.NArg() != 2 {
		return xerrors.Errorf("syntax: cat <archive> <path>")
	}
	archivePath, entryPath := fset.Arg(0), fset.Arg(1)

	a, err := rgssad.Open(archivePath)
	if err != nil {
		return xerrors.Errorf("opening %s: %w", archivePath, err)
	}
	defer a.Close()

	id, err := a.LookupPath(entryPath)
	if err != nil {
		return xerrors.Errorf("%s: %w", entryPath, err)
	}
	if a.IsDir(id) {
		return xerrors.Errorf("%s: %w", entryPath, rgssad.ErrIsADirectory)
	}

	s, err := a.OpenEntry(id)
	if err != nil {
		return xerrors.Errorf("opening %s: %w", entryPath, err)
	}
	defer s.Close()

	if _, err := io.Copy(os.Stdout, s); err != nil {
		return xerrors.Errorf("copying %s: %w", entryPath, err)
	}
	return nil
}
