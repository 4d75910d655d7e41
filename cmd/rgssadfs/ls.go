package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/dogtopus/rgssad-fuse/rgssad"
	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"
)

const lsHelp = `rgssadfs ls [-flags] [archive] [path]

List the contents of an archive directory (default: /).

Example:
  % rgssadfs ls Game.rgssad Graphics/Pictures
`

func cmdLs(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("ls", flag.ExitOnError)
	var (
		recursive = fset.Bool("r", false, "list subdirectories recursively")
		long      = fset.Bool("l", false, "show kind and size for each entry")
	)
	fset.Usage = usage(fset, lsHelp)
	fset.Parse(args)

	archivePath, dirPath := archiveArg(fset)

	a, err := rgssad.Open(archivePath)
	if err != nil {
		return xerrors.Errorf("opening %s: %w", archivePath, err)
	}
	defer a.Close()

	root, err := a.LookupPath(dirPath)
	if err != nil {
		return xerrors.Errorf("%s: %w", dirPath, err)
	}
	if !a.IsDir(root) {
		return xerrors.Errorf("%s: %w", dirPath, rgssad.ErrNotAFile)
	}

	return lsDir(a, root, dirPath, *recursive, *long)
}

func lsDir(a *rgssad.Archive, id rgssad.InodeID, prefix string, recursive, long bool) error {
	entries, err := a.Readdir(id, 0)
	if err != nil {
		return xerrors.Errorf("readdir %s: %w", prefix, err)
	}

	var names []string
	var subdirs []rgssad.InodeID
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		names = append(names, e.Name)
		if a.IsDir(e.Inode) {
			subdirs = append(subdirs, e.Inode)
		}
	}
	sort.Strings(names)

	if recursive {
		fmt.Printf("%s:\n", prefix)
	}
	printNames(a, id, names, long)

	if recursive {
		for _, e := range entries {
			if e.Name == "." || e.Name == ".." || !a.IsDir(e.Inode) {
				continue
			}
			fmt.Println()
			if err := lsDir(a, e.Inode, path.Join(prefix, e.Name), recursive, long); err != nil {
				return err
			}
		}
	}
	return nil
}

// printNames renders a directory's entry names either one per line (the
// default, and always when long is set or stdout isn't a terminal) or in
// ls(1)-style columns when stdout is an interactive terminal.
func printNames(a *rgssad.Archive, dir rgssad.InodeID, names []string, long bool) {
	if long {
		for _, name := range names {
			id, err := a.Lookup(dir, name)
			if err != nil {
				continue
			}
			st, err := a.Stat(id)
			if err != nil {
				continue
			}
			if st.Kind == rgssad.KindDirectory {
				fmt.Printf("%10s  %s/\n", "-", name)
			} else {
				fmt.Printf("%10d  %s\n", st.Size, name)
			}
		}
		return
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	const colWidth = 24
	const cols = 4
	for i, name := range names {
		fmt.Printf("%-*s", colWidth, name)
		if (i+1)%cols == 0 {
			fmt.Println()
		}
	}
	if len(names)%cols != 0 {
		fmt.Println()
	}
}

// archiveArg parses ls's trailing positional arguments: an archive path (default env.DefaultArchive) and an optional in-archive
// path (default "/").
func archiveArg(fset *flag.FlagSet) (archivePath, innerPath string) {
	switch fset.NArg() {
	case 0:
		return defaultArchive(), "/"
	case 1:
		return fset.Arg(0), "/"
	default:
		return fset.Arg(0), fset.Arg(1)
	}
}
