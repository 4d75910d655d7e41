// Package env captures details about how rgssadfs locates archives and
// where it writes extracted output, the way `distri env` resolves its
// repository root.
package env

import (
	"os"
	"path/filepath"
)

// DefaultArchive is the archive path used by subcommands that accept no
// explicit path argument. It defaults to $RGSSADFS_ARCHIVE, falling back to
// Game.rgssad in the current directory, the conventional name RPG Maker XP
// and VX projects ship under.
var DefaultArchive = findDefaultArchive()

func findDefaultArchive() string {
	if env := os.Getenv("RGSSADFS_ARCHIVE"); env != "" {
		return env
	}
	return "Game.rgssad"
}

// DefaultExportDir is where the export subcommand writes its output absent
// an explicit -out flag.
var DefaultExportDir = findDefaultExportDir()

func findDefaultExportDir() string {
	if env := os.Getenv("RGSSADFS_EXPORT_DIR"); env != "" {
		return env
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Join(wd, "extracted")
}
