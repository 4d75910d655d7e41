package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogtopus/rgssad-fuse/internal/env"
)

func defaultArchive() string { return env.DefaultArchive }

var debug = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")

// interruptibleContext returns a context which is canceled when the program
// receives SIGINT or SIGTERM, so long-running subcommands (mount, webdav)
// can shut down cleanly instead of leaving a stale FUSE mount behind.
func interruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		signal.Stop(sig)
		canc()
	}()
	return ctx, canc
}

const helpText = `rgssadfs [-flags] <command> [-flags] <args>

Inspect and extract RPG Maker RGSSAD/RGSS2A/RGSS3A and Fux2Pack archives.

Commands:
	ls       - list the contents of an archive
	cat      - print one archive entry's decrypted contents to stdout
	verify   - decrypt every entry and report corruption
	export   - extract an archive to a directory, cpio archive, or cpio.gz
	mount    - mount an archive read-only as a FUSE filesystem
	webdav   - serve an archive read-only over WebDAV

To get help on any command, use rgssadfs <command> -help.
`

func funcmain() error {
	flag.Parse()

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"ls":     {cmdLs},
		"cat":    {cmdCat},
		"verify": {cmdVerify},
		"export": {cmdExport},
		"mount":  {cmdMount},
		"webdav": {cmdWebdav},
	}

	args := flag.Args()
	if len(args) == 0 || args[0] == "help" || args[0] == "-help" || args[0] == "--help" {
		fmt.Fprint(os.Stderr, helpText)
		if len(args) == 0 {
			os.Exit(2)
		}
		return nil
	}

	verb, args := args[0], args[1:]
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintln(os.Stderr, "syntax: rgssadfs <command> [options]")
		os.Exit(2)
	}

	ctx, canc := interruptibleContext()
	defer canc()

	if err := v.fn(ctx, args); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}
	return nil
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
