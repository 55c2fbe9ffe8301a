// treeaudit command line
// Inspects and edits a local revision history
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/nainya/treeaudit/internal/logger"
	"github.com/nainya/treeaudit/pkg/revision"
)

const usage = `usage: treeaudit [-data path] [-color auto|always|never] <command> [flags]

commands:
  log      list revisions and their change records
  commit   append a revision from a JSON patch file
  revert   restore the state of an earlier version
  tree     print the latest document tree
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("treeaudit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataPath := fs.String("data", "./data/treeaudit.log", "Revision log base path")
	colorMode := fs.String("color", "auto", "Colour output: auto, always, never")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "treeaudit: unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	log := logger.NewLogger(logger.Config{Level: *logLevel, Pretty: true})
	store, err := revision.Open(revision.Options{
		Path:   *dataPath,
		Logger: log.Component("store").Zerolog(),
	})
	if err != nil {
		fmt.Fprintf(stderr, "treeaudit: %v\n", err)
		return 1
	}
	defer store.Close()

	e := &env{
		store:  store,
		log:    log,
		out:    stdout,
		colors: newPalette(useColor(*colorMode, stdout)),
	}
	if err := cmd(e, fs.Args()[1:]); err != nil {
		fmt.Fprintf(stderr, "treeaudit %s: %v\n", fs.Arg(0), err)
		return 1
	}
	return 0
}

// useColor resolves the colour mode against the output writer
func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
