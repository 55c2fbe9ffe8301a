package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nainya/treeaudit/internal/logger"
	"github.com/nainya/treeaudit/pkg/audit"
	"github.com/nainya/treeaudit/pkg/changes"
	"github.com/nainya/treeaudit/pkg/document"
	"github.com/nainya/treeaudit/pkg/patch"
	"github.com/nainya/treeaudit/pkg/revision"
	"github.com/nainya/treeaudit/pkg/search"
)

type env struct {
	store  *revision.Store
	log    *logger.Logger
	out    io.Writer
	colors *palette
}

type command func(e *env, args []string) error

var commands = map[string]command{
	"log":    runLog,
	"commit": runCommit,
	"revert": runRevert,
	"tree":   runTree,
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func (e *env) index() (*audit.Index, error) {
	revs, err := e.store.ListRevisions()
	if err != nil {
		return nil, err
	}
	builder := changes.NewBuilder(e.store, changes.WithLogger(e.log.Component("changes").Zerolog()))
	return audit.NewIndex(revs, builder), nil
}

func runLog(e *env, args []string) error {
	fs := newFlagSet("log")
	query := fs.String("q", "", "Filter revisions and change records")
	version := fs.Int("v", 0, "Show the change records of one version")
	all := fs.Bool("a", false, "Show change records of every revision")
	if err := fs.Parse(args); err != nil {
		return err
	}

	idx, err := e.index()
	if err != nil {
		return err
	}

	if *version > 0 {
		if _, err := idx.Expand(*version); err != nil {
			return err
		}
		if err := idx.SetQuery(*version, *query); err != nil {
			return err
		}
		rev, err := e.store.Get(*version)
		if err != nil {
			return err
		}
		records, _ := idx.CachedRecords(*version)
		visible, err := idx.VisibleRecords(*version)
		if err != nil {
			return err
		}
		writeRevision(e.out, e.colors, rev, search.Counter(len(visible), len(records)))
		writeRecords(e.out, e.colors, visible)
		return nil
	}

	// A one-shot listing has no expansion history, so build every record
	// up front when they are shown or searched.
	if *all || search.Normalize(*query) != "" {
		for _, entry := range idx.Entries() {
			if _, err := idx.Records(entry.Revision.Version); err != nil {
				return err
			}
		}
	}

	res := search.FilterRevisions(idx, search.FilterState{Query: *query})
	for _, m := range res.Matches {
		writeRevision(e.out, e.colors, m.Revision, "")
		if *all || (!m.MetadataMatch && m.Records != nil) {
			writeRecords(e.out, e.colors, m.Records)
		}
	}
	if res.Label != "" {
		fmt.Fprintln(e.out, e.colors.dim("%s revisions", res.Label))
	}
	return nil
}

func runCommit(e *env, args []string) error {
	fs := newFlagSet("commit")
	author := fs.String("author", os.Getenv("USER"), "Revision author")
	message := fs.String("m", "", "Revision message")
	patchFile := fs.String("patch", "", "JSON patch file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *patchFile == "" {
		return errors.New("-patch is required")
	}
	if *author == "" {
		return errors.New("-author is required")
	}

	data, err := readInput(*patchFile)
	if err != nil {
		return err
	}
	ops, err := patch.Decode(data)
	if err != nil {
		return err
	}

	rev, err := e.store.Commit(*author, *message, ops)
	if err != nil {
		return err
	}
	writeRevision(e.out, e.colors, rev, "")
	return nil
}

func runRevert(e *env, args []string) error {
	fs := newFlagSet("revert")
	version := fs.Int("v", 0, "Version to restore")
	author := fs.String("author", os.Getenv("USER"), "Revision author")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version <= 0 {
		return errors.New("-v is required")
	}

	result, err := e.store.Revert(*version, *author)
	if !result.Success {
		if err != nil {
			return err
		}
		return errors.New(result.Reason)
	}
	rev, err := e.store.Get(result.Version)
	if err != nil {
		return err
	}
	writeRevision(e.out, e.colors, rev, "")
	return nil
}

func runTree(e *env, args []string) error {
	fs := newFlagSet("tree")
	query := fs.String("q", "", "Keep nodes whose title or content matches")
	at := fs.Int("at", 0, "Version to show, latest when 0")
	if err := fs.Parse(args); err != nil {
		return err
	}

	version := e.store.Latest()
	if *at > 0 {
		version = *at
	}
	snap, err := e.store.SnapshotAt(version)
	if err != nil {
		return err
	}
	doc, err := document.FromSnapshot(snap)
	if err != nil {
		return err
	}

	state := search.FilterState{Query: *query}
	res := search.FilterDocument(doc, state)
	writeTree(e.out, e.colors, res.Nodes, state.Normalized())
	if res.Label != "" {
		fmt.Fprintln(e.out, e.colors.dim("%s nodes", res.Label))
	}
	if len(doc.Pending) > 0 {
		fmt.Fprintln(e.out, e.colors.header("pending"))
		writeTree(e.out, e.colors, doc.Pending, state.Normalized())
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
