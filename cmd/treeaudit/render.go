package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/nainya/treeaudit/pkg/changes"
	"github.com/nainya/treeaudit/pkg/document"
	"github.com/nainya/treeaudit/pkg/revision"
)

type sprintf func(string, ...any) string

// palette colours output by change class
type palette struct {
	plain    sprintf
	header   sprintf
	dim      sprintf
	byClass  map[changes.Class]sprintf
	matchHit sprintf
}

func newPalette(enabled bool) *palette {
	p := &palette{
		plain:    fmt.Sprintf,
		header:   fmt.Sprintf,
		dim:      fmt.Sprintf,
		matchHit: fmt.Sprintf,
		byClass:  map[changes.Class]sprintf{},
	}
	if !enabled {
		return p
	}
	p.header = colorFunc(color.Bold)
	p.dim = colorFunc(color.Faint)
	p.matchHit = colorFunc(color.FgYellow, color.Bold)
	p.byClass[changes.ClassAdd] = colorFunc(color.FgGreen)
	p.byClass[changes.ClassRemove] = colorFunc(color.FgRed)
	p.byClass[changes.ClassReplace] = colorFunc(color.FgYellow)
	p.byClass[changes.ClassMove] = colorFunc(color.FgBlue)
	p.byClass[changes.ClassCopy] = colorFunc(color.FgCyan)
	p.byClass[changes.ClassIgnore] = colorFunc(color.Faint)
	p.byClass[changes.ClassError] = colorFunc(color.FgRed, color.Bold)
	return p
}

// colorFunc builds a formatter that colours regardless of the global
// NoColor detection, which looks at os.Stdout rather than our writer
func colorFunc(attrs ...color.Attribute) sprintf {
	c := color.New(attrs...)
	c.EnableColor()
	return c.SprintfFunc()
}

func (p *palette) class(c changes.Class) sprintf {
	if f, ok := p.byClass[c]; ok {
		return f
	}
	return p.plain
}

func writeRevision(w io.Writer, p *palette, rev revision.Revision, label string) {
	ts := ""
	if !rev.Timestamp.IsZero() {
		ts = rev.Timestamp.Format(changes.TimeLayout)
	}
	line := p.header("v%d", rev.Version)
	if ts != "" {
		line += " " + p.dim("%s", ts)
	}
	if rev.Author != "" {
		line += " " + rev.Author
	}
	if rev.Message != "" {
		line += "  " + rev.Message
	}
	if label != "" {
		line += " " + p.dim("(%s)", label)
	}
	fmt.Fprintln(w, line)
}

func writeRecords(w io.Writer, p *palette, records []changes.Record) {
	for _, r := range records {
		mark := p.class(r.Class)("%-7s", r.Class)
		fmt.Fprintf(w, "  %s %s\n", mark, r.Action)
		if r.PreviousValue != "" || r.CurrentValue != "" {
			fmt.Fprintf(w, "          %s %s %s\n", p.dim("%s", r.PreviousValue), p.dim("→"), r.CurrentValue)
		}
	}
}

func writeTree(w io.Writer, p *palette, nodes []*document.Node, query string) {
	document.Walk(nodes, func(n *document.Node, hid string, depth int) bool {
		title := n.DisplayTitle()
		if query != "" && n.Matches(query) {
			title = p.matchHit("%s", title)
		}
		fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), p.dim("%s", hid), title)
		return true
	})
}
