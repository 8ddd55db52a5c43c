// Package report renders stored run records as human-readable reports.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/smallnest/runstream/store"
)

// Node is one run within a reconstructed run tree.
type Node struct {
	Record   *store.Record
	Children []*Node
}

// BuildTree reconstructs the run forest from a flat record list. Records
// whose parent is missing from the list become roots themselves, so a
// partial export still renders. Siblings are ordered by start time.
func BuildTree(records []*store.Record) []*Node {
	nodes := make(map[string]*Node, len(records))
	for _, rec := range records {
		nodes[rec.ID.String()] = &Node{Record: rec}
	}

	var roots []*Node
	for _, rec := range records {
		node := nodes[rec.ID.String()]
		if rec.ParentID != nil {
			if parent, ok := nodes[rec.ParentID.String()]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	var sortNodes func(ns []*Node)
	sortNodes = func(ns []*Node) {
		sort.Slice(ns, func(i, j int) bool {
			return ns[i].Record.StartedAt.Before(ns[j].Record.StartedAt)
		})
		for _, n := range ns {
			sortNodes(n.Children)
		}
	}
	sortNodes(roots)
	return roots
}

// RenderMarkdown renders the run forest as a Markdown report: one heading
// per root run, a nested list for its children, and a failure section when
// any run errored.
func RenderMarkdown(roots []*Node) string {
	var sb strings.Builder
	sb.WriteString("# Run Report\n\n")

	if len(roots) == 0 {
		sb.WriteString("No runs recorded.\n")
		return sb.String()
	}

	for _, root := range roots {
		rec := root.Record
		sb.WriteString(fmt.Sprintf("## %s (%s)\n\n", rec.Name, rec.Kind))
		sb.WriteString(fmt.Sprintf("- Run ID: `%s`\n", rec.ID))
		sb.WriteString(fmt.Sprintf("- Duration: %s\n", rec.Duration()))
		if rec.Failed() {
			sb.WriteString(fmt.Sprintf("- Status: FAILED (%s)\n", rec.Error))
		} else {
			sb.WriteString("- Status: ok\n")
		}
		sb.WriteString("\n")

		if len(root.Children) > 0 {
			sb.WriteString("### Steps\n\n")
			for _, child := range root.Children {
				writeNode(&sb, child, 0)
			}
			sb.WriteString("\n")
		}

		if failures := collectFailures(root); len(failures) > 0 {
			sb.WriteString("### Failures\n\n")
			for _, f := range failures {
				sb.WriteString(fmt.Sprintf("- **%s**: %s\n", f.Name, f.Error))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func writeNode(sb *strings.Builder, node *Node, depth int) {
	rec := node.Record
	indent := strings.Repeat("  ", depth)

	status := ""
	if rec.Failed() {
		status = " ✗"
	}
	sb.WriteString(fmt.Sprintf("%s- %s `%s` (%s)%s\n", indent, rec.Name, rec.Kind, rec.Duration(), status))

	for _, child := range node.Children {
		writeNode(sb, child, depth+1)
	}
}

func collectFailures(node *Node) []*store.Record {
	var failures []*store.Record
	if node.Record.Failed() {
		failures = append(failures, node.Record)
	}
	for _, child := range node.Children {
		failures = append(failures, collectFailures(child)...)
	}
	return failures
}

// RenderHTML converts the Markdown report to sanitized HTML, safe to embed
// in a dashboard. Run names and error strings are user-controlled, so the
// output goes through a UGC sanitization policy.
func RenderHTML(roots []*Node) string {
	md := RenderMarkdown(roots)

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	htmlFlags := html.CommonFlags
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	rendered := markdown.Render(doc, renderer)

	return string(bluemonday.UGCPolicy().SanitizeBytes(rendered))
}
