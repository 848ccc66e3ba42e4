package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"quillhaven/quill/internal/quote"
)

// BranchSeparator is inserted between adjacent sibling subtrees.
const BranchSeparator = "--- BRANCH ---"

// Renderer turns a node and its accessible descendants into a numbered,
// Markdown-structured document. Structural recursion (parent/child) lives
// here; reference recursion lives in the resolvers — the two cooperate but
// keep separate cycle guards.
type Renderer struct {
	// Children indexes every fetched node by parent ID.
	Children map[int64][]*Node
	// Mode selects marker and envelope wording.
	Mode quote.RenderMode
	// Filter gates which children are descended into.
	Filter Filter
	// Res is the budget resolution, or nil when exporting unconstrained.
	Res *Resolution
	// Present holds the IDs whose content appears somewhere in this
	// document; references to them become cross-reference markers.
	Present map[int64]struct{}
	// Fallback, when set, resolves placeholders the renderer cannot satisfy
	// from Res or Present (unconstrained exports hand these to the direct
	// resolver). When nil, leftovers become inaccessibility markers.
	Fallback func(text string) string
}

// Render emits the subtree rooted at root, numbered from the given index
// path (e.g. [2] renders as "2", children as "2.1", "2.2", ...). Returns
// the rendered text and the number of nodes emitted.
func (r *Renderer) Render(root *Node, path []int) (string, int) {
	var b strings.Builder
	visited := make(map[int64]struct{})
	r.renderNode(&b, root, path, visited)
	return b.String(), len(visited)
}

func (r *Renderer) renderNode(b *strings.Builder, n *Node, path []int, visited map[int64]struct{}) {
	// The parent/child graph is a forest, so revisits cannot happen; skip
	// silently if one does rather than loop.
	if _, ok := visited[n.ID]; ok {
		return
	}
	visited[n.ID] = struct{}{}

	level := len(path)
	if level > 6 {
		level = 6
	}
	fmt.Fprintf(b, "%s %s — %s (%s) · %s\n\n",
		strings.Repeat("#", level), indexLabel(path), n.Author, n.Kind, formatMillis(n.CreatedAt))

	if text := r.renderText(n); text != "" {
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	kids := r.eligibleChildren(n.ID)
	for i, child := range kids {
		if i > 0 {
			b.WriteString(BranchSeparator)
			b.WriteString("\n\n")
		}
		childPath := append(path[:len(path):len(path)], i+1)
		r.renderNode(b, child, childPath, visited)
	}
}

func (r *Renderer) eligibleChildren(id int64) []*Node {
	var out []*Node
	for _, c := range r.Children[id] {
		if !r.Filter.Admits(c) {
			continue
		}
		if r.Res != nil && !r.Res.IsSelected(c.ID) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// renderText substitutes quote placeholders in n's text: embedded targets
// inline, present targets as cross-references, blocked targets as withheld
// markers. Whatever remains goes to the fallback resolver if one is set.
func (r *Renderer) renderText(n *Node) string {
	text := n.Text
	if !quote.HasReferences(text) {
		return text
	}
	var embeds map[int64]Embedded
	if r.Res != nil {
		embeds = r.Res.Embeds[n.ID]
	}
	text = r.substitute(text, embeds, map[int64]struct{}{n.ID: {}})
	if quote.HasReferences(text) && r.Fallback != nil {
		text = r.Fallback(text)
	}
	return text
}

// substitute walks placeholders recursively through nested embeds. path is
// the reference-resolution cycle guard, fresh per top-level node.
func (r *Renderer) substitute(text string, embeds map[int64]Embedded, path map[int64]struct{}) string {
	return quote.ReplaceReferences(text, func(id int64) string {
		if _, ok := path[id]; ok {
			return quote.CircularMarker(id)
		}
		if e, ok := embeds[id]; ok {
			childPath := make(map[int64]struct{}, len(path)+1)
			for p := range path {
				childPath[p] = struct{}{}
			}
			childPath[id] = struct{}{}
			inner := r.substitute(e.Text, embeds, childPath)
			return quote.Envelope(id, e.Author, inner, r.Mode)
		}
		if r.Res != nil {
			if _, ok := r.Res.AIBlocked[id]; ok {
				return quote.BlockedMarker(id)
			}
		}
		if _, ok := r.Present[id]; ok {
			return quote.CrossRefMarker(id)
		}
		if r.Fallback != nil {
			// leave literal; the fallback resolver gets a crack at it
			return quote.Placeholder(id)
		}
		return quote.InaccessibleMarker(id, r.Mode)
	})
}

func indexLabel(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ".")
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}
