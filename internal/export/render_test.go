package export

import (
	"strings"
	"testing"

	"quillhaven/quill/internal/quote"
)

func pid(id int64) *int64 { return &id }

func treeNode(id int64, parent *int64, created int64, text string) *Node {
	return &Node{
		ID:        id,
		OwnerID:   1,
		ParentID:  parent,
		Author:    "Ann",
		Kind:      KindHuman,
		Text:      text,
		CreatedAt: created,
		AIUsage:   AIUsageNone,
	}
}

func childIndex(nodes ...*Node) map[int64][]*Node {
	idx := make(map[int64][]*Node)
	for _, n := range nodes {
		if n.ParentID != nil {
			idx[*n.ParentID] = append(idx[*n.ParentID], n)
		}
	}
	return idx
}

func TestRenderBranchSeparators(t *testing.T) {
	root := treeNode(1, nil, 1000, "root")
	kids := []*Node{
		treeNode(2, pid(1), 2000, "first"),
		treeNode(3, pid(1), 3000, "second"),
		treeNode(4, pid(1), 4000, "third"),
	}
	r := &Renderer{
		Children: childIndex(append(kids, root)...),
		Filter:   Filter{Requester: 1},
	}
	out, count := r.Render(root, []int{1})
	if got := strings.Count(out, BranchSeparator); got != 2 {
		t.Errorf("separator count = %d, want 2", got)
	}
	if count != 4 {
		t.Errorf("rendered %d nodes, want 4", count)
	}

	// one child: no separator
	single := treeNode(10, nil, 1000, "root")
	only := treeNode(11, pid(10), 2000, "only")
	r = &Renderer{Children: childIndex(single, only), Filter: Filter{Requester: 1}}
	out, _ = r.Render(single, []int{1})
	if strings.Contains(out, BranchSeparator) {
		t.Errorf("no separator expected for a single child: %q", out)
	}
}

func TestRenderNumberingAndHeaders(t *testing.T) {
	root := treeNode(1, nil, 1000, "root")
	child := treeNode(2, pid(1), 2000, "reply")
	grand := treeNode(3, pid(2), 3000, "deeper")
	r := &Renderer{Children: childIndex(root, child, grand), Filter: Filter{Requester: 1}}
	out, _ := r.Render(root, []int{1})

	for _, want := range []string{"# 1 —", "## 1.1 —", "### 1.1.1 —"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing header %q in:\n%s", want, out)
		}
	}
}

func TestRenderHeaderLevelCap(t *testing.T) {
	// paths deeper than six levels cap the Markdown header at ######
	nodes := []*Node{treeNode(1, nil, 1000, "")}
	for i := int64(2); i <= 8; i++ {
		nodes = append(nodes, treeNode(i, pid(i-1), int64(i)*1000, ""))
	}
	r := &Renderer{Children: childIndex(nodes...), Filter: Filter{Requester: 1}}
	out, _ := r.Render(nodes[0], []int{1})
	if strings.Contains(out, "#######") {
		t.Errorf("header level must cap at 6:\n%s", out)
	}
	if !strings.Contains(out, "###### 1.1.1.1.1.1.1.1 —") {
		t.Errorf("deep node should render at capped level:\n%s", out)
	}
}

func TestRenderChildrenSortedByCreation(t *testing.T) {
	root := treeNode(1, nil, 1000, "root")
	late := treeNode(2, pid(1), 5000, "late")
	early := treeNode(3, pid(1), 2000, "early")
	r := &Renderer{Children: childIndex(root, late, early), Filter: Filter{Requester: 1}}
	out, _ := r.Render(root, []int{1})
	if strings.Index(out, "early") > strings.Index(out, "late") {
		t.Errorf("children must render oldest first:\n%s", out)
	}
}

func TestRenderStructuralCycleGuard(t *testing.T) {
	// Parent/child cycles cannot happen, but the renderer must not loop if
	// handed one.
	a := treeNode(1, pid(2), 1000, "a")
	b := treeNode(2, pid(1), 2000, "b")
	r := &Renderer{Children: childIndex(a, b), Filter: Filter{Requester: 1}}
	out, count := r.Render(a, []int{1})
	if count != 2 {
		t.Errorf("rendered %d nodes, want 2 (each once)", count)
	}
	if strings.Count(out, "# 1 —") < 1 {
		t.Errorf("root missing: %q", out)
	}
}

func TestRenderFilters(t *testing.T) {
	root := treeNode(1, nil, 1000, "root")
	private := treeNode(2, pid(1), 2000, "secret")
	private.OwnerID = 99
	private.Private = true
	untagged := treeNode(3, pid(1), 3000, "untagged")
	tagged := treeNode(4, pid(1), 4000, "tagged")
	tagged.AIUsage = AIUsageChat
	future := treeNode(5, pid(1), 9000, "future")
	future.AIUsage = AIUsageChat

	r := &Renderer{
		Children: childIndex(root, private, untagged, tagged, future),
		Filter:   Filter{Requester: 1, AIUsage: AIUsageChat, CreatedBefore: 8000},
	}
	out, _ := r.Render(root, []int{1})
	for _, absent := range []string{"secret", "untagged", "future"} {
		if strings.Contains(out, absent) {
			t.Errorf("filtered node %q leaked into output:\n%s", absent, out)
		}
	}
	if !strings.Contains(out, "tagged") {
		t.Errorf("admissible child missing:\n%s", out)
	}
}

func TestRenderEmbedSubstitution(t *testing.T) {
	res := &Resolution{
		Included: map[int64]struct{}{10: {}, 20: {}},
		Embeds: map[int64]map[int64]Embedded{
			10: {20: {Text: "embedded body", Author: "Bob"}},
		},
		AIBlocked: map[int64]struct{}{},
		selected:  map[int64]struct{}{10: {}},
	}
	root := treeNode(10, nil, 1000, "quoting {quote:20} here")
	r := &Renderer{
		Children: map[int64][]*Node{},
		Filter:   Filter{Requester: 1},
		Res:      res,
		Present:  res.Included,
	}
	out, _ := r.Render(root, []int{1})
	if !strings.Contains(out, "embedded body") {
		t.Errorf("embedded content missing:\n%s", out)
	}
	if strings.Contains(out, "{quote:") {
		t.Errorf("unresolved placeholder left:\n%s", out)
	}
}

func TestRenderNestedEmbedCycle(t *testing.T) {
	// 20 and 30 quote each other, both embedded under 10: the re-entry
	// collapses to the circular marker.
	res := &Resolution{
		Included: map[int64]struct{}{10: {}, 20: {}, 30: {}},
		Embeds: map[int64]map[int64]Embedded{
			10: {
				20: {Text: "twenty quotes {quote:30}", Author: "b"},
				30: {Text: "thirty quotes {quote:20}", Author: "c"},
			},
		},
		AIBlocked: map[int64]struct{}{},
		selected:  map[int64]struct{}{10: {}},
	}
	root := treeNode(10, nil, 1000, "see {quote:20}")
	r := &Renderer{Children: map[int64][]*Node{}, Filter: Filter{Requester: 1}, Res: res, Present: res.Included}
	out, _ := r.Render(root, []int{1})
	if !strings.Contains(out, quote.CircularMarker(20)) {
		t.Errorf("expected circular marker:\n%s", out)
	}
	if strings.Contains(out, "{quote:") {
		t.Errorf("unresolved placeholder left:\n%s", out)
	}
}

func TestRenderCrossReferenceMarker(t *testing.T) {
	res := &Resolution{
		Included:  map[int64]struct{}{10: {}, 11: {}},
		Embeds:    map[int64]map[int64]Embedded{},
		AIBlocked: map[int64]struct{}{},
		selected:  map[int64]struct{}{10: {}, 11: {}},
	}
	root := treeNode(10, nil, 1000, "see {quote:11}")
	r := &Renderer{Children: map[int64][]*Node{}, Filter: Filter{Requester: 1}, Res: res, Present: res.Included}
	out, _ := r.Render(root, []int{1})
	if !strings.Contains(out, quote.CrossRefMarker(11)) {
		t.Errorf("expected cross-reference marker:\n%s", out)
	}
}

func TestRenderBlockedMarker(t *testing.T) {
	res := &Resolution{
		Included:  map[int64]struct{}{10: {}},
		Embeds:    map[int64]map[int64]Embedded{},
		AIBlocked: map[int64]struct{}{7: {}},
		selected:  map[int64]struct{}{10: {}},
	}
	root := treeNode(10, nil, 1000, "see {quote:7}")
	r := &Renderer{Children: map[int64][]*Node{}, Filter: Filter{Requester: 1}, Res: res, Present: res.Included}
	out, _ := r.Render(root, []int{1})
	if !strings.Contains(out, quote.BlockedMarker(7)) {
		t.Errorf("expected blocked marker:\n%s", out)
	}
}

func TestRenderInaccessibleWithoutFallback(t *testing.T) {
	res := &Resolution{
		Included:  map[int64]struct{}{10: {}},
		Embeds:    map[int64]map[int64]Embedded{},
		AIBlocked: map[int64]struct{}{},
		selected:  map[int64]struct{}{10: {}},
	}
	root := treeNode(10, nil, 1000, "see {quote:404}")
	r := &Renderer{Children: map[int64][]*Node{}, Filter: Filter{Requester: 1}, Res: res, Present: res.Included}
	out, _ := r.Render(root, []int{1})
	if !strings.Contains(out, quote.InaccessibleMarker(404, quote.Machine)) {
		t.Errorf("expected inaccessible marker:\n%s", out)
	}
}
