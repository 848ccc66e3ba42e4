package refgraph

import (
	"sort"

	"quillhaven/quill/internal/quote"
)

// Ref is one quote reference: Source's text quotes Target.
type Ref struct {
	Source int64
	Target int64
}

// Snapshot holds the quote-reference graph with precomputed adjacency.
// Unlike the parent/child forest, this graph is unconstrained and may
// contain self-loops and cycles.
type Snapshot struct {
	Nodes map[int64]struct{}
	Refs  []Ref
	Out   map[int64][]int64 // source -> targets, duplicates preserved
	In    map[int64][]int64 // target -> sources
}

// NewSnapshot builds a Snapshot from known node IDs and references.
func NewSnapshot(nodes []int64, refs []Ref) *Snapshot {
	s := &Snapshot{
		Nodes: make(map[int64]struct{}, len(nodes)),
		Refs:  refs,
		Out:   make(map[int64][]int64),
		In:    make(map[int64][]int64),
	}
	for _, id := range nodes {
		s.Nodes[id] = struct{}{}
	}
	for _, r := range refs {
		s.Out[r.Source] = append(s.Out[r.Source], r.Target)
		s.In[r.Target] = append(s.In[r.Target], r.Source)
	}
	return s
}

// FromTexts scans each node's text for quote placeholders and builds the
// reference graph.
func FromTexts(texts map[int64]string) *Snapshot {
	ids := make([]int64, 0, len(texts))
	for id := range texts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var refs []Ref
	for _, id := range ids {
		for _, target := range quote.FindReferenceIDs(texts[id]) {
			refs = append(refs, Ref{Source: id, Target: target})
		}
	}
	return NewSnapshot(ids, refs)
}

// NodeIDs returns all node IDs in ascending order.
func (s *Snapshot) NodeIDs() []int64 {
	ids := make([]int64, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
