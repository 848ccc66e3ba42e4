package refgraph

import "sort"

// QuotedNode is a node ranked by how often it is quoted
type QuotedNode struct {
	ID       int64 `json:"id"`
	InDegree int   `json:"in_degree"`
}

// Report contains reference-graph analysis results
type Report struct {
	TotalNodes    int          `json:"total_nodes"`
	TotalRefs     int          `json:"total_refs"`
	NumComponents int          `json:"num_components"`
	Dangling      []Ref        `json:"dangling"` // references to IDs outside the node set
	SelfQuotes    []int64      `json:"self_quotes"`
	Cycles        [][]int64    `json:"cycles"`
	MostQuoted    []QuotedNode `json:"most_quoted"`
}

// Analyze computes components, dangling references, self-quotes, cycles and
// the most-quoted nodes. topN bounds MostQuoted.
func Analyze(snap *Snapshot, topN int) *Report {
	report := &Report{
		TotalNodes: len(snap.Nodes),
		TotalRefs:  len(snap.Refs),
	}
	if len(snap.Nodes) == 0 {
		return report
	}

	ids := snap.NodeIDs()

	// Components over the undirected view, resolvable refs only
	uf := NewUnionFind(ids)
	for _, r := range snap.Refs {
		if r.Source == r.Target {
			report.SelfQuotes = append(report.SelfQuotes, r.Source)
			continue
		}
		if _, ok := snap.Nodes[r.Target]; !ok {
			report.Dangling = append(report.Dangling, r)
			continue
		}
		uf.Union(r.Source, r.Target)
	}
	report.NumComponents = len(uf.Components())

	// Dangling self-quotes to unknown targets still count as dangling
	for _, r := range snap.Refs {
		if r.Source == r.Target {
			if _, ok := snap.Nodes[r.Target]; !ok {
				report.Dangling = append(report.Dangling, r)
			}
		}
	}

	report.Cycles = findCycles(snap, ids)

	// Most-quoted ranking by in-degree
	var quoted []QuotedNode
	for _, id := range ids {
		if deg := len(snap.In[id]); deg > 0 {
			quoted = append(quoted, QuotedNode{ID: id, InDegree: deg})
		}
	}
	sort.Slice(quoted, func(i, j int) bool {
		if quoted[i].InDegree != quoted[j].InDegree {
			return quoted[i].InDegree > quoted[j].InDegree
		}
		return quoted[i].ID < quoted[j].ID
	})
	if topN > 0 && len(quoted) > topN {
		quoted = quoted[:topN]
	}
	report.MostQuoted = quoted

	return report
}

// findCycles runs iterative DFS with three-color marking and reports each
// cycle once, as the node sequence along the back edge. Self-loops count.
func findCycles(snap *Snapshot, ids []int64) [][]int64 {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int64]int, len(ids))
	var cycles [][]int64

	var stack []int64
	onStack := make(map[int64]int) // id -> index in stack

	var dfs func(id int64)
	dfs = func(id int64) {
		color[id] = gray
		onStack[id] = len(stack)
		stack = append(stack, id)

		targets := append([]int64(nil), snap.Out[id]...)
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
		for _, t := range targets {
			if _, ok := snap.Nodes[t]; !ok {
				continue
			}
			switch color[t] {
			case white:
				dfs(t)
			case gray:
				start := onStack[t]
				cycle := append([]int64(nil), stack[start:]...)
				cycles = append(cycles, cycle)
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, id)
		color[id] = black
	}

	for _, id := range ids {
		if color[id] == white {
			dfs(id)
		}
	}
	return cycles
}
