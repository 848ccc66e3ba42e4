package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"quillhaven/quill/internal/quote"
	"quillhaven/quill/internal/token"
)

// Lister is the node-listing collaborator: it returns every node owned by
// owner within the half-open window (after, before), any order. Zero window
// bounds mean unbounded.
type Lister interface {
	ListNodes(ctx context.Context, owner int64, after, before int64) ([]*Node, error)
}

// Options controls one export run.
type Options struct {
	// Budget is the token ceiling. Zero or negative means unconstrained.
	Budget int
	// Mode selects the truncation direction when budgeted.
	Mode SortMode
	// RenderMode selects machine or human wrapping for quotes and markers.
	RenderMode quote.RenderMode
	// AIUsage, when non-empty, makes this an AI-facing export: nodes whose
	// tag does not permit the given use are filtered, and quote targets
	// with forbidding tags render as withheld markers.
	AIUsage string
	// CreatedAfter / CreatedBefore bound the candidate window (Unix millis,
	// zero = unbounded). Used for incremental profile building.
	CreatedAfter  int64
	CreatedBefore int64
}

// Result carries the document plus the metadata callers chain on.
type Result struct {
	ExportID     string // correlates runs in logs; not part of the document
	Document     string
	TokenCount   int
	NodeCount    int
	LatestMillis int64 // newest node whose content is in the document, embeds included; 0 if none
}

// Exporter assembles bounded-size export documents. Safe for concurrent use:
// all resolution state is local to one Export call.
type Exporter struct {
	store   Lister
	gateway quote.Gateway
	lookup  LookupFunc
	est     token.Estimator
	logger  *slog.Logger
}

// NewExporter wires the export pipeline. est defaults to the length
// heuristic and logger to slog.Default when nil.
func NewExporter(store Lister, gateway quote.Gateway, lookup LookupFunc, est token.Estimator, logger *slog.Logger) *Exporter {
	if est == nil {
		est = token.Heuristic{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: store, gateway: gateway, lookup: lookup, est: est, logger: logger}
}

// Export fetches the owner's nodes, selects under the budget if one is set,
// and renders every included root oldest-first. The document itself is
// deterministic for identical inputs; run metadata (ExportID) is not part
// of it.
func (e *Exporter) Export(ctx context.Context, owner int64, opts Options) (*Result, error) {
	nodes, err := e.store.ListNodes(ctx, owner, opts.CreatedAfter, opts.CreatedBefore)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}

	filter := Filter{Requester: owner, AIUsage: opts.AIUsage, CreatedBefore: opts.CreatedBefore}
	var admitted []*Node
	byID := make(map[int64]*Node, len(nodes))
	for _, n := range nodes {
		if !filter.Admits(n) {
			continue
		}
		admitted = append(admitted, n)
		byID[n.ID] = n
	}

	children := make(map[int64][]*Node)
	for _, n := range admitted {
		if n.ParentID != nil {
			children[*n.ParentID] = append(children[*n.ParentID], n)
		}
	}

	var res *Resolution
	present := make(map[int64]struct{}, len(admitted))
	budgeted := opts.Budget > 0
	if budgeted {
		cands := make([]Candidate, len(admitted))
		for i, n := range admitted {
			cands[i] = Candidate{
				ID:        n.ID,
				CreatedAt: n.CreatedAt,
				Text:      n.Text,
				RefIDs:    quote.FindReferenceIDs(n.Text),
				Tokens:    e.est.Estimate(n.Text),
			}
		}
		br := NewBudgetResolver(cands, opts.Budget, opts.Mode, opts.AIUsage != "", e.lookup)
		res, err = br.Resolve()
		if err != nil {
			return nil, err
		}
		present = res.Included
		e.logger.Debug("budget resolution",
			"owner", owner,
			"candidates", len(cands),
			"selected", len(res.Selected),
			"embedded", len(res.Included)-len(res.Selected),
			"tokens", res.SelectedTokens)
	} else {
		for _, n := range admitted {
			present[n.ID] = struct{}{}
		}
	}

	roots := displayRoots(admitted, byID, res)

	var fallbackErr error
	var fallback func(string) string
	if e.gateway != nil {
		resolver := quote.NewResolver(e.gateway)
		fallback = func(text string) string {
			resolved, _, rerr := resolver.Resolve(ctx, text, owner, opts.RenderMode, quote.DefaultMaxDepth)
			if rerr != nil {
				if fallbackErr == nil {
					fallbackErr = rerr
				}
				return text
			}
			return resolved
		}
	}

	renderer := &Renderer{
		Children: children,
		Mode:     opts.RenderMode,
		Filter:   filter,
		Res:      res,
		Present:  present,
		Fallback: fallback,
	}

	var b strings.Builder
	writeHeader(&b, owner, opts)

	rendered := 0
	latest := int64(0)
	for i, root := range roots {
		section, count := renderer.Render(root, []int{i + 1})
		b.WriteString(section)
		rendered += count
		if root.CreatedAt > latest {
			latest = root.CreatedAt
		}
	}
	for id := range present {
		if n, ok := byID[id]; ok && n.CreatedAt > latest {
			latest = n.CreatedAt
		}
	}
	if fallbackErr != nil {
		return nil, fmt.Errorf("resolving quotes: %w", fallbackErr)
	}

	nodeCount := rendered
	if res != nil {
		nodeCount = len(res.Included)
	}
	writeFooter(&b, nodeCount, latest)

	doc := b.String()
	result := &Result{
		ExportID:     uuid.NewString(),
		Document:     doc,
		TokenCount:   e.est.Estimate(doc),
		NodeCount:    nodeCount,
		LatestMillis: latest,
	}
	e.logger.Info("export complete",
		"export_id", result.ExportID,
		"owner", owner,
		"nodes", result.NodeCount,
		"tokens", result.TokenCount,
		"budgeted", budgeted)
	return result, nil
}

// displayRoots picks the nodes rendered as top-level sections, oldest first.
// Unconstrained: thread roots. Budgeted: selected nodes whose parent was not
// selected are promoted, so recency-first selection cannot strand a kept
// reply beneath a truncated parent.
func displayRoots(admitted []*Node, byID map[int64]*Node, res *Resolution) []*Node {
	var roots []*Node
	if res == nil {
		for _, n := range admitted {
			if n.ParentID == nil {
				roots = append(roots, n)
			} else if _, ok := byID[*n.ParentID]; !ok {
				// parent filtered out; promote
				roots = append(roots, n)
			}
		}
	} else {
		for _, n := range admitted {
			if !res.IsSelected(n.ID) {
				continue
			}
			if n.ParentID == nil || !res.IsSelected(*n.ParentID) {
				roots = append(roots, n)
			}
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].CreatedAt != roots[j].CreatedAt {
			return roots[i].CreatedAt < roots[j].CreatedAt
		}
		return roots[i].ID < roots[j].ID
	})
	return roots
}

func writeHeader(b *strings.Builder, owner int64, opts Options) {
	fmt.Fprintf(b, "# Export for user %d\n\n", owner)
	if opts.Budget > 0 {
		fmt.Fprintf(b, "Token budget: %d\n", opts.Budget)
	}
	if opts.AIUsage != "" {
		fmt.Fprintf(b, "AI use: %s\n", opts.AIUsage)
	}
	if opts.CreatedAfter > 0 || opts.CreatedBefore > 0 {
		fmt.Fprintf(b, "Window: %d..%d\n", opts.CreatedAfter, opts.CreatedBefore)
	}
	b.WriteString("\n")
}

func writeFooter(b *strings.Builder, nodeCount int, latest int64) {
	fmt.Fprintf(b, "---\n\nEntries: %d", nodeCount)
	if latest > 0 {
		fmt.Fprintf(b, " · Latest: %s", formatMillis(latest))
	}
	b.WriteString("\n")
}
