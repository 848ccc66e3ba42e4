package export

import (
	"fmt"
	"sort"
)

// Candidate is one node offered to the budget resolver: pre-fetched, with
// reference IDs already extracted and token cost already estimated.
type Candidate struct {
	ID        int64
	CreatedAt int64 // Unix millis
	Text      string
	RefIDs    []int64
	Tokens    int
}

// RefMeta is what the metadata-lookup callback returns for a quote target.
// Unlike the candidate list, the callback can reach nodes outside the
// candidate set entirely (other owners, filtered tags).
type RefMeta struct {
	Tokens       int
	RefIDs       []int64
	Text         string
	Author       string
	AIRestricted bool // target exists but its tag forbids AI-facing use
}

// LookupFunc resolves metadata for a quote target. A nil result with nil
// error means "not found or not accessible".
type LookupFunc func(id int64) (*RefMeta, error)

// Embedded is one quote target whose content was pulled inline because it
// did not survive truncation on its own.
type Embedded struct {
	Text   string
	Author string
}

// SortMode selects the truncation direction.
type SortMode int

const (
	// NewestFirst keeps the most recent candidates (normal truncation).
	NewestFirst SortMode = iota
	// OldestFirst keeps the earliest candidates (iterative mode, used when
	// building content incrementally oldest-to-newest).
	OldestFirst
)

// Resolution is the outcome of a budget resolution pass.
type Resolution struct {
	// Included holds every node whose content is present in the export,
	// whether independently selected or embedded under a referencing node.
	Included map[int64]struct{}
	// Selected lists the budgeted candidates in selection order.
	Selected []int64
	// Embeds maps an included node to the quote targets embedded inline in
	// its rendering. Flattened: one included node carries its entire
	// embedded chain, however deep.
	Embeds map[int64]map[int64]Embedded
	// AIBlocked holds targets that exist but were withheld because their
	// AI-usability tag forbids AI-facing embedding.
	AIBlocked map[int64]struct{}
	// SelectedTokens is the cumulative estimated cost of Selected.
	SelectedTokens int

	selected map[int64]struct{}
}

// IsSelected reports whether id survived truncation on its own (as opposed
// to being present only via embedding). Structural rendering follows
// selection; embedded-only nodes appear inline where they are quoted.
func (r *Resolution) IsSelected(id int64) bool {
	_, ok := r.selected[id]
	return ok
}

// BudgetResolver chooses which candidates fit in a token budget and
// guarantees every surviving quote reference is satisfiable at render time.
type BudgetResolver struct {
	candidates []Candidate
	budget     int
	mode       SortMode
	aiFacing   bool
	lookup     LookupFunc

	res *Resolution // memoized; Resolve is idempotent
}

func NewBudgetResolver(candidates []Candidate, budget int, mode SortMode, aiFacing bool, lookup LookupFunc) *BudgetResolver {
	return &BudgetResolver{
		candidates: candidates,
		budget:     budget,
		mode:       mode,
		aiFacing:   aiFacing,
		lookup:     lookup,
	}
}

// Resolve runs selection and embedding. Calling it again returns the same
// Resolution. Truncation is not an error; only lookup failures propagate.
func (r *BudgetResolver) Resolve() (*Resolution, error) {
	if r.res != nil {
		return r.res, nil
	}

	res := &Resolution{
		Included:  make(map[int64]struct{}),
		Embeds:    make(map[int64]map[int64]Embedded),
		AIBlocked: make(map[int64]struct{}),
		selected:  make(map[int64]struct{}),
	}

	order := make([]Candidate, len(r.candidates))
	copy(order, r.candidates)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if r.mode == OldestFirst {
			if a.CreatedAt != b.CreatedAt {
				return a.CreatedAt < b.CreatedAt
			}
			return a.ID < b.ID
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID > b.ID
	})

	// Selection: single contiguous cut, no gaps. A budget of zero or less
	// admits nothing.
	if r.budget > 0 {
		cum := 0
		for _, c := range order {
			if cum+c.Tokens > r.budget {
				break
			}
			cum += c.Tokens
			res.Included[c.ID] = struct{}{}
			res.selected[c.ID] = struct{}{}
			res.Selected = append(res.Selected, c.ID)
		}
		res.SelectedTokens = cum
	}

	// Embedding: every reference leaving the included set pulls its target's
	// content inline, recursively, flattened onto the referencing candidate.
	for _, c := range order {
		if _, ok := res.Included[c.ID]; !ok {
			continue
		}
		if len(c.RefIDs) == 0 {
			continue
		}
		visited := map[int64]struct{}{c.ID: {}}
		for _, ref := range c.RefIDs {
			if err := r.embed(res, c.ID, ref, visited); err != nil {
				return nil, err
			}
		}
	}

	r.res = res
	return res, nil
}

// embed pulls the target's content into res.Embeds[top] unless it is already
// present in the export. visited is per top-level candidate and guards
// reference cycles; a re-entered ID is simply left to the renderer's own
// cycle guard, which shows the circular marker at the occurrence.
func (r *BudgetResolver) embed(res *Resolution, top, id int64, visited map[int64]struct{}) error {
	if _, ok := res.Included[id]; ok {
		return nil
	}
	if _, ok := visited[id]; ok {
		return nil
	}
	visited[id] = struct{}{}

	meta, err := r.lookup(id)
	if err != nil {
		return fmt.Errorf("looking up quoted entry %d: %w", id, err)
	}
	if meta == nil {
		// missing or denied; renders as an inaccessibility marker
		return nil
	}
	if r.aiFacing && meta.AIRestricted {
		res.AIBlocked[id] = struct{}{}
		return nil
	}

	if res.Embeds[top] == nil {
		res.Embeds[top] = make(map[int64]Embedded)
	}
	res.Embeds[top][id] = Embedded{Text: meta.Text, Author: meta.Author}
	res.Included[id] = struct{}{}

	for _, ref := range meta.RefIDs {
		if err := r.embed(res, top, ref, visited); err != nil {
			return err
		}
	}
	return nil
}
