package quote

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Quoted is one accessible quote target returned by the gateway.
// AIRestricted means the node exists and is readable, but its AI-usability
// tag forbids the use the gateway was configured for; the resolver withholds
// its content and emits the blocked marker instead.
type Quoted struct {
	ID           int64
	Text         string
	Author       string
	OwnerID      int64
	AIRestricted bool
}

// Gateway answers batched quote lookups. A missing or nil map entry means
// "not found or not accessible to this requester" — the resolver trusts the
// verdict unchanged and never second-guesses privacy.
type Gateway interface {
	Fetch(ctx context.Context, ids []int64, requester int64) (map[int64]*Quoted, error)
}

// RenderMode selects how expanded quotes are wrapped.
type RenderMode int

const (
	// Machine wraps quotes in a parseable envelope carrying id and author.
	Machine RenderMode = iota
	// Human wraps quotes in a bordered, readable block.
	Human
)

// DefaultMaxDepth bounds how many levels of nested quotes Resolve expands
// when the caller passes no explicit depth.
const DefaultMaxDepth = 3

// Resolver expands quote placeholders inline, depth-limited and cycle-safe.
type Resolver struct {
	gateway Gateway
}

func NewResolver(g Gateway) *Resolver {
	return &Resolver{gateway: g}
}

// slot is one placeholder occurrence awaiting expansion. path holds the IDs
// currently being expanded on this occurrence's resolution chain; re-entry
// means a cycle.
type slot struct {
	key  string
	id   int64
	path map[int64]struct{}
}

// Resolve expands every quote placeholder in text, recursively, up to
// maxDepth levels of nesting. Depth counts chain length: depth 1 expands
// only top-level quotes, depth 3 expands quotes nested three levels deep.
// Placeholders beyond maxDepth are left literal. Returns the expanded text
// and the IDs whose content was substituted (deduplicated, in order of
// first expansion); denied, missing, AI-withheld and circular targets
// become inline markers and are not reported as resolved.
//
// The gateway is called once per nesting level, batched over every
// reference discovered at that level.
func (r *Resolver) Resolve(ctx context.Context, text string, requester int64, mode RenderMode, maxDepth int) (string, []int64, error) {
	if maxDepth <= 0 || !HasReferences(text) {
		return text, nil, nil
	}

	var (
		resolvedIDs []int64
		resolvedSet = map[int64]struct{}{}
		nextKey     int
		pending     []slot
	)
	mark := func(id int64, path map[int64]struct{}) string {
		key := fmt.Sprintf("\x00q%d\x00", nextKey)
		nextKey++
		pending = append(pending, slot{key: key, id: id, path: path})
		return key
	}
	sentinelize := func(s string, path map[int64]struct{}) string {
		return ReplaceReferences(s, func(id int64) string { return mark(id, path) })
	}

	doc := sentinelize(text, nil)

	for depth := 1; depth <= maxDepth && len(pending) > 0; depth++ {
		level := pending
		pending = nil

		// One batched gateway round-trip for everything at this level.
		want := map[int64]struct{}{}
		for _, s := range level {
			if _, cyc := s.path[s.id]; !cyc {
				want[s.id] = struct{}{}
			}
		}
		var fetched map[int64]*Quoted
		if len(want) > 0 {
			ids := make([]int64, 0, len(want))
			for id := range want {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			var err error
			fetched, err = r.gateway.Fetch(ctx, ids, requester)
			if err != nil {
				return "", nil, fmt.Errorf("fetching quoted entries: %w", err)
			}
		}

		for _, s := range level {
			var repl string
			if _, cyc := s.path[s.id]; cyc {
				repl = CircularMarker(s.id)
			} else if q := fetched[s.id]; q == nil {
				repl = InaccessibleMarker(s.id, mode)
			} else if q.AIRestricted {
				repl = BlockedMarker(s.id)
			} else {
				if _, seen := resolvedSet[s.id]; !seen {
					resolvedSet[s.id] = struct{}{}
					resolvedIDs = append(resolvedIDs, s.id)
				}
				inner := q.Text
				if depth < maxDepth && HasReferences(inner) {
					childPath := make(map[int64]struct{}, len(s.path)+1)
					for id := range s.path {
						childPath[id] = struct{}{}
					}
					childPath[s.id] = struct{}{}
					inner = sentinelize(inner, childPath)
				}
				repl = Envelope(q.ID, q.Author, inner, mode)
			}
			doc = strings.Replace(doc, s.key, repl, 1)
		}
	}

	return doc, resolvedIDs, nil
}

// Envelope wraps expanded quote content. Machine mode emits a parseable tag
// carrying id and author; Human mode a bordered block. The export renderer
// uses the same wrapping for budget-time embeds so both paths read alike.
func Envelope(id int64, author, inner string, mode RenderMode) string {
	if mode == Human {
		return fmt.Sprintf("\n--- quoted from %s (#%d) ---\n%s\n---\n", author, id, inner)
	}
	return fmt.Sprintf(`<quote id="%d" author=%q>%s</quote>`, id, author, inner)
}
