package quote

import (
	"context"
	"strings"
	"testing"
)

// fakeGateway serves quotes from an in-memory map. Absent entries read as
// "not found or not accessible", matching the real gateway contract.
type fakeGateway struct {
	entries map[int64]*Quoted
	calls   int
}

func (g *fakeGateway) Fetch(_ context.Context, ids []int64, _ int64) (map[int64]*Quoted, error) {
	g.calls++
	out := make(map[int64]*Quoted, len(ids))
	for _, id := range ids {
		if q, ok := g.entries[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func entry(id int64, author, text string) *Quoted {
	return &Quoted{ID: id, Text: text, Author: author, OwnerID: 1}
}

func TestResolveSingleReference(t *testing.T) {
	g := &fakeGateway{entries: map[int64]*Quoted{
		7: entry(7, "Ann", "the quoted body"),
	}}
	r := NewResolver(g)

	got, ids, err := r.Resolve(context.Background(), "see {quote:7} for details", 1, Machine, DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "{quote:") {
		t.Errorf("unresolved placeholder left in output: %q", got)
	}
	if !strings.Contains(got, "the quoted body") {
		t.Errorf("quoted content missing from output: %q", got)
	}
	if !strings.Contains(got, `id="7"`) || !strings.Contains(got, `author="Ann"`) {
		t.Errorf("machine envelope missing id/author: %q", got)
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Errorf("resolved ids = %v, want [7]", ids)
	}
}

func TestResolveHumanMode(t *testing.T) {
	g := &fakeGateway{entries: map[int64]*Quoted{
		7: entry(7, "Ann", "quoted body"),
	}}
	r := NewResolver(g)

	got, _, err := r.Resolve(context.Background(), "see {quote:7}", 1, Human, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "quoted from Ann (#7)") {
		t.Errorf("human border missing: %q", got)
	}
}

func TestResolveDepthLimit(t *testing.T) {
	// A's text quotes B, B quotes C. Depth 1 resolves B but leaves
	// {quote:3} literal inside it.
	g := &fakeGateway{entries: map[int64]*Quoted{
		2: entry(2, "Ann", "B says {quote:3}"),
		3: entry(3, "Bob", "C's text"),
	}}
	r := NewResolver(g)

	got, ids, err := r.Resolve(context.Background(), "A says {quote:2}", 1, Machine, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "B says") {
		t.Errorf("first level not resolved: %q", got)
	}
	if !strings.Contains(got, "{quote:3}") {
		t.Errorf("second level should stay literal at depth 1: %q", got)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("resolved ids = %v, want [2]", ids)
	}
}

func TestResolveSelfReference(t *testing.T) {
	g := &fakeGateway{entries: map[int64]*Quoted{
		5: entry(5, "Ann", "I quote myself: {quote:5}"),
	}}
	r := NewResolver(g)

	got, _, err := r.Resolve(context.Background(), "look: {quote:5}", 1, Machine, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, CircularMarker(5)) {
		t.Errorf("expected circular marker, got %q", got)
	}
	if strings.Contains(got, "{quote:") {
		t.Errorf("unresolved placeholder left in output: %q", got)
	}
}

func TestResolveTwoNodeCycle(t *testing.T) {
	g := &fakeGateway{entries: map[int64]*Quoted{
		1: entry(1, "Ann", "one quotes {quote:2}"),
		2: entry(2, "Bob", "two quotes {quote:1}"),
	}}
	r := NewResolver(g)

	got, _, err := r.Resolve(context.Background(), "{quote:1}", 1, Machine, 50)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, CircularMarker(1)) {
		t.Errorf("expected circular marker for re-entered node, got %q", got)
	}
}

func TestResolveDeniedTarget(t *testing.T) {
	g := &fakeGateway{entries: map[int64]*Quoted{}}
	r := NewResolver(g)

	got, ids, err := r.Resolve(context.Background(), "see {quote:9}", 1, Machine, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "[quote:9 unavailable]") {
		t.Errorf("expected machine inaccessible marker, got %q", got)
	}
	if len(ids) != 0 {
		t.Errorf("denied target must not appear in resolved ids: %v", ids)
	}

	got, _, err = r.Resolve(context.Background(), "see {quote:9}", 1, Human, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "(quoted entry unavailable)") {
		t.Errorf("expected human inaccessible marker, got %q", got)
	}
}

func TestResolveRestrictedTarget(t *testing.T) {
	// The gateway reports node 1 as readable but not licensed for the
	// configured AI use; its content must never reach the output, even when
	// the restricted node is quoted indirectly.
	restricted := entry(1, "Ann", "keep me out of models")
	restricted.AIRestricted = true
	g := &fakeGateway{entries: map[int64]*Quoted{
		1: restricted,
		2: entry(2, "Bob", "fine, but see {quote:1}"),
	}}
	r := NewResolver(g)

	got, ids, err := r.Resolve(context.Background(), "see {quote:2}", 1, Machine, 3)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "keep me out of models") {
		t.Errorf("restricted content leaked: %q", got)
	}
	if !strings.Contains(got, BlockedMarker(1)) {
		t.Errorf("expected blocked marker, got %q", got)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("restricted target must not count as resolved: %v", ids)
	}
}

func TestResolveBatchesPerLevel(t *testing.T) {
	// Three-level chain: one gateway round-trip per level, not per quote.
	g := &fakeGateway{entries: map[int64]*Quoted{
		1: entry(1, "a", "x {quote:3} y {quote:4}"),
		2: entry(2, "b", "z {quote:5}"),
		3: entry(3, "c", "three"),
		4: entry(4, "d", "four"),
		5: entry(5, "e", "five {quote:6}"),
		6: entry(6, "f", "six"),
	}}
	r := NewResolver(g)

	_, ids, err := r.Resolve(context.Background(), "{quote:1} {quote:2}", 1, Machine, 3)
	if err != nil {
		t.Fatal(err)
	}
	if g.calls != 3 {
		t.Errorf("gateway calls = %d, want 3 (one per level)", g.calls)
	}
	if len(ids) != 6 {
		t.Errorf("resolved %d ids, want 6: %v", len(ids), ids)
	}
}

func TestResolveNoReferences(t *testing.T) {
	g := &fakeGateway{}
	r := NewResolver(g)

	got, ids, err := r.Resolve(context.Background(), "plain text", 1, Machine, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got != "plain text" || len(ids) != 0 {
		t.Errorf("Resolve(plain) = %q, %v", got, ids)
	}
	if g.calls != 0 {
		t.Errorf("gateway should not be called for reference-free text")
	}
}

func TestResolveZeroDepth(t *testing.T) {
	g := &fakeGateway{entries: map[int64]*Quoted{7: entry(7, "a", "x")}}
	r := NewResolver(g)

	got, _, err := r.Resolve(context.Background(), "see {quote:7}", 1, Machine, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != "see {quote:7}" {
		t.Errorf("depth 0 must leave text unchanged, got %q", got)
	}
}

func TestResolveDuplicateOccurrences(t *testing.T) {
	g := &fakeGateway{entries: map[int64]*Quoted{
		3: entry(3, "Ann", "body"),
	}}
	r := NewResolver(g)

	got, ids, err := r.Resolve(context.Background(), "{quote:3} and again {quote:3}", 1, Machine, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(got, "body"); n != 2 {
		t.Errorf("both occurrences must be substituted, found %d", n)
	}
	if len(ids) != 1 {
		t.Errorf("resolved ids deduplicated, got %v", ids)
	}
}
