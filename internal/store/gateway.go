package store

import (
	"context"
	"strings"

	"quillhaven/quill/internal/export"
	"quillhaven/quill/internal/quote"
	"quillhaven/quill/internal/token"
)

// Gateway serves batched quote lookups with privacy enforcement: a node is
// readable when it belongs to the requester or is not marked private.
// Verdicts are final; callers never re-check access. A non-empty aiUse makes
// the gateway AI-facing: readable nodes whose tag forbids that use come back
// marked AIRestricted so resolvers withhold their content.
type Gateway struct {
	db    *DB
	aiUse string
}

// NewGateway builds a gateway for the given intended use. An empty aiUse
// means human-facing: AI-usability tags do not apply.
func NewGateway(db *DB, aiUse string) *Gateway {
	return &Gateway{db: db, aiUse: aiUse}
}

// Fetch implements quote.Gateway. IDs that are missing or unreadable are
// simply absent from the result map.
func (g *Gateway) Fetch(ctx context.Context, ids []int64, requester int64) (map[int64]*quote.Quoted, error) {
	if len(ids) == 0 {
		return map[int64]*quote.Quoted{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, requester)

	rows, err := g.db.conn.QueryContext(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE id IN ("+placeholders+") AND (private = 0 OR owner_id = ?)",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]*quote.Quoted, len(ids))
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out[n.ID] = &quote.Quoted{
			ID:           n.ID,
			Text:         n.Body,
			Author:       n.AuthorName,
			OwnerID:      n.OwnerID,
			AIRestricted: g.aiUse != "" && !aiUsageAllows(n.AIUsage, g.aiUse),
		}
	}
	return out, rows.Err()
}

// LookupFor returns the metadata-lookup callback the budget resolver uses
// for quote targets outside its candidate set. The requester binds privacy;
// aiUse (empty for human-facing exports) binds which AI-usability tags are
// restricted; est prices embedded content.
func (d *DB) LookupFor(requester int64, aiUse string, est token.Estimator) export.LookupFunc {
	if est == nil {
		est = token.Heuristic{}
	}
	return func(id int64) (*export.RefMeta, error) {
		ctx := context.Background()
		n, err := d.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if n == nil || (n.Private && n.OwnerID != requester) {
			return nil, nil
		}
		return &export.RefMeta{
			Tokens:       est.Estimate(n.Body),
			RefIDs:       quote.FindReferenceIDs(n.Body),
			Text:         n.Body,
			Author:       n.AuthorName,
			AIRestricted: aiUse != "" && !aiUsageAllows(n.AIUsage, aiUse),
		}, nil
	}
}

// aiUsageAllows mirrors the export filter's tag semantics: training
// permission implies chat permission.
func aiUsageAllows(tag, use string) bool {
	switch use {
	case export.AIUsageChat:
		return tag == export.AIUsageChat || tag == export.AIUsageTrain
	case export.AIUsageTrain:
		return tag == export.AIUsageTrain
	}
	return true
}
