package store

import (
	"context"
	"database/sql"
	"errors"

	"quillhaven/quill/internal/export"
)

// Node represents a row in the nodes table
type Node struct {
	ID         int64  `json:"id"`
	OwnerID    int64  `json:"owner_id"`
	ParentID   *int64 `json:"parent_id"`
	AuthorKind string `json:"author_kind"` // "human", "ai"
	AuthorName string `json:"author_name"`
	Body       string `json:"body"`
	CreatedAt  int64  `json:"created_at"` // Unix millis
	AIUsage    string `json:"ai_usage"`   // "none", "chat", "train"
	Private    bool   `json:"private"`
}

// ToExport converts a stored row to the engine's node representation.
func (n *Node) ToExport() *export.Node {
	return &export.Node{
		ID:        n.ID,
		OwnerID:   n.OwnerID,
		ParentID:  n.ParentID,
		Author:    n.AuthorName,
		Kind:      n.AuthorKind,
		Text:      n.Body,
		CreatedAt: n.CreatedAt,
		AIUsage:   n.AIUsage,
		Private:   n.Private,
	}
}

const nodeColumns = "id, owner_id, parent_id, author_kind, author_name, body, created_at, ai_usage, private"

// scanNode scans a row into a Node. The row must have all 9 columns in standard order.
func scanNode(scanner interface{ Scan(dest ...any) error }) (Node, error) {
	var n Node
	err := scanner.Scan(
		&n.ID, &n.OwnerID, &n.ParentID, &n.AuthorKind, &n.AuthorName,
		&n.Body, &n.CreatedAt, &n.AIUsage, &n.Private,
	)
	return n, err
}

// GetNode returns a single node by ID, or nil if not found
func (d *DB) GetNode(ctx context.Context, id int64) (*Node, error) {
	row := d.conn.QueryRowContext(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// AddNode inserts a node and returns its assigned ID
func (d *DB) AddNode(ctx context.Context, n *Node) (int64, error) {
	res, err := d.conn.ExecContext(ctx, `
		INSERT INTO nodes (owner_id, parent_id, author_kind, author_name, body, created_at, ai_usage, private)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.OwnerID, n.ParentID, n.AuthorKind, n.AuthorName, n.Body, n.CreatedAt, n.AIUsage, n.Private)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNodes returns every node owned by owner within the open window
// (after, before), zero bounds meaning unbounded. Ordered by created_at
// ascending. Satisfies the export engine's listing collaborator.
func (d *DB) ListNodes(ctx context.Context, owner int64, after, before int64) ([]*export.Node, error) {
	q := "SELECT " + nodeColumns + " FROM nodes WHERE owner_id = ?"
	args := []any{owner}
	if after > 0 {
		q += " AND created_at > ?"
		args = append(args, after)
	}
	if before > 0 {
		q += " AND created_at < ?"
		args = append(args, before)
	}
	q += " ORDER BY created_at ASC, id ASC"

	rows, err := d.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*export.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n.ToExport())
	}
	return nodes, rows.Err()
}
