package export

// AuthorKind values for Node.Kind.
const (
	KindHuman = "human"
	KindAI    = "ai"
)

// AI-usability tags. A tag gates whether the node may appear in AI-facing
// exports: "chat" permits use as chat context, "train" additionally permits
// training use, "none" permits neither.
const (
	AIUsageNone  = "none"
	AIUsageChat  = "chat"
	AIUsageTrain = "train"
)

// Node is a lightweight content unit decoupled from storage types. Text is
// plaintext, already decrypted by the caller. The parent relation forms a
// forest; quote references inside Text form a separate directed graph that
// may contain cycles.
type Node struct {
	ID        int64
	OwnerID   int64
	ParentID  *int64 // nil means thread root
	Author    string // display name
	Kind      string // KindHuman or KindAI
	Text      string
	CreatedAt int64  // Unix millis
	AIUsage   string // AIUsageNone, AIUsageChat or AIUsageTrain
	Private   bool
}

// Filter gates which nodes appear in a rendered tree.
type Filter struct {
	Requester     int64
	AIUsage       string // "" = no AI-usability filtering; otherwise the intended use
	CreatedBefore int64  // exclusive cutoff in Unix millis; 0 = none
}

// Admits reports whether n passes the filter for the requesting user.
func (f Filter) Admits(n *Node) bool {
	if n.Private && n.OwnerID != f.Requester {
		return false
	}
	if f.AIUsage != "" && !aiAllows(n.AIUsage, f.AIUsage) {
		return false
	}
	if f.CreatedBefore > 0 && n.CreatedAt >= f.CreatedBefore {
		return false
	}
	return true
}

// aiAllows reports whether a node tagged tag may be used for the given
// intended use. Training permission implies chat permission.
func aiAllows(tag, use string) bool {
	switch use {
	case AIUsageChat:
		return tag == AIUsageChat || tag == AIUsageTrain
	case AIUsageTrain:
		return tag == AIUsageTrain
	}
	return true
}
