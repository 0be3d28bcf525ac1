package schema

import "time"

// ArticleState is the lifecycle stage of an Article. Transitions are
// enforced by the store, never by callers.
type ArticleState string

const (
	StateDiscovered ArticleState = "discovered"
	StateClaimed    ArticleState = "claimed"
	StateLoaded     ArticleState = "loaded"
	StateProcessed  ArticleState = "processed"
	StateFailed     ArticleState = "failed"
)

// stateRank gives each state a monotonic rank so the store can refuse to
// regress a state on upsert. claimed and discovered share a rank since
// claim/reclaim cycles between them freely; loaded/processed/failed only
// move forward.
var stateRank = map[ArticleState]int{
	StateDiscovered: 0,
	StateClaimed:    0,
	StateLoaded:     1,
	StateProcessed:  2,
	StateFailed:     2,
}

// CanTransition reports whether moving from "from" to "to" is a legal
// forward step (or same-rank reclaim) per the Article state machine.
func CanTransition(from, to ArticleState) bool {
	if from == to {
		return true
	}
	switch from {
	case StateDiscovered:
		return to == StateClaimed
	case StateClaimed:
		return to == StateLoaded || to == StateFailed || to == StateDiscovered
	case StateLoaded:
		return to == StateProcessed || to == StateFailed
	case StateProcessed, StateFailed:
		return false
	default:
		return false
	}
}

// Article is a node uniquely identified by its canonical Title (see
// NormalizeTitle in package parse).
type Article struct {
	Title      string
	URL        string
	Category   string
	WordCount  int
	State      ArticleState
	Depth      int
	ClaimedAt  *time.Time
	RetryCount int
}

// ArticleRef is the lightweight handle returned by ClaimBatch and graph
// traversal queries, enough for a worker to act on without loading the
// full Article record.
type ArticleRef struct {
	Title string
	URL   string
	Depth int
}

// Stats summarizes pack-wide counts for the orchestrator's stop condition
// and monitoring.
type Stats struct {
	Articles   int
	Sections   int
	Entities   int
	Relations  int
	Discovered int
	Claimed    int
	Loaded     int
	Processed  int
	Failed     int
}
