package models

// RetrievedContext is the bundle the coordinator hands to prompt construction.
// Degraded is set when semantic retrieval was unavailable (embedding failure
// or timeout); History and Goals are still populated in that case so the
// conversation turn can always proceed.
type RetrievedContext struct {
	History      []Turn            `json:"history"`
	SemanticHits []ScoredFact      `json:"semantic_hits"`
	Goals        map[string]string `json:"goals"`
	Degraded     bool              `json:"degraded"`
}

// MemoryStats summarizes what the memory tiers currently hold for a
// session/user pair. Consumed by the HTTP layer above the core.
type MemoryStats struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	HistoryTurns int    `json:"history_turns"`
	Facts        int    `json:"facts"`
	Goals        int    `json:"goals"`
}
