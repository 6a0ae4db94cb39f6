package models

import "time"

// Fact represents a piece of long-term information with its metadata.
type Fact struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Text      string            `json:"text"`
	Vector    []float32         `json:"vector,omitempty"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ScoredFact pairs a fact with its cosine similarity to a query vector.
type ScoredFact struct {
	Fact       *Fact   `json:"fact"`
	Similarity float32 `json:"similarity"`
}
