package models

import "time"

// Goal is a per-user key/value preference or objective.
// Keys are unique per user; concurrent writes to the same key resolve by
// UpdatedAt, most recent wins.
type Goal struct {
	UserID    string    `json:"user_id" bson:"user_id"`
	Key       string    `json:"key" bson:"key"`
	Value     string    `json:"value" bson:"value"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
