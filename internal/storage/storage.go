package storage

import "time"

// Event represents a single answered question. Records are appended in
// chronological order; capacity short-circuits are never recorded because the
// question was not answered.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Route     string    `json:"route"`
}

// Recorder abstracts persistence of interaction events.
// Implementations can be file-based, database, etc.
// LoadInteractions should return events in chronological order.
// AppendInteraction should atomically append a new event.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
