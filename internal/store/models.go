package store

import "time"

// Message statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Chat is one conversation bound to a catalog scope and a model provider.
type Chat struct {
	ID        string
	UserID    string
	ScopeID   string
	Provider  string
	CreatedAt time.Time
}

// Message is a single turn in a chat. Metadata holds the JSON-encoded run
// metadata bundle for assistant messages.
type Message struct {
	ID        string
	ChatID    string
	Role      string // human, ai, system
	Content   string
	Status    string
	Metadata  string
	CreatedAt time.Time
}
