package storage

import "time"

// Conversation is the catalog row of one merged conversation document.
type Conversation struct {
	Key    string
	Action string
	Group  bool

	FirstAt time.Time
	LastAt  time.Time

	// Path of the merged document, relative to the output directory.
	Path        string
	FileSize    int64
	MediaCount  int
	MediaSize   int64
	MergedCount int

	Participants []Participant
}

// Participant is one phone number of a conversation and the contact it
// resolved to, if any.
type Participant struct {
	PhoneNumber   string
	Name          string
	MatchedNumber string
	MatchLength   int
}

const (
	ChangeAdded   = "added"
	ChangeUpdated = "updated"
)

// Change captures a single catalog write for printing.
type Change struct {
	OccurredAt time.Time
	Key        string
	ChangeType string // added | updated
}
