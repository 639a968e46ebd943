package feed

import (
	"time"
)

// Metadata describes the feed itself, not its entries.
type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

// Candidate is a normalized feed entry. Candidates are ephemeral: the
// ingestion pipeline consumes them immediately and either merges them
// into an existing story or creates a new one.
type Candidate struct {
	GUID           string
	Title          string
	Link           string
	RawDescription string
	RawContentHTML string
	PublishedAt    *time.Time
	ImageURL       string
}
