package database

import (
	"time"
)

// Story is the durable unit of the corpus: one deduplicated news event,
// potentially carried by several outlets. Stories are partitioned into
// structurally identical per-country table sets.
type Story struct {
	ID       string
	Title    string
	Content  string
	Language string
	ImageURL string

	// Enrichment fields. Populated together, never partially: a failed
	// enrichment call writes the deterministic fallback values instead.
	TranslatedTitle     string
	Summary             string
	IsClickbait         bool
	IsAd                bool
	Sentiment           string
	PoliticalTone       int
	PoliticalConfidence float64
	GovernmentMentioned bool
	Anger               float64
	Fear                float64
	Joy                 float64
	Sadness             float64
	Surprise            float64
	EmotionalIntensity  float64
	LoadedLanguageScore float64
	SensationalismScore float64

	IsFiltered  bool
	SourceCount int
	CategoryID  string
	PublishedAt time.Time
	ScrapedAt   time.Time

	ViewCount  int
	ShareCount int
	CreatedAt  time.Time
}

// StorySource links a story to one outlet that published coverage of
// it. Created once per (story, outlet) pair, never updated, deleted
// only by cascading story deletion.
type StorySource struct {
	ID         string
	StoryID    string
	SourceName string
	SourceURL  string
	IsPrimary  bool
	AddedAt    time.Time
}

// Category is a shared lookup row, not partitioned per country.
type Category struct {
	ID   string
	Name string
}

// DailyCount is one calendar day's story volume.
type DailyCount struct {
	Day   string // YYYY-MM-DD
	Count int
}
