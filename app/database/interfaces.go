package database

import (
	"context"
	"time"
)

// StoryStore is the per-country storage handle. The interface is the
// same for every country; only the underlying table set differs.
type StoryStore interface {
	InsertStory(ctx context.Context, story *Story) error
	InsertStoryWithPrimarySource(ctx context.Context, story *Story, source *StorySource) error
	InsertSource(ctx context.Context, source *StorySource) error
	IncrementSourceCount(ctx context.Context, storyID string) error

	RecentStories(ctx context.Context, since time.Time, limit int) ([]Story, error)
	StoriesSince(ctx context.Context, since time.Time) ([]Story, error)
	DailyCounts(ctx context.Context, from, to time.Time) ([]DailyCount, error)
	CountForDay(ctx context.Context, day time.Time) (int, error)
}

// CategoryStore resolves category names to identifiers.
type CategoryStore interface {
	GetCategoryID(ctx context.Context, name string) (string, error)
}
