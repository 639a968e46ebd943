package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var _ StoryStore = (*StoryRepository)(nil)

// ErrDuplicateSource marks an insert of a (story, outlet) pair that is
// already recorded. The same outlet carrying a story twice is expected
// during re-fetches and must be distinguishable from real failures.
var ErrDuplicateSource = errors.New("story source already recorded")

// execer is satisfied by both *sql.DB and *sql.Tx so the insert
// statements can run standalone or inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SupportedCountries enumerates the country codes with a provisioned
// table set. Adding a country means adding a migration, not code.
var SupportedCountries = []string{"tr", "az", "us", "gb", "de"}

// StoryRepository is the storage handle for one country's table set.
type StoryRepository struct {
	db           *DB
	storiesTable string
	sourcesTable string
}

// NewStoryRepository returns the handle for the given country code.
func NewStoryRepository(db *DB, country string) (*StoryRepository, error) {
	supported := false
	for _, cc := range SupportedCountries {
		if cc == country {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("unsupported country code: %s", country)
	}

	return &StoryRepository{
		db:           db,
		storiesTable: "stories_" + country,
		sourcesTable: "story_sources_" + country,
	}, nil
}

// NewStoryStores builds the full country -> storage handle map. Every
// handle implements the same interface; only the tables differ.
func NewStoryStores(db *DB) (map[string]StoryStore, error) {
	stores := make(map[string]StoryStore, len(SupportedCountries))
	for _, cc := range SupportedCountries {
		repo, err := NewStoryRepository(db, cc)
		if err != nil {
			return nil, err
		}
		stores[cc] = repo
	}
	return stores, nil
}

func (r *StoryRepository) InsertStory(ctx context.Context, story *Story) error {
	return r.insertStory(ctx, r.db, story)
}

// InsertStoryWithPrimarySource persists a story together with its
// primary source row in one transaction. Either both rows exist
// afterwards or neither does; a story must never be visible without
// its owning source.
func (r *StoryRepository) InsertStoryWithPrimarySource(ctx context.Context, story *Story, source *StorySource) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.insertStory(ctx, tx, story); err != nil {
		return err
	}
	if err := r.insertSource(ctx, tx, source); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit story insert: %w", err)
	}

	return nil
}

func (r *StoryRepository) insertStory(ctx context.Context, ex execer, story *Story) error {
	var categoryID any
	if story.CategoryID != "" {
		categoryID = story.CategoryID
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO `+r.storiesTable+` (
			id, title, content, language, image_url,
			translated_title, summary, is_clickbait, is_ad,
			sentiment, political_tone, political_confidence, government_mentioned,
			anger, fear, joy, sadness, surprise,
			emotional_intensity, loaded_language_score, sensationalism_score,
			is_filtered, source_count, category_id, published_at, scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, story.ID, story.Title, story.Content, story.Language, story.ImageURL,
		story.TranslatedTitle, story.Summary, story.IsClickbait, story.IsAd,
		story.Sentiment, story.PoliticalTone, story.PoliticalConfidence, story.GovernmentMentioned,
		story.Anger, story.Fear, story.Joy, story.Sadness, story.Surprise,
		story.EmotionalIntensity, story.LoadedLanguageScore, story.SensationalismScore,
		story.IsFiltered, story.SourceCount, categoryID, story.PublishedAt, story.ScrapedAt)

	if err != nil {
		return fmt.Errorf("failed to insert story: %w", err)
	}

	return nil
}

// InsertSource records one outlet carrying a story. A pair already on
// record returns ErrDuplicateSource instead of a constraint failure.
func (r *StoryRepository) InsertSource(ctx context.Context, source *StorySource) error {
	return r.insertSource(ctx, r.db, source)
}

func (r *StoryRepository) insertSource(ctx context.Context, ex execer, source *StorySource) error {
	result, err := ex.ExecContext(ctx, `
		INSERT INTO `+r.sourcesTable+` (id, story_id, source_name, source_url, is_primary, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (story_id, source_name) DO NOTHING
	`, source.ID, source.StoryID, source.SourceName, source.SourceURL, source.IsPrimary, source.AddedAt)

	if err != nil {
		return fmt.Errorf("failed to insert story source: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: story %s, outlet %s", ErrDuplicateSource, source.StoryID, source.SourceName)
	}

	return nil
}

// IncrementSourceCount bumps source_count by one, atomically in the
// database rather than read-modify-write.
func (r *StoryRepository) IncrementSourceCount(ctx context.Context, storyID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE `+r.storiesTable+` SET source_count = source_count + 1 WHERE id = ?
	`, storyID)
	if err != nil {
		return fmt.Errorf("failed to increment source count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("story not found: %s", storyID)
	}

	return nil
}

const storyColumns = `id, title, content, language, image_url,
	translated_title, summary, is_clickbait, is_ad,
	sentiment, political_tone, political_confidence, government_mentioned,
	anger, fear, joy, sadness, surprise,
	emotional_intensity, loaded_language_score, sensationalism_score,
	is_filtered, source_count, COALESCE(category_id, ''), published_at, scraped_at,
	view_count, share_count, created_at`

// RecentStories returns stories scraped at or after since, newest
// first, capped at limit. This is the dedup candidate window.
func (r *StoryRepository) RecentStories(ctx context.Context, since time.Time, limit int) ([]Story, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+storyColumns+`
		FROM `+r.storiesTable+`
		WHERE scraped_at >= ?
		ORDER BY scraped_at DESC
		LIMIT ?
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent stories: %w", err)
	}
	defer rows.Close()

	return scanStories(rows)
}

// StoriesSince returns non-filtered stories published at or after since.
func (r *StoryRepository) StoriesSince(ctx context.Context, since time.Time) ([]Story, error) {
	query, args, err := sq.Select(storyColumns).
		From(r.storiesTable).
		Where(sq.GtOrEq{"published_at": since}).
		Where(sq.Eq{"is_filtered": false}).
		OrderBy("published_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get stories since %s: %w", since, err)
	}
	defer rows.Close()

	return scanStories(rows)
}

// DailyCounts groups non-filtered story counts by calendar day over
// [from, to).
func (r *StoryRepository) DailyCounts(ctx context.Context, from, to time.Time) ([]DailyCount, error) {
	query, args, err := sq.Select("date(published_at) AS day", "COUNT(*) AS story_count").
		From(r.storiesTable).
		Where(sq.GtOrEq{"published_at": from}).
		Where(sq.Lt{"published_at": to}).
		Where(sq.Eq{"is_filtered": false}).
		GroupBy("day").
		OrderBy("day").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily counts: %w", err)
	}
	defer rows.Close()

	var counts []DailyCount
	for rows.Next() {
		var dc DailyCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		counts = append(counts, dc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily counts: %w", err)
	}

	return counts, nil
}

// CountForDay returns the non-filtered story count for one calendar day.
func (r *StoryRepository) CountForDay(ctx context.Context, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM `+r.storiesTable+`
		WHERE published_at >= ? AND published_at < ? AND is_filtered = 0
	`, start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stories for day: %w", err)
	}

	return count, nil
}

func scanStories(rows *sql.Rows) ([]Story, error) {
	var stories []Story
	for rows.Next() {
		var s Story
		err := rows.Scan(
			&s.ID, &s.Title, &s.Content, &s.Language, &s.ImageURL,
			&s.TranslatedTitle, &s.Summary, &s.IsClickbait, &s.IsAd,
			&s.Sentiment, &s.PoliticalTone, &s.PoliticalConfidence, &s.GovernmentMentioned,
			&s.Anger, &s.Fear, &s.Joy, &s.Sadness, &s.Surprise,
			&s.EmotionalIntensity, &s.LoadedLanguageScore, &s.SensationalismScore,
			&s.IsFiltered, &s.SourceCount, &s.CategoryID, &s.PublishedAt, &s.ScrapedAt,
			&s.ViewCount, &s.ShareCount, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		stories = append(stories, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story rows: %w", err)
	}

	return stories, nil
}
