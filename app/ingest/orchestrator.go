// Package ingest runs the per-source pipeline: normalize the feed,
// merge duplicates into existing stories, enrich novel items, persist.
package ingest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/ekaracan/newspulse/app/ai"
	"github.com/ekaracan/newspulse/app/database"
	"github.com/ekaracan/newspulse/app/feed"
	"github.com/ekaracan/newspulse/app/sources"
	"github.com/ekaracan/newspulse/app/textmatch"
)

const (
	// Dedup candidate window: only same-day coverage of an event should
	// merge, and the window is capped to bound per-cycle cost.
	dedupWindow      = 24 * time.Hour
	dedupWindowLimit = 100

	// Fairness/cost cap, not a correctness requirement.
	maxItemsPerCycle = 10

	// Below this many characters of entry text the article page is
	// fetched for readable content before enrichment.
	thinContentLimit = 80
)

// Result aggregates one source's per-cycle counters.
type Result struct {
	Processed  int
	Duplicates int
	Filtered   int
}

func (r *Result) Add(other Result) {
	r.Processed += other.Processed
	r.Duplicates += other.Duplicates
	r.Filtered += other.Filtered
}

// FeedFetcher normalizes one source's feed.
type FeedFetcher interface {
	Run(ctx context.Context, url string) (*feed.Metadata, []feed.Candidate, error)
}

// Enricher supplies AI-derived story fields.
type Enricher interface {
	EnrichStory(ctx context.Context, title, content string, opts ai.Options) (*ai.Enrichment, error)
}

// ContentExtractor pulls readable text from an article page.
type ContentExtractor interface {
	Run(ctx context.Context, pageURL string) (string, error)
}

// Orchestrator drives the pipeline for a single source descriptor.
type Orchestrator struct {
	fetcher    FeedFetcher
	enricher   Enricher
	extractor  ContentExtractor
	stores     map[string]database.StoryStore
	categories database.CategoryStore
	threshold  float64
	now        func() time.Time
}

func NewOrchestrator(fetcher FeedFetcher, enricher Enricher, extractor ContentExtractor,
	stores map[string]database.StoryStore, categories database.CategoryStore) *Orchestrator {
	return &Orchestrator{
		fetcher:    fetcher,
		enricher:   enricher,
		extractor:  extractor,
		stores:     stores,
		categories: categories,
		threshold:  textmatch.DefaultThreshold,
		now:        time.Now,
	}
}

// IngestSource runs one full cycle for one source. An empty feed is a
// zero-activity result, not an error. Failures of a single item are
// logged and skipped; they never abort the remaining items.
func (o *Orchestrator) IngestSource(ctx context.Context, source *sources.Source) (Result, error) {
	var result Result

	store, ok := o.stores[source.Country]
	if !ok {
		return result, fmt.Errorf("source %s: no store for country %s", source.ID, source.Country)
	}

	metadata, candidates, err := o.fetcher.Run(ctx, source.FeedURL)
	if err != nil {
		return result, fmt.Errorf("source %s: %w", source.ID, err)
	}

	if len(candidates) == 0 {
		return result, nil
	}

	now := o.now().UTC()
	window, err := store.RecentStories(ctx, now.Add(-dedupWindow), dedupWindowLimit)
	if err != nil {
		return result, fmt.Errorf("source %s: failed to load dedup window: %w", source.ID, err)
	}

	if len(candidates) > maxItemsPerCycle {
		candidates = candidates[:maxItemsPerCycle]
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate.Title) == "" {
			continue
		}

		matched := o.findDuplicate(window, candidate.Title)
		if matched != nil {
			if err := o.mergeDuplicate(ctx, store, matched, source, candidate); err != nil {
				slog.Error("Failed to merge duplicate", "source", source.ID, "title", candidate.Title, "error", err)
				continue
			}
			result.Duplicates++
			continue
		}

		story, filtered := o.buildStory(ctx, source, metadata, candidate, now)
		if filtered {
			result.Filtered++
			continue
		}

		if err := o.persistStory(ctx, store, story, source, candidate, now); err != nil {
			slog.Error("Failed to persist story", "source", source.ID, "title", candidate.Title, "error", err)
			continue
		}

		// New stories join the window so later candidates in this cycle
		// merge into them instead of creating duplicates.
		window = append(window, *story)
		result.Processed++
	}

	return result, nil
}

// findDuplicate returns the first window story whose original title
// matches at or above the threshold.
func (o *Orchestrator) findDuplicate(window []database.Story, title string) *database.Story {
	for i := range window {
		if textmatch.IsDuplicate(title, window[i].Title, o.threshold) {
			return &window[i]
		}
	}
	return nil
}

// mergeDuplicate records one more outlet carrying an existing story. No
// enrichment call is made for duplicates.
func (o *Orchestrator) mergeDuplicate(ctx context.Context, store database.StoryStore,
	story *database.Story, source *sources.Source, candidate feed.Candidate) error {

	err := store.InsertSource(ctx, &database.StorySource{
		ID:         uuid.NewString(),
		StoryID:    story.ID,
		SourceName: source.Name,
		SourceURL:  candidate.Link,
		IsPrimary:  false,
		AddedAt:    o.now().UTC(),
	})
	if errors.Is(err, database.ErrDuplicateSource) {
		// The same outlet carrying the story twice is not worth counting.
		slog.Debug("Story source already recorded", "source", source.ID, "story_id", story.ID)
		return nil
	}
	if err != nil {
		return err
	}

	return store.IncrementSourceCount(ctx, story.ID)
}

// buildStory enriches a novel candidate and assembles the story row.
// filtered is true when the enrichment flagged the item as clickbait or
// an ad; such items are counted but not persisted.
func (o *Orchestrator) buildStory(ctx context.Context, source *sources.Source,
	metadata *feed.Metadata, candidate feed.Candidate, now time.Time) (*database.Story, bool) {

	content := o.resolveContent(ctx, candidate)

	enrichment, err := o.enricher.EnrichStory(ctx, candidate.Title, content, ai.Options{
		UseFastClient: true,
		CircuitName:   ai.CircuitEnrichment,
	})
	if err != nil {
		// A degraded story beats a dropped one.
		slog.Warn("Enrichment failed, using fallback", "source", source.ID, "title", candidate.Title, "error", err)
		enrichment = ai.FallbackEnrichment(candidate.Title, content)
	}

	if enrichment.IsClickbait || enrichment.IsAd {
		return nil, true
	}

	categoryID, err := o.categories.GetCategoryID(ctx, enrichment.Category)
	if err != nil {
		slog.Warn("Category lookup failed", "source", source.ID, "category", enrichment.Category, "error", err)
		categoryID = ""
	}

	publishedAt := now
	if candidate.PublishedAt != nil {
		publishedAt = candidate.PublishedAt.UTC()
	}

	language := ""
	if metadata != nil {
		language = metadata.Language
	}

	return &database.Story{
		ID:                  uuid.NewString(),
		Title:               candidate.Title,
		Content:             content,
		Language:            language,
		ImageURL:            candidate.ImageURL,
		TranslatedTitle:     enrichment.TranslatedTitle,
		Summary:             enrichment.Summary,
		IsClickbait:         enrichment.IsClickbait,
		IsAd:                enrichment.IsAd,
		Sentiment:           enrichment.Sentiment,
		PoliticalTone:       enrichment.PoliticalTone,
		PoliticalConfidence: enrichment.PoliticalConfidence,
		GovernmentMentioned: enrichment.GovernmentMentioned,
		Anger:               enrichment.EmotionalTone.Anger,
		Fear:                enrichment.EmotionalTone.Fear,
		Joy:                 enrichment.EmotionalTone.Joy,
		Sadness:             enrichment.EmotionalTone.Sadness,
		Surprise:            enrichment.EmotionalTone.Surprise,
		EmotionalIntensity:  enrichment.EmotionalIntensity,
		LoadedLanguageScore: enrichment.LoadedLanguageScore,
		SensationalismScore: enrichment.SensationalismScore,
		IsFiltered:          false,
		SourceCount:         1,
		CategoryID:          categoryID,
		PublishedAt:         publishedAt,
		ScrapedAt:           now,
	}, false
}

// persistStory stores the story and its primary source atomically, so a
// failed source insert never leaves a story without an owner.
func (o *Orchestrator) persistStory(ctx context.Context, store database.StoryStore,
	story *database.Story, source *sources.Source, candidate feed.Candidate, now time.Time) error {

	return store.InsertStoryWithPrimarySource(ctx, story, &database.StorySource{
		ID:         uuid.NewString(),
		StoryID:    story.ID,
		SourceName: source.Name,
		SourceURL:  candidate.Link,
		IsPrimary:  true,
		AddedAt:    now,
	})
}

// resolveContent picks the richest available entry text, fetching the
// article page when the feed entry is too thin to enrich.
func (o *Orchestrator) resolveContent(ctx context.Context, candidate feed.Candidate) string {
	content := stripHTML(cmp.Or(candidate.RawContentHTML, candidate.RawDescription))

	if len([]rune(content)) >= thinContentLimit || o.extractor == nil || candidate.Link == "" {
		return content
	}

	extracted, err := o.extractor.Run(ctx, candidate.Link)
	if err != nil {
		slog.Debug("Content extraction failed", "link", candidate.Link, "error", err)
		return content
	}

	return strings.TrimSpace(extracted)
}

func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}

	return strings.TrimSpace(doc.Text())
}
