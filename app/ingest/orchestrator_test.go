package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ekaracan/newspulse/app/ai"
	"github.com/ekaracan/newspulse/app/database"
	"github.com/ekaracan/newspulse/app/feed"
	"github.com/ekaracan/newspulse/app/sources"
)

// fakeFetcher returns canned candidates.
type fakeFetcher struct {
	metadata   *feed.Metadata
	candidates []feed.Candidate
	err        error
}

func (f *fakeFetcher) Run(ctx context.Context, url string) (*feed.Metadata, []feed.Candidate, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.metadata, f.candidates, nil
}

// fakeEnricher records calls and returns a canned enrichment.
type fakeEnricher struct {
	enrichment *ai.Enrichment
	err        error
	calls      []string
}

func (f *fakeEnricher) EnrichStory(ctx context.Context, title, content string, opts ai.Options) (*ai.Enrichment, error) {
	f.calls = append(f.calls, title)
	if f.err != nil {
		return nil, f.err
	}
	if f.enrichment != nil {
		return f.enrichment, nil
	}
	return &ai.Enrichment{
		TranslatedTitle: "translated: " + title,
		Summary:         "summary",
		Sentiment:       ai.SentimentNeutral,
		Category:        "world",
	}, nil
}

// fakeStore is an in-memory StoryStore.
type fakeStore struct {
	stories       []database.Story
	storySource   []database.StorySource
	insertErrOn   string // story title whose persist fails
	sourceErr     error  // returned by InsertSource when set
	primarySrcErr error  // fails the source half of the combined insert
}

func (f *fakeStore) InsertStory(ctx context.Context, story *database.Story) error {
	if f.insertErrOn != "" && story.Title == f.insertErrOn {
		return errors.New("insert failed")
	}
	f.stories = append(f.stories, *story)
	return nil
}

func (f *fakeStore) InsertStoryWithPrimarySource(ctx context.Context, story *database.Story, source *database.StorySource) error {
	if f.insertErrOn != "" && story.Title == f.insertErrOn {
		return errors.New("insert failed")
	}
	if f.primarySrcErr != nil {
		return f.primarySrcErr
	}
	f.stories = append(f.stories, *story)
	f.storySource = append(f.storySource, *source)
	return nil
}

func (f *fakeStore) InsertSource(ctx context.Context, source *database.StorySource) error {
	if f.sourceErr != nil {
		return f.sourceErr
	}
	for _, existing := range f.storySource {
		if existing.StoryID == source.StoryID && existing.SourceName == source.SourceName {
			return database.ErrDuplicateSource
		}
	}
	f.storySource = append(f.storySource, *source)
	return nil
}

func (f *fakeStore) IncrementSourceCount(ctx context.Context, storyID string) error {
	for i := range f.stories {
		if f.stories[i].ID == storyID {
			f.stories[i].SourceCount++
			return nil
		}
	}
	return fmt.Errorf("story not found: %s", storyID)
}

func (f *fakeStore) RecentStories(ctx context.Context, since time.Time, limit int) ([]database.Story, error) {
	out := make([]database.Story, len(f.stories))
	copy(out, f.stories)
	return out, nil
}

func (f *fakeStore) StoriesSince(ctx context.Context, since time.Time) ([]database.Story, error) {
	return f.RecentStories(ctx, since, 0)
}

func (f *fakeStore) DailyCounts(ctx context.Context, from, to time.Time) ([]database.DailyCount, error) {
	return nil, nil
}

func (f *fakeStore) CountForDay(ctx context.Context, day time.Time) (int, error) {
	return 0, nil
}

type fakeCategories struct{}

func (fakeCategories) GetCategoryID(ctx context.Context, name string) (string, error) {
	if name == "economy" {
		return "cat-economy", nil
	}
	return "cat-world", nil
}

func trSource() *sources.Source {
	return &sources.Source{
		ID:      "hurriyet",
		Name:    "Hürriyet",
		FeedURL: "https://example.com/rss",
		Country: "tr",
		Enabled: true,
	}
}

func newTestOrchestrator(fetcher *fakeFetcher, enricher *fakeEnricher, store *fakeStore) *Orchestrator {
	return NewOrchestrator(fetcher, enricher, nil,
		map[string]database.StoryStore{"tr": store}, fakeCategories{})
}

func TestIngestEmptyFeed(t *testing.T) {
	fetcher := &fakeFetcher{metadata: &feed.Metadata{Language: "tr"}}
	enricher := &fakeEnricher{}
	store := &fakeStore{}

	o := newTestOrchestrator(fetcher, enricher, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error for empty feed, got: %v", err)
	}
	if result != (Result{}) {
		t.Errorf("Expected zero-activity result, got: %+v", result)
	}
}

func TestIngestFetchErrorIsReturned(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	o := newTestOrchestrator(fetcher, &fakeEnricher{}, &fakeStore{})

	_, err := o.IngestSource(context.Background(), trSource())
	if err == nil {
		t.Error("Expected fetch error to surface")
	}
}

func TestIngestUnknownCountry(t *testing.T) {
	o := newTestOrchestrator(&fakeFetcher{}, &fakeEnricher{}, &fakeStore{})

	src := trSource()
	src.Country = "xx"
	if _, err := o.IngestSource(context.Background(), src); err == nil {
		t.Error("Expected error for country without a store")
	}
}

func TestIngestNovelStory(t *testing.T) {
	fetcher := &fakeFetcher{
		metadata: &feed.Metadata{Language: "tr"},
		candidates: []feed.Candidate{{
			Title:          "Yeni teknoloji merkezi açıldı",
			Link:           "https://example.com/a",
			RawDescription: "<p>Şehirde yeni bir teknoloji merkezi açıldı ve yüzlerce kişiye istihdam sağlayacak.</p>",
		}},
	}
	enricher := &fakeEnricher{enrichment: &ai.Enrichment{
		TranslatedTitle: "New technology center opened",
		Summary:         "A new tech center opened.",
		Sentiment:       ai.SentimentPositive,
		Category:        "economy",
	}}
	store := &fakeStore{}

	o := newTestOrchestrator(fetcher, enricher, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Processed != 1 || result.Duplicates != 0 || result.Filtered != 0 {
		t.Errorf("Expected {1 0 0}, got: %+v", result)
	}
	if len(store.stories) != 1 {
		t.Fatalf("Expected 1 persisted story, got: %d", len(store.stories))
	}

	story := store.stories[0]
	if story.TranslatedTitle != "New technology center opened" {
		t.Errorf("Unexpected translated title: %s", story.TranslatedTitle)
	}
	if story.CategoryID != "cat-economy" {
		t.Errorf("Expected economy category, got: %s", story.CategoryID)
	}
	if story.Language != "tr" {
		t.Errorf("Expected feed language, got: %s", story.Language)
	}
	if story.Content == "" || story.Content[0] == '<' {
		t.Errorf("Expected HTML stripped from content, got: %q", story.Content)
	}
	if story.SourceCount != 1 {
		t.Errorf("Expected source count 1, got: %d", story.SourceCount)
	}

	if len(store.storySource) != 1 {
		t.Fatalf("Expected 1 story source, got: %d", len(store.storySource))
	}
	src := store.storySource[0]
	if !src.IsPrimary {
		t.Error("Expected first source to be primary")
	}
	if src.SourceName != "Hürriyet" {
		t.Errorf("Expected outlet name, got: %s", src.SourceName)
	}
}

func TestIngestDuplicateSkipsEnrichment(t *testing.T) {
	store := &fakeStore{stories: []database.Story{{
		ID:          "existing-1",
		Title:       "Merkez Bankası faiz kararını açıkladı",
		SourceCount: 1,
	}}}
	fetcher := &fakeFetcher{
		metadata: &feed.Metadata{Language: "tr"},
		candidates: []feed.Candidate{{
			Title: "Merkez Bankası faiz kararı açıklandı",
			Link:  "https://other.example.com/faiz",
		}},
	}
	enricher := &fakeEnricher{}

	o := newTestOrchestrator(fetcher, enricher, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Duplicates != 1 || result.Processed != 0 {
		t.Errorf("Expected {0 1 0}, got: %+v", result)
	}
	if len(enricher.calls) != 0 {
		t.Errorf("Expected no enrichment call for a duplicate, got: %v", enricher.calls)
	}
	if store.stories[0].SourceCount != 2 {
		t.Errorf("Expected source count incremented to 2, got: %d", store.stories[0].SourceCount)
	}
	if len(store.storySource) != 1 {
		t.Fatalf("Expected 1 new story source, got: %d", len(store.storySource))
	}
	if store.storySource[0].IsPrimary {
		t.Error("Expected merged source to not be primary")
	}
}

func TestIngestEndToEndScenario(t *testing.T) {
	// One duplicate of an existing story, one novel non-ad item.
	store := &fakeStore{stories: []database.Story{{
		ID:    "existing-1",
		Title: "Merkez Bankası faiz kararını açıkladı",
	}}}
	fetcher := &fakeFetcher{
		metadata: &feed.Metadata{Language: "tr"},
		candidates: []feed.Candidate{
			{Title: "Merkez Bankası faiz kararı açıklandı", Link: "https://b.example.com/1"},
			{Title: "Sahilde yeni müze açılışı yapıldı", Link: "https://b.example.com/2",
				RawDescription: "Uzun bir açıklama metni buraya gelir ve haberin detaylarını anlatır."},
		},
	}
	enricher := &fakeEnricher{}

	o := newTestOrchestrator(fetcher, enricher, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Processed != 1 || result.Duplicates != 1 || result.Filtered != 0 {
		t.Errorf("Expected {processed:1 duplicates:1 filtered:0}, got: %+v", result)
	}
	if len(enricher.calls) != 1 {
		t.Errorf("Expected exactly 1 enrichment call, got: %d", len(enricher.calls))
	}
}

func TestIngestFilteredItemsNotPersisted(t *testing.T) {
	fetcher := &fakeFetcher{
		metadata:   &feed.Metadata{},
		candidates: []feed.Candidate{{Title: "ŞOK! Bunu asla tahmin edemeyeceksiniz", Link: "https://x.example.com/1"}},
	}
	enricher := &fakeEnricher{enrichment: &ai.Enrichment{
		TranslatedTitle: "t", Summary: "s", Sentiment: ai.SentimentNeutral,
		IsClickbait: true, Category: "world",
	}}
	store := &fakeStore{}

	o := newTestOrchestrator(fetcher, enricher, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Filtered != 1 || result.Processed != 0 {
		t.Errorf("Expected {0 0 1}, got: %+v", result)
	}
	if len(store.stories) != 0 {
		t.Errorf("Expected filtered item to not be persisted, got: %d stories", len(store.stories))
	}
}

func TestIngestEnrichmentFallbackIsAtomic(t *testing.T) {
	fetcher := &fakeFetcher{
		metadata: &feed.Metadata{Language: "tr"},
		candidates: []feed.Candidate{{
			Title:          "Fırtına nedeniyle seferler iptal edildi",
			Link:           "https://x.example.com/2",
			RawDescription: "Kuvvetli fırtına nedeniyle bugünkü tüm feribot seferleri iptal edildi, yolcular bilgilendirildi.",
		}},
	}
	enricher := &fakeEnricher{err: errors.New("service unavailable")}
	store := &fakeStore{}

	o := newTestOrchestrator(fetcher, enricher, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Processed != 1 {
		t.Fatalf("Expected degraded story to be created, got: %+v", result)
	}

	story := store.stories[0]
	if story.TranslatedTitle != "Fırtına nedeniyle seferler iptal edildi" {
		t.Errorf("Expected original title as translation, got: %s", story.TranslatedTitle)
	}
	if story.Summary == "" {
		t.Error("Expected truncated-content summary to be set")
	}
	if story.Sentiment != ai.SentimentNeutral {
		t.Errorf("Expected neutral sentiment, got: %s", story.Sentiment)
	}
	if story.IsClickbait || story.IsAd {
		t.Error("Expected clickbait/ad flags false")
	}
	if story.PoliticalTone != 0 || story.PoliticalConfidence != 0 {
		t.Error("Expected zeroed political scores")
	}
	if story.Anger != 0 || story.Fear != 0 || story.Joy != 0 || story.Sadness != 0 || story.Surprise != 0 {
		t.Error("Expected zeroed emotional tone")
	}
}

func TestIngestCapsCandidatesPerCycle(t *testing.T) {
	var candidates []feed.Candidate
	for i := 0; i < 15; i++ {
		candidates = append(candidates, feed.Candidate{
			Title: fmt.Sprintf("Tamamen farklı benzersiz haber numara %d hakkında uzun başlık", i*7),
			Link:  fmt.Sprintf("https://x.example.com/%d", i),
		})
	}
	fetcher := &fakeFetcher{metadata: &feed.Metadata{}, candidates: candidates}
	enricher := &fakeEnricher{}
	store := &fakeStore{}

	o := newTestOrchestrator(fetcher, enricher, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Processed+result.Duplicates+result.Filtered > maxItemsPerCycle {
		t.Errorf("Expected at most %d items handled, got: %+v", maxItemsPerCycle, result)
	}
}

func TestIngestSameCycleDuplicates(t *testing.T) {
	// Two near-identical candidates in one cycle: the second must merge
	// into the story the first one just created.
	fetcher := &fakeFetcher{
		metadata: &feed.Metadata{},
		candidates: []feed.Candidate{
			{Title: "Büyük yangın kontrol altına alındı", Link: "https://a.example.com/1"},
			{Title: "Büyük yangın kontrol altına alındı!", Link: "https://b.example.com/1"},
		},
	}
	enricher := &fakeEnricher{}
	store := &fakeStore{}

	o := newTestOrchestrator(fetcher, enricher, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Processed != 1 || result.Duplicates != 1 {
		t.Errorf("Expected {1 1 0}, got: %+v", result)
	}
	if len(store.stories) != 1 {
		t.Errorf("Expected 1 story, got: %d", len(store.stories))
	}
}

func TestIngestPersistFailureSkipsItemOnly(t *testing.T) {
	fetcher := &fakeFetcher{
		metadata: &feed.Metadata{},
		candidates: []feed.Candidate{
			{Title: "Birinci benzersiz haber başlığı tamamen farklı", Link: "https://x.example.com/1"},
			{Title: "Tamamen alakasız ikinci konu hakkında haber", Link: "https://x.example.com/2"},
		},
	}
	enricher := &fakeEnricher{}
	store := &fakeStore{insertErrOn: "Birinci benzersiz haber başlığı tamamen farklı"}

	o := newTestOrchestrator(fetcher, enricher, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Processed != 1 {
		t.Errorf("Expected sibling item to still be processed, got: %+v", result)
	}
	if len(store.stories) != 1 {
		t.Errorf("Expected 1 story, got: %d", len(store.stories))
	}
}

func TestIngestPrimarySourceFailureLeavesNoPartialState(t *testing.T) {
	// The story and its primary source persist atomically: a failure on
	// the source half must not leave an ownerless story behind.
	fetcher := &fakeFetcher{
		metadata: &feed.Metadata{},
		candidates: []feed.Candidate{{
			Title: "Yeni köprü projesi onaylandı",
			Link:  "https://x.example.com/1",
		}},
	}
	store := &fakeStore{primarySrcErr: errors.New("source insert failed")}

	o := newTestOrchestrator(fetcher, &fakeEnricher{}, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result != (Result{}) {
		t.Errorf("Expected zero-activity result, got: %+v", result)
	}
	if len(store.stories) != 0 {
		t.Errorf("Expected no orphan story, got: %d", len(store.stories))
	}
	if len(store.storySource) != 0 {
		t.Errorf("Expected no source rows, got: %d", len(store.storySource))
	}
}

func TestIngestMergeFailureNotCountedAsDuplicate(t *testing.T) {
	// A real InsertSource failure during a merge is not the benign
	// already-recorded case: the item is skipped and the count untouched.
	store := &fakeStore{
		stories: []database.Story{{
			ID:          "existing-1",
			Title:       "Merkez Bankası faiz kararını açıkladı",
			SourceCount: 1,
		}},
		sourceErr: errors.New("database is locked"),
	}
	fetcher := &fakeFetcher{
		metadata: &feed.Metadata{},
		candidates: []feed.Candidate{{
			Title: "Merkez Bankası faiz kararı açıklandı",
			Link:  "https://other.example.com/faiz",
		}},
	}

	o := newTestOrchestrator(fetcher, &fakeEnricher{}, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Duplicates != 0 {
		t.Errorf("Expected failed merge to not count as duplicate, got: %+v", result)
	}
	if store.stories[0].SourceCount != 1 {
		t.Errorf("Expected source count untouched, got: %d", store.stories[0].SourceCount)
	}
}

func TestIngestMergeToleratesAlreadyRecordedSource(t *testing.T) {
	// The same outlet re-delivering a story it already carries merges
	// quietly without bumping the count.
	store := &fakeStore{
		stories: []database.Story{{
			ID:          "existing-1",
			Title:       "Merkez Bankası faiz kararını açıkladı",
			SourceCount: 2,
		}},
		storySource: []database.StorySource{{
			StoryID:    "existing-1",
			SourceName: "Hürriyet",
		}},
	}
	fetcher := &fakeFetcher{
		metadata: &feed.Metadata{},
		candidates: []feed.Candidate{{
			Title: "Merkez Bankası faiz kararı açıklandı",
			Link:  "https://example.com/faiz-tekrar",
		}},
	}

	o := newTestOrchestrator(fetcher, &fakeEnricher{}, store)
	result, err := o.IngestSource(context.Background(), trSource())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Duplicates != 1 {
		t.Errorf("Expected re-delivery counted as duplicate, got: %+v", result)
	}
	if store.stories[0].SourceCount != 2 {
		t.Errorf("Expected source count unchanged at 2, got: %d", store.stories[0].SourceCount)
	}
	if len(store.storySource) != 1 {
		t.Errorf("Expected no new source row, got: %d", len(store.storySource))
	}
}
