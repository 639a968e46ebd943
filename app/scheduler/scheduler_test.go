package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ekaracan/newspulse/app/ingest"
	"github.com/ekaracan/newspulse/app/sources"
)

type fakeIngestor struct {
	mu      sync.Mutex
	calls   []string
	results map[string]ingest.Result
	errs    map[string]error
}

func (f *fakeIngestor) IngestSource(ctx context.Context, source *sources.Source) (ingest.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, source.ID)
	if err := f.errs[source.ID]; err != nil {
		return ingest.Result{}, err
	}
	return f.results[source.ID], nil
}

func (f *fakeIngestor) callIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testSource(id string, enabled bool, feedURL string) *sources.Source {
	return &sources.Source{
		ID:      id,
		Name:    id,
		FeedURL: feedURL,
		Country: "tr",
		Enabled: enabled,
	}
}

// fakeLoader serves source lists, one per LoadAll call; the last list
// repeats once exhausted.
type fakeLoader struct {
	mu    sync.Mutex
	lists [][]*sources.Source
	err   error
	calls int
}

func (f *fakeLoader) LoadAll() ([]*sources.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	i := f.calls
	f.calls++
	if i >= len(f.lists) {
		i = len(f.lists) - 1
	}
	if i < 0 {
		return nil, nil
	}
	return f.lists[i], nil
}

func loaderOf(srcs ...*sources.Source) *fakeLoader {
	return &fakeLoader{lists: [][]*sources.Source{srcs}}
}

func TestRunCycleSkipsInactiveSources(t *testing.T) {
	ingestor := &fakeIngestor{results: map[string]ingest.Result{}}
	srcs := []*sources.Source{
		testSource("enabled", true, "https://example.com/rss"),
		testSource("disabled", false, "https://example.com/rss"),
		testSource("no-feed", true, ""),
	}

	s := NewScheduler(ingestor, loaderOf(srcs...), time.Hour, 0)
	s.RunCycle(context.Background())

	calls := ingestor.callIDs()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 ingested source, got: %d", len(calls))
	}
	if calls[0] != "enabled" {
		t.Errorf("Expected source enabled, got: %s", calls[0])
	}
}

func TestRunCycleAggregatesTotals(t *testing.T) {
	ingestor := &fakeIngestor{
		results: map[string]ingest.Result{
			"a": {Processed: 2, Duplicates: 1},
			"b": {Processed: 1, Filtered: 3},
		},
	}
	srcs := []*sources.Source{
		testSource("a", true, "https://a.example.com/rss"),
		testSource("b", true, "https://b.example.com/rss"),
	}

	s := NewScheduler(ingestor, loaderOf(srcs...), time.Hour, 0)
	totals := s.RunCycle(context.Background())

	if totals.Processed != 3 {
		t.Errorf("Expected 3 processed, got: %d", totals.Processed)
	}
	if totals.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got: %d", totals.Duplicates)
	}
	if totals.Filtered != 3 {
		t.Errorf("Expected 3 filtered, got: %d", totals.Filtered)
	}
}

func TestRunCycleContinuesPastFailures(t *testing.T) {
	ingestor := &fakeIngestor{
		results: map[string]ingest.Result{"c": {Processed: 1}},
		errs:    map[string]error{"b": fmt.Errorf("feed unreachable")},
	}
	srcs := []*sources.Source{
		testSource("a", true, "https://a.example.com/rss"),
		testSource("b", true, "https://b.example.com/rss"),
		testSource("c", true, "https://c.example.com/rss"),
	}

	s := NewScheduler(ingestor, loaderOf(srcs...), time.Hour, 0)
	totals := s.RunCycle(context.Background())

	if len(ingestor.callIDs()) != 3 {
		t.Fatalf("Expected all 3 sources attempted, got: %d", len(ingestor.callIDs()))
	}
	if totals.Processed != 1 {
		t.Errorf("Expected 1 processed despite failure, got: %d", totals.Processed)
	}
}

func TestRunCycleProcessesSourcesInOrder(t *testing.T) {
	ingestor := &fakeIngestor{results: map[string]ingest.Result{}}
	srcs := []*sources.Source{
		testSource("first", true, "https://a.example.com/rss"),
		testSource("second", true, "https://b.example.com/rss"),
		testSource("third", true, "https://c.example.com/rss"),
	}

	s := NewScheduler(ingestor, loaderOf(srcs...), time.Hour, time.Millisecond)
	s.RunCycle(context.Background())

	calls := ingestor.callIDs()
	expected := []string{"first", "second", "third"}
	for i, id := range expected {
		if calls[i] != id {
			t.Errorf("Expected source %s at position %d, got: %s", id, i, calls[i])
		}
	}
}

func TestRunCycleStopsOnCancel(t *testing.T) {
	ingestor := &fakeIngestor{results: map[string]ingest.Result{}}
	srcs := []*sources.Source{
		testSource("a", true, "https://a.example.com/rss"),
		testSource("b", true, "https://b.example.com/rss"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScheduler(ingestor, loaderOf(srcs...), time.Hour, 0)
	s.RunCycle(ctx)

	if len(ingestor.callIDs()) != 0 {
		t.Errorf("Expected no sources ingested after cancel, got: %d", len(ingestor.callIDs()))
	}
}

func TestRunCycleSkipsOnLoaderError(t *testing.T) {
	ingestor := &fakeIngestor{results: map[string]ingest.Result{}}
	loader := &fakeLoader{err: fmt.Errorf("sources directory unreadable")}

	s := NewScheduler(ingestor, loader, time.Hour, 0)
	totals := s.RunCycle(context.Background())

	if totals != (ingest.Result{}) {
		t.Errorf("Expected zero totals, got: %+v", totals)
	}
	if len(ingestor.callIDs()) != 0 {
		t.Errorf("Expected no sources ingested, got: %d", len(ingestor.callIDs()))
	}
}

func TestRunCycleReloadsSourcesEachCycle(t *testing.T) {
	// Descriptor edits between cycles take effect without a restart.
	ingestor := &fakeIngestor{results: map[string]ingest.Result{}}
	loader := &fakeLoader{lists: [][]*sources.Source{
		{testSource("a", true, "https://a.example.com/rss")},
		{
			testSource("a", true, "https://a.example.com/rss"),
			testSource("b", true, "https://b.example.com/rss"),
		},
	}}

	s := NewScheduler(ingestor, loader, time.Hour, 0)
	s.RunCycle(context.Background())
	s.RunCycle(context.Background())

	calls := ingestor.callIDs()
	expected := []string{"a", "a", "b"}
	if len(calls) != len(expected) {
		t.Fatalf("Expected %d ingestions, got: %d (%v)", len(expected), len(calls), calls)
	}
	for i, id := range expected {
		if calls[i] != id {
			t.Errorf("Expected source %s at position %d, got: %s", id, i, calls[i])
		}
	}
}

func TestStartRunsInitialCycleAndStops(t *testing.T) {
	ingestor := &fakeIngestor{results: map[string]ingest.Result{}}
	srcs := []*sources.Source{testSource("a", true, "https://a.example.com/rss")}

	s := NewScheduler(ingestor, loaderOf(srcs...), time.Hour, 0)
	s.Start()

	deadline := time.After(2 * time.Second)
	for len(ingestor.callIDs()) == 0 {
		select {
		case <-deadline:
			t.Fatal("Expected an initial cycle shortly after Start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.Stop()
}

func TestTriggerNowRunsExtraCycle(t *testing.T) {
	ingestor := &fakeIngestor{results: map[string]ingest.Result{}}
	srcs := []*sources.Source{testSource("a", true, "https://a.example.com/rss")}

	s := NewScheduler(ingestor, loaderOf(srcs...), time.Hour, 0)
	s.Start()

	deadline := time.After(2 * time.Second)
	for len(ingestor.callIDs()) == 0 {
		select {
		case <-deadline:
			t.Fatal("Expected an initial cycle shortly after Start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := s.TriggerNow(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	deadline = time.After(2 * time.Second)
	for len(ingestor.callIDs()) < 2 {
		select {
		case <-deadline:
			t.Fatal("Expected a triggered cycle")
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.Stop()
}

func TestTriggerNowAfterStop(t *testing.T) {
	ingestor := &fakeIngestor{results: map[string]ingest.Result{}}
	s := NewScheduler(ingestor, &fakeLoader{}, time.Hour, 0)
	s.Start()
	s.Stop()

	if err := s.TriggerNow(); err == nil {
		t.Error("Expected error after Stop")
	}
}
