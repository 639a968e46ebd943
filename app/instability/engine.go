// Package instability computes read models over the persisted story
// corpus: a composite 0-100 instability index per country and a 30-day
// volume anomaly signal. Both are recomputed from stored data on every
// invocation; no state is carried between calls.
package instability

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ekaracan/newspulse/app/ai"
	"github.com/ekaracan/newspulse/app/database"
)

// Component weights of the composite score. They sum to 1.
const (
	weightNegativeRatio  = 0.30
	weightIntensity      = 0.25
	weightVelocity       = 0.20
	weightLoadedLanguage = 0.15
	weightSensationalism = 0.10
)

const (
	scoreWindow    = 24 * time.Hour
	velocityDays   = 7
	anomalyDays    = 30
	minAnomalyDays = 3

	// Velocity saturates when today's volume reaches this multiple of
	// the 7-day mean.
	velocitySaturation = 3.0
)

// Anomaly levels.
const (
	LevelNormal   = "NORMAL"
	LevelElevated = "ELEVATED"
	LevelHigh     = "HIGH"
	LevelCritical = "CRITICAL"
)

// Score is the composite instability index for one country.
type Score struct {
	Country    string     `json:"country"`
	Value      int        `json:"value"` // 0-100
	Level      string     `json:"level"` // low / medium / high
	StoryCount int        `json:"story_count"`
	Components Components `json:"components"`
}

// Components are the five normalized [0,1] inputs to the score.
type Components struct {
	NegativeRatio  float64 `json:"negative_ratio"`
	Intensity      float64 `json:"intensity"`
	Velocity       float64 `json:"velocity"`
	LoadedLanguage float64 `json:"loaded_language"`
	Sensationalism float64 `json:"sensationalism"`
}

// VolumeAnomaly is the 30-day z-score signal for one country.
type VolumeAnomaly struct {
	Country    string  `json:"country"`
	TodayCount int     `json:"today_count"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	ZScore     float64 `json:"z_score"`
	Level      string  `json:"level"`
	DaysOfData int     `json:"days_of_data"`
}

// Engine reads the story corpus through the per-country store map.
type Engine struct {
	stores map[string]database.StoryStore
	now    func() time.Time
}

func NewEngine(stores map[string]database.StoryStore) *Engine {
	return &Engine{
		stores: stores,
		now:    time.Now,
	}
}

// Compute derives the composite instability score for a country from
// the last 24 hours of non-filtered stories.
func (e *Engine) Compute(ctx context.Context, country string) (*Score, error) {
	store, ok := e.stores[country]
	if !ok {
		return nil, fmt.Errorf("no store for country %s", country)
	}

	now := e.now().UTC()
	stories, err := store.StoriesSince(ctx, now.Add(-scoreWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load stories for %s: %w", country, err)
	}

	components := Components{}
	if len(stories) > 0 {
		negatives := 0
		var intensitySum, loadedSum, sensationalSum float64
		for _, s := range stories {
			if s.Sentiment == ai.SentimentNegative {
				negatives++
			}
			intensitySum += s.EmotionalIntensity
			loadedSum += s.LoadedLanguageScore
			sensationalSum += s.SensationalismScore
		}

		n := float64(len(stories))
		components.NegativeRatio = float64(negatives) / n
		components.Intensity = intensitySum / n
		components.LoadedLanguage = loadedSum / n
		components.Sensationalism = sensationalSum / n
	}

	velocity, err := e.velocity(ctx, store, now)
	if err != nil {
		return nil, err
	}
	components.Velocity = velocity

	composite := weightNegativeRatio*components.NegativeRatio +
		weightIntensity*components.Intensity +
		weightVelocity*components.Velocity +
		weightLoadedLanguage*components.LoadedLanguage +
		weightSensationalism*components.Sensationalism

	value := int(math.Round(composite * 100))
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}

	return &Score{
		Country:    country,
		Value:      value,
		Level:      scoreLevel(value),
		StoryCount: len(stories),
		Components: components,
	}, nil
}

// velocity compares today's volume against the mean of the preceding
// seven days; at or above 3x the average it saturates at 1.
func (e *Engine) velocity(ctx context.Context, store database.StoryStore, now time.Time) (float64, error) {
	todayCount, err := store.CountForDay(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's stories: %w", err)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	counts, err := store.DailyCounts(ctx, today.AddDate(0, 0, -velocityDays), today)
	if err != nil {
		return 0, fmt.Errorf("failed to load weekly counts: %w", err)
	}

	total := 0
	for _, dc := range counts {
		total += dc.Count
	}
	mean := float64(total) / float64(velocityDays)

	if mean == 0 {
		if todayCount > 0 {
			return 1, nil
		}
		return 0, nil
	}

	ratio := float64(todayCount) / mean
	if ratio >= velocitySaturation {
		return 1, nil
	}
	return ratio / velocitySaturation, nil
}

// Anomaly derives the 30-day volume z-score. With fewer than three days
// of history, or a flat distribution, the z-score is zero and the level
// NORMAL rather than an unstable estimate.
func (e *Engine) Anomaly(ctx context.Context, country string) (*VolumeAnomaly, error) {
	store, ok := e.stores[country]
	if !ok {
		return nil, fmt.Errorf("no store for country %s", country)
	}

	now := e.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	counts, err := store.DailyCounts(ctx, today.AddDate(0, 0, -anomalyDays), today)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily counts for %s: %w", country, err)
	}

	todayCount, err := store.CountForDay(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's stories for %s: %w", country, err)
	}

	anomaly := &VolumeAnomaly{
		Country:    country,
		TodayCount: todayCount,
		Level:      LevelNormal,
		DaysOfData: len(counts),
	}

	if len(counts) < minAnomalyDays {
		return anomaly, nil
	}

	var w welford
	for _, dc := range counts {
		w.add(float64(dc.Count))
	}

	anomaly.Mean = w.mean
	anomaly.StdDev = w.stddev()

	if anomaly.StdDev == 0 {
		return anomaly, nil
	}

	anomaly.ZScore = (float64(todayCount) - anomaly.Mean) / anomaly.StdDev
	anomaly.Level = anomalyLevel(anomaly.ZScore)

	return anomaly, nil
}

func scoreLevel(value int) string {
	switch {
	case value < 30:
		return "low"
	case value < 60:
		return "medium"
	default:
		return "high"
	}
}

func anomalyLevel(z float64) string {
	switch {
	case z < 1.5:
		return LevelNormal
	case z < 2.0:
		return LevelElevated
	case z < 3.0:
		return LevelHigh
	default:
		return LevelCritical
	}
}
