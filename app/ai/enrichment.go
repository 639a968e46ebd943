package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaracan/newspulse/app/breaker"
)

// CircuitEnrichment is the breaker circuit name for story enrichment.
const CircuitEnrichment = "ai-enrichment"

const fallbackSummaryLimit = 300

const enrichmentSystemPrompt = `You are a news analysis service. Given a news story you return a single JSON object with these fields:
translated_title (string, English translation of the title),
summary (string, 2-3 sentence English summary),
is_clickbait (bool), is_ad (bool),
sentiment ("positive" | "neutral" | "negative"),
political_tone (integer -5..5), political_confidence (number 0..1),
government_mentioned (bool),
emotional_tone (object with anger, fear, joy, sadness, surprise, each number 0..1),
emotional_intensity (number 0..1), loaded_language_score (number 0..1),
sensationalism_score (number 0..1),
category (one of: world, politics, economy, sports, technology, culture, health, science).
Respond with the JSON object only.`

// EnrichStory classifies one story. The call runs under the enrichment
// circuit; an unparsable structured response counts as a breaker failure
// and is surfaced as ErrInvalidStructuredResponse so the caller applies
// its deterministic fallback.
func (c *Client) EnrichStory(ctx context.Context, title, content string, opts Options) (*Enrichment, error) {
	req := Request{
		Messages: []Message{
			{Role: "system", Content: enrichmentSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Title: %s\n\nContent: %s", title, content)},
		},
		Structured:  true,
		Temperature: 0.2,
		MaxTokens:   600,
	}

	circuit := opts.CircuitName
	if circuit == "" {
		circuit = CircuitEnrichment
	}

	// No breaker fallback here: the orchestrator's own FallbackEnrichment
	// takes precedence over a generic one.
	return breaker.Do(ctx, c.registry, circuit, func(ctx context.Context) (*Enrichment, error) {
		text, err := c.call(ctx, req, opts)
		if err != nil {
			return nil, err
		}

		var enrichment Enrichment
		if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &enrichment); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStructuredResponse, err)
		}

		normalizeEnrichment(&enrichment)
		return &enrichment, nil
	}, nil)
}

// FallbackEnrichment returns the deterministic neutral enrichment used
// when the AI dependency is unavailable. A degraded story is preferred
// over a dropped one.
func FallbackEnrichment(title, content string) *Enrichment {
	return &Enrichment{
		TranslatedTitle:     title,
		Summary:             Truncate(strings.TrimSpace(content), fallbackSummaryLimit),
		IsClickbait:         false,
		IsAd:                false,
		Sentiment:           SentimentNeutral,
		PoliticalTone:       0,
		PoliticalConfidence: 0,
		GovernmentMentioned: false,
		EmotionalTone:       EmotionalTone{},
		EmotionalIntensity:  0,
		LoadedLanguageScore: 0,
		SensationalismScore: 0,
		Category:            "world",
	}
}

// normalizeEnrichment clamps model output into the documented ranges.
func normalizeEnrichment(e *Enrichment) {
	switch e.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		e.Sentiment = SentimentNeutral
	}

	e.PoliticalTone = clampInt(e.PoliticalTone, -5, 5)
	e.PoliticalConfidence = clamp01(e.PoliticalConfidence)
	e.EmotionalTone.Anger = clamp01(e.EmotionalTone.Anger)
	e.EmotionalTone.Fear = clamp01(e.EmotionalTone.Fear)
	e.EmotionalTone.Joy = clamp01(e.EmotionalTone.Joy)
	e.EmotionalTone.Sadness = clamp01(e.EmotionalTone.Sadness)
	e.EmotionalTone.Surprise = clamp01(e.EmotionalTone.Surprise)
	e.EmotionalIntensity = clamp01(e.EmotionalIntensity)
	e.LoadedLanguageScore = clamp01(e.LoadedLanguageScore)
	e.SensationalismScore = clamp01(e.SensationalismScore)

	if e.Category == "" {
		e.Category = "world"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
