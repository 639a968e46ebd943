package ai

// Message is one role-tagged prompt turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	Messages    []Message
	Structured  bool // require a JSON object response
	Temperature float64
	MaxTokens   int
}

// Options select the transport for a call. CircuitName keys the breaker
// state; unrelated dependencies must use different names.
type Options struct {
	UseFastClient  bool
	CircuitName    string
	MaxInputLength int           // per-turn truncation ceiling, 0 = default
	Fallback       func() string // breaker fallback for free-text calls
}

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// EmotionalTone holds five independent [0,1] sub-scores.
type EmotionalTone struct {
	Anger    float64 `json:"anger"`
	Fear     float64 `json:"fear"`
	Joy      float64 `json:"joy"`
	Sadness  float64 `json:"sadness"`
	Surprise float64 `json:"surprise"`
}

// Enrichment is the full set of AI-derived story fields. The fields are
// populated together or not at all: a failed call yields the
// deterministic fallback, never a partial result.
type Enrichment struct {
	TranslatedTitle     string        `json:"translated_title"`
	Summary             string        `json:"summary"`
	IsClickbait         bool          `json:"is_clickbait"`
	IsAd                bool          `json:"is_ad"`
	Sentiment           string        `json:"sentiment"`
	PoliticalTone       int           `json:"political_tone"`
	PoliticalConfidence float64       `json:"political_confidence"`
	GovernmentMentioned bool          `json:"government_mentioned"`
	EmotionalTone       EmotionalTone `json:"emotional_tone"`
	EmotionalIntensity  float64       `json:"emotional_intensity"`
	LoadedLanguageScore float64       `json:"loaded_language_score"`
	SensationalismScore float64       `json:"sensationalism_score"`
	Category            string        `json:"category"`
}
