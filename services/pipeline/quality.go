package pipeline

import (
	"math"
	"strings"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
)

// Scoring weights for generated article content. Word count is proportional
// up to 800 words, character length up to 4500 chars; structural components
// are capped individually and the final score is clamped to [0,100].
const (
	scoreBaseline       = 10.0
	wordScoreCap        = 25.0
	wordCountTarget     = 800.0
	titleScore          = 15.0
	subheadingUnitScore = 5.0
	subheadingCap       = 3
	listUnitScore       = 5.0
	listCap             = 2
	faqScore            = 10.0
	lengthScoreCap      = 15.0
	lengthDivisor       = 300.0
)

// QualityScore is the deterministic evaluation of one content artifact.
// It is computed fresh on every evaluation and never mutated afterwards.
type QualityScore struct {
	WordCount       int     `json:"word_count"`
	HasTitle        bool    `json:"has_title"`
	SubheadingCount int     `json:"subheading_count"`
	ListCount       int     `json:"list_count"`
	HasFAQ          bool    `json:"has_faq"`
	Score           float64 `json:"score"` // 0-100
}

// EvaluateQuality scores a markdown article. The function is pure and total:
// empty content yields the flat baseline, never an error.
func EvaluateQuality(content string) QualityScore {
	score := QualityScore{
		WordCount: len(strings.Fields(content)),
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "## "):
			score.SubheadingCount++
		case strings.HasPrefix(trimmed, "# "):
			score.HasTitle = true
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			score.ListCount++
		}
	}

	lower := strings.ToLower(content)
	score.HasFAQ = strings.Contains(lower, "faq") || strings.Contains(lower, "häufige fragen")

	total := scoreBaseline
	total += math.Min(wordScoreCap, float64(score.WordCount)/wordCountTarget*wordScoreCap)
	if score.HasTitle {
		total += titleScore
	}
	total += float64(min(score.SubheadingCount, subheadingCap)) * subheadingUnitScore
	total += float64(min(score.ListCount, listCap)) * listUnitScore
	if score.HasFAQ {
		total += faqScore
	}
	total += math.Min(lengthScoreCap, float64(len(content))/lengthDivisor)

	score.Score = math.Min(100, math.Max(0, total))
	return score
}

// ShouldPublish applies the auto-publish decision rule: the artifact is
// published only when auto-publish is on and the rounded score reaches the
// configured threshold. Everything else stays a draft.
func ShouldPublish(score QualityScore, cfg model.PipelineConfig) bool {
	return cfg.AutoPublish && int(math.Round(score.Score)) >= cfg.QualityThreshold
}
