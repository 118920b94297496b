package analysis

import (
	"math"

	"github.com/mavalente92/debatelens/pkg/models"
)

// neutralScore is the midpoint used whenever a score is missing or invalid.
const neutralScore = 5.0

const missingExplanation = "Explanation not available"

// normalizeScore maps any input onto [1,10] with one decimal of precision.
// Out-of-range and non-finite values collapse to the neutral midpoint
// rather than clamping, matching how missing scores are handled. Idempotent.
func normalizeScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 1 || score > 10 {
		return neutralScore
	}
	return math.Round(score*10) / 10
}

// normalizeSpeakerAnalysis guarantees every field downstream code reads is
// present: all six categories scored and explained, slices non-nil, the
// speaker name authoritative from the request rather than the model.
func normalizeSpeakerAnalysis(a models.SpeakerAnalysis, speaker string) models.SpeakerAnalysis {
	a.Speaker = speaker
	if a.Scores == nil {
		a.Scores = make(map[string]float64, len(models.Categories))
	}
	if a.Explanations == nil {
		a.Explanations = make(map[string]string, len(models.Categories))
	}
	for _, key := range models.Categories {
		a.Scores[key] = normalizeScore(a.Scores[key])
		if a.Explanations[key] == "" {
			a.Explanations[key] = missingExplanation
		}
	}
	// Keys outside the fixed category set are dropped.
	for key := range a.Scores {
		if _, ok := categoryLabels[key]; !ok {
			delete(a.Scores, key)
		}
	}
	for key := range a.Explanations {
		if _, ok := categoryLabels[key]; !ok {
			delete(a.Explanations, key)
		}
	}
	if a.Highlights == nil {
		a.Highlights = []string{}
	}
	if a.Improvements == nil {
		a.Improvements = []string{}
	}
	if a.OverallAssessment == "" {
		a.OverallAssessment = "Analysis completed"
	}
	return a
}

func normalizeComparison(c models.Comparison) models.Comparison {
	if c.WinnerOverall == "" {
		c.WinnerOverall = models.UndeterminedWinner
	}
	if c.CategoryWinners == nil {
		c.CategoryWinners = map[string]string{}
	}
	for key := range c.CategoryWinners {
		if _, ok := categoryLabels[key]; !ok {
			delete(c.CategoryWinners, key)
		}
	}
	if c.KeyDifferences == nil {
		c.KeyDifferences = []string{}
	}
	return c
}

// NeutralSpeakerAnalysis is the stand-in result when a participant's
// evaluation cannot be obtained. All categories sit at the midpoint so the
// comparison stays well defined.
func NeutralSpeakerAnalysis(speaker string) models.SpeakerAnalysis {
	scores := make(map[string]float64, len(models.Categories))
	explanations := make(map[string]string, len(models.Categories))
	for _, key := range models.Categories {
		scores[key] = neutralScore
		explanations[key] = missingExplanation
	}
	return models.SpeakerAnalysis{
		Speaker:           speaker,
		Scores:            scores,
		Explanations:      explanations,
		Highlights:        []string{},
		Improvements:      []string{},
		OverallAssessment: "Automatic analysis failed. The scores shown are neutral defaults.",
	}
}

// NeutralComparison is the stand-in comparison when the comparative call
// fails or cannot be parsed.
func NeutralComparison() models.Comparison {
	return models.Comparison{
		WinnerOverall:   models.UndeterminedWinner,
		CategoryWinners: map[string]string{},
		Summary:         "The comparative synthesis could not be generated.",
		KeyDifferences:  []string{},
	}
}
