package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/mavalente92/debatelens/pkg/models"
)

// Models wrap JSON in prose or markdown fences more often than not, so
// parsing is strict-first with a brace-extraction repair pass.
var jsonFragmentRe = regexp.MustCompile(`(?s)\{.*\}`)

type rawSpeakerAnalysis struct {
	Speaker           string                     `json:"speaker"`
	Scores            map[string]json.RawMessage `json:"scores"`
	Explanations      map[string]string          `json:"explanations"`
	Highlights        []string                   `json:"highlights"`
	Improvements      []string                   `json:"improvements"`
	OverallAssessment string                     `json:"overall_assessment"`
}

// parseSpeakerAnalysis converts one model response into a normalized
// SpeakerAnalysis. It never fails: unparseable responses degrade to the
// neutral analysis so one bad completion cannot sink the whole debate.
func parseSpeakerAnalysis(response, speaker string) models.SpeakerAnalysis {
	raw, ok := decodeRepaired[rawSpeakerAnalysis](response)
	if !ok {
		return NeutralSpeakerAnalysis(speaker)
	}

	out := models.SpeakerAnalysis{
		Speaker:           raw.Speaker,
		Scores:            make(map[string]float64, len(models.Categories)),
		Explanations:      make(map[string]string, len(models.Categories)),
		Highlights:        raw.Highlights,
		Improvements:      raw.Improvements,
		OverallAssessment: raw.OverallAssessment,
	}
	for _, key := range models.Categories {
		out.Scores[key] = parseScore(raw.Scores[key])
		out.Explanations[key] = raw.Explanations[key]
	}
	return normalizeSpeakerAnalysis(out, speaker)
}

// parseComparison converts the comparative response. Like the per-speaker
// path it degrades to the neutral comparison instead of failing.
func parseComparison(response string) models.Comparison {
	raw, ok := decodeRepaired[models.Comparison](response)
	if !ok {
		return NeutralComparison()
	}
	return normalizeComparison(raw)
}

// decodeRepaired tries a strict decode first, then retries on the largest
// brace-delimited fragment of the response.
func decodeRepaired[T any](response string) (T, bool) {
	var out T
	if err := json.Unmarshal([]byte(response), &out); err == nil {
		return out, true
	}
	fragment := jsonFragmentRe.FindString(response)
	if fragment == "" {
		return out, false
	}
	var repaired T
	if err := json.Unmarshal([]byte(fragment), &repaired); err != nil {
		return out, false
	}
	return repaired, true
}

// parseScore accepts scores as JSON numbers or numeric strings; anything
// else normalizes later to the neutral midpoint.
func parseScore(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}
