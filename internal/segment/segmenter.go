// Package segment attributes portions of a debate transcript to its
// speakers using name-prefix heuristics, with a round-robin fallback
// when attribution fails.
package segment

import (
	"regexp"
	"sort"
	"strings"
)

// minSpeakerChars is the smallest per-speaker text that still supports a
// meaningful evaluation. Below it the heuristic result is discarded and
// the round-robin fallback is used instead.
const minSpeakerChars = 50

// minBlockChars filters out noise blocks (stray fragments, lone words).
const minBlockChars = 20

var (
	blockSplitRe    = regexp.MustCompile(`\n\s*\n|\. [A-Z]`)
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
)

// speakerMatcher holds the compiled attribution patterns for one speaker,
// ordered from strongest to weakest signal.
type speakerMatcher struct {
	name     string
	patterns []*regexp.Regexp
}

func compileMatchers(speakers []string) []speakerMatcher {
	matchers := make([]speakerMatcher, 0, len(speakers))
	for _, name := range speakers {
		quoted := regexp.QuoteMeta(name)
		first := regexp.QuoteMeta(strings.Fields(name)[0])
		matchers = append(matchers, speakerMatcher{
			name: name,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^\s*` + quoted + `\s*[:;]`),
				regexp.MustCompile(`(?i)\b` + quoted + `\b.*?[:;]`),
				regexp.MustCompile(`(?i)^\s*` + first + `\s*[:;]`),
				regexp.MustCompile(`(?i)\b` + quoted + `\b`),
			},
		})
	}
	return matchers
}

// Match returns the first speaker (in list order) whose patterns match the
// block. Ties between speakers resolve to whoever appears earlier in the
// speakers slice.
func Match(block string, speakers []string) (string, bool) {
	return match(block, compileMatchers(speakers))
}

func match(block string, matchers []speakerMatcher) (string, bool) {
	for _, m := range matchers {
		for _, p := range m.patterns {
			if p.MatchString(block) {
				return m.name, true
			}
		}
	}
	return "", false
}

// SplitBlocks breaks a transcript into attribution units: paragraphs and
// sentence-boundary fragments longer than minBlockChars.
func SplitBlocks(text string) []string {
	raw := blockSplitRe.Split(text, -1)
	blocks := make([]string, 0, len(raw))
	for _, b := range raw {
		if len(strings.TrimSpace(b)) > minBlockChars {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// Assign attributes transcript text to each speaker. Blocks matching a
// speaker pattern switch the current speaker; unmatched blocks follow the
// current speaker, or queue until one is known. Queued text lands on the
// speaker with the least material. If attribution leaves any speaker under
// minSpeakerChars, the whole result is replaced by a round-robin sentence
// split so every speaker still gets distinct text.
func Assign(text string, speakers []string) map[string]string {
	texts := make(map[string]string, len(speakers))
	for _, s := range speakers {
		texts[s] = ""
	}

	matchers := compileMatchers(speakers)

	var currentSpeaker string
	var unassigned []string

	for _, block := range SplitBlocks(text) {
		if name, ok := match(block, matchers); ok {
			currentSpeaker = name
			texts[name] += block + " "
			continue
		}
		if currentSpeaker != "" {
			texts[currentSpeaker] += block + " "
		} else {
			unassigned = append(unassigned, block)
		}
	}

	if len(unassigned) > 0 {
		allEmpty := true
		for _, s := range speakers {
			if strings.TrimSpace(texts[s]) != "" {
				allEmpty = false
				break
			}
		}
		if allEmpty {
			return roundRobin(text, speakers)
		}
		texts[leastText(texts, speakers)] += " " + strings.Join(unassigned, " ")
	}

	for _, s := range speakers {
		texts[s] = strings.TrimSpace(texts[s])
		if len(texts[s]) < minSpeakerChars {
			return roundRobin(text, speakers)
		}
	}
	return texts
}

// leastText returns the speaker with the shortest accumulated text,
// breaking ties by position in the speakers slice.
func leastText(texts map[string]string, speakers []string) string {
	ordered := make([]string, len(speakers))
	copy(ordered, speakers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(texts[ordered[i]]) < len(texts[ordered[j]])
	})
	return ordered[0]
}

// roundRobin deals sentences to speakers in turn. It guarantees distinct,
// non-empty text per speaker whenever the transcript has at least as many
// sentences as speakers.
func roundRobin(text string, speakers []string) map[string]string {
	var sentences []string
	for _, s := range sentenceSplitRe.Split(text, -1) {
		if len(strings.TrimSpace(s)) > 10 {
			sentences = append(sentences, strings.TrimSpace(s))
		}
	}

	texts := make(map[string]string, len(speakers))
	for i, speaker := range speakers {
		var own []string
		for j := i; j < len(sentences); j += len(speakers) {
			own = append(own, sentences[j])
		}
		if len(own) == 0 {
			// Fewer sentences than speakers; better an empty buffer than a
			// lone period masquerading as speech.
			texts[speaker] = ""
			continue
		}
		texts[speaker] = strings.Join(own, ". ") + "."
	}
	return texts
}
