package analysis

import (
	"fmt"
	"strings"

	"github.com/mavalente92/debatelens/pkg/models"
)

// systemPrompt steers the model towards differentiated, critical scoring.
// Identical scores across speakers defeat the comparison step.
const systemPrompt = "You are an expert debate analyst. Provide precise, " +
	"differentiated evaluations for each speaker and avoid identical scores. " +
	"Be critical and objective, highlighting the real differences between participants."

var categoryLabels = map[string]string{
	models.CategoryTechnicalRigor:       "Technical Rigor",
	models.CategoryDataUsage:            "Data Usage",
	models.CategoryCommunicationStyle:   "Communication Style",
	models.CategoryFocus:                "Focus",
	models.CategoryPracticalOrientation: "Practical Orientation",
	models.CategoryAccessibility:        "Accessibility",
}

var categoryDescriptions = map[string]string{
	models.CategoryTechnicalRigor:       "precision and accuracy of the information presented",
	models.CategoryDataUsage:            "quantity and quality of data, statistics and cited sources",
	models.CategoryCommunicationStyle:   "clarity, effectiveness and professionalism of delivery",
	models.CategoryFocus:                "adherence to the main topic and argumentative coherence",
	models.CategoryPracticalOrientation: "concreteness of proposals and applicability of solutions",
	models.CategoryAccessibility:        "ability to make complex concepts accessible",
}

// speakerPrompt builds the per-participant evaluation prompt. The response
// contract is spelled out inline because free-tier models follow embedded
// schemas far more reliably than schema parameters.
func speakerPrompt(text, speaker, topic string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the following debate contribution by %s.", speaker)
	if topic != "" {
		fmt.Fprintf(&b, " Debate topic: %s.", topic)
	}
	b.WriteString("\n\nScore the text from 1 to 10 on these 6 criteria:\n\n")
	for i, key := range models.Categories {
		fmt.Fprintf(&b, "%d. **%s**: %s\n", i+1, categoryLabels[key], categoryDescriptions[key])
	}

	b.WriteString("\nTEXT TO ANALYZE:\n\"\"\"\n")
	b.WriteString(text)
	b.WriteString("\n\"\"\"\n\nRespond EXCLUSIVELY with valid JSON:\n{\n")
	fmt.Fprintf(&b, "  \"speaker\": %q,\n  \"scores\": {\n", speaker)
	writeKeyLines(&b, "<number 1-10>")
	b.WriteString("  },\n  \"explanations\": {\n")
	writeKeyLines(&b, "\"<short explanation>\"")
	b.WriteString("  },\n")
	b.WriteString("  \"highlights\": [\"<strength 1>\", \"<strength 2>\"],\n")
	b.WriteString("  \"improvements\": [\"<improvement area 1>\", \"<improvement area 2>\"],\n")
	b.WriteString("  \"overall_assessment\": \"<general assessment in 2-3 sentences>\"\n}")

	return b.String()
}

func writeKeyLines(b *strings.Builder, placeholder string) {
	for i, key := range models.Categories {
		comma := ","
		if i == len(models.Categories)-1 {
			comma = ""
		}
		fmt.Fprintf(b, "    %q: %s%s\n", key, placeholder, comma)
	}
}

// comparisonPrompt embeds each participant's normalized score table so the
// comparative call never re-derives scores from raw text.
func comparisonPrompt(analyses []models.SpeakerAnalysis, topic string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Compare the performance of these debate participants on %q:\n", topic)
	for i, a := range analyses {
		fmt.Fprintf(&b, "\nPARTICIPANT %d: %s\n", i+1, a.Speaker)
		for _, key := range models.Categories {
			fmt.Fprintf(&b, "- %s: %.1f/10\n", categoryLabels[key], a.Scores[key])
		}
	}

	b.WriteString("\nProvide an objective comparison as valid JSON:\n{\n")
	b.WriteString("  \"winner_overall\": \"<name of the overall winner>\",\n")
	b.WriteString("  \"category_winners\": {\n")
	writeKeyLines(&b, "\"<name>\"")
	b.WriteString("  },\n")
	b.WriteString("  \"summary\": \"<comparative summary in 3-4 sentences>\",\n")
	b.WriteString("  \"key_differences\": [\"<difference 1>\", \"<difference 2>\", \"<difference 3>\"]\n}")

	return b.String()
}
