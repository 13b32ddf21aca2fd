// Package analysis holds the static configuration for the content scoring
// pipeline: the languages the analyzer accepts and the rubric weights used
// to combine per-criterion scores. The data is compiled in rather than
// stored, so the API can serve it without a database round trip and the
// weights are reviewed like code.
package analysis

// Language is one supported analysis language.
type Language struct {
	Code string `json:"code"` // BCP 47 primary subtag
	Name string `json:"name"`
}

// Criterion is one rubric axis with its weight in the overall score.
type Criterion struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

var languages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "it", Name: "Italian"},
	{Code: "hi", Name: "Hindi"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "zh", Name: "Chinese"},
}

// rubric weights must sum to 1; TestRubricWeightsSumToOne enforces it.
var rubric = []Criterion{
	{Key: "clarity", Label: "Clarity", Weight: 0.25},
	{Key: "accuracy", Label: "Accuracy", Weight: 0.25},
	{Key: "structure", Label: "Structure", Weight: 0.20},
	{Key: "originality", Label: "Originality", Weight: 0.15},
	{Key: "engagement", Label: "Engagement", Weight: 0.15},
}

// Languages returns the supported languages in display order. The slice is a
// copy; callers may not mutate the package data.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// Supported reports whether the analyzer accepts the language code.
func Supported(code string) bool {
	for _, l := range languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// Rubric returns the scoring criteria in weight order.
func Rubric() []Criterion {
	out := make([]Criterion, len(rubric))
	copy(out, rubric)
	return out
}

// Score combines per-criterion scores (0..1) into a weighted total. Missing
// criteria count as zero; unknown keys are ignored.
func Score(byCriterion map[string]float64) float64 {
	var total float64
	for _, c := range rubric {
		total += c.Weight * clamp01(byCriterion[c.Key])
	}
	return total
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
