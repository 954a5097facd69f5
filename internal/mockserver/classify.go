package mockserver

import "strings"

type rule struct {
	keywords   []string
	risk       string
	confidence float64
}

// Evaluated in order; the first match wins.
var rules = []rule{
	{[]string{"spam", "scam", "fraud", "phishing"}, "HIGH", 0.90},
	{[]string{"violence", "kill", "attack", "weapon"}, "HIGH", 0.88},
	{[]string{"sex", "porn", "xxx", "adult"}, "HIGH", 0.92},
	{[]string{"illegal", "drug", "smuggle"}, "HIGH", 0.87},
	{[]string{"maybe", "suspicious", "unclear"}, "MEDIUM", 0.65},
}

// Classify returns the risk level and confidence for text.
func Classify(text string) (string, float64) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.risk, r.confidence
			}
		}
	}
	return "LOW", 0.95
}
