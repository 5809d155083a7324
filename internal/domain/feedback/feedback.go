// Package feedback maps a match score to a qualitative tier and message.
package feedback

import "fmt"

// Tier is the qualitative band a score falls into.
type Tier string

// Feedback tiers.
const (
	Strong  Tier = "strong"
	Average Tier = "average"
	Weak    Tier = "weak"
)

// Default tier thresholds, inclusive lower bounds.
const (
	DefaultStrongThreshold  = 75.0
	DefaultAverageThreshold = 50.0
)

// Note accompanies every result.
const Note = "This is an approximate semantic match, simulating basic ATS logic."

var messages = map[Tier]string{
	Strong:  "Great! Your resume aligns very well with the job description.",
	Average: "Average match. Consider improving keywords and role-specific content.",
	Weak:    "Low match. Consider rewriting your resume to better fit the job description.",
}

// IsValid checks if the tier is one of the supported values.
func (t Tier) IsValid() bool {
	return t == Strong || t == Average || t == Weak
}

// Message returns the user-facing advice for the tier.
func (t Tier) Message() string { return messages[t] }

// Classifier assigns tiers using two thresholds.
type Classifier struct {
	strong  float64
	average float64
}

// DefaultClassifier uses 75 and 50.
func DefaultClassifier() Classifier {
	return Classifier{strong: DefaultStrongThreshold, average: DefaultAverageThreshold}
}

// NewClassifier validates 0 <= average < strong <= 100.
func NewClassifier(strong, average float64) (Classifier, error) {
	if average < 0 || strong > 100 || average >= strong {
		return Classifier{}, fmt.Errorf(
			"thresholds must satisfy 0 <= average < strong <= 100, got average=%v strong=%v",
			average, strong,
		)
	}
	return Classifier{strong: strong, average: average}, nil
}

// Classify returns Strong for score >= strong, Average for score >= average, Weak otherwise.
func (c Classifier) Classify(score float64) Tier {
	switch {
	case score >= c.strong:
		return Strong
	case score >= c.average:
		return Average
	default:
		return Weak
	}
}

// Classify uses the default thresholds.
func Classify(score float64) Tier {
	return DefaultClassifier().Classify(score)
}
