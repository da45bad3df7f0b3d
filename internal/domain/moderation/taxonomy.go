// Package moderation defines the fixed content-safety taxonomy and the pure
// decision policy that maps classifier output to an actionable verdict.
package moderation

import (
	"fmt"
	"strings"
)

// Label is one category from the fixed harmful-content taxonomy. Classifier
// adapters must reject anything outside this set at the boundary.
type Label string

const (
	LabelToxicity   Label = "toxicity"
	LabelHate       Label = "hate"
	LabelHarassment Label = "harassment"
	LabelThreat     Label = "threat"
	LabelSexual     Label = "sexual"
	LabelSpam       Label = "spam"
	LabelPII        Label = "pii"
)

// AllLabels lists the taxonomy in canonical order.
var AllLabels = []Label{
	LabelToxicity,
	LabelHate,
	LabelHarassment,
	LabelThreat,
	LabelSexual,
	LabelSpam,
	LabelPII,
}

// Valid returns true if the label belongs to the fixed taxonomy.
func (l Label) Valid() bool {
	switch l {
	case LabelToxicity, LabelHate, LabelHarassment, LabelThreat,
		LabelSexual, LabelSpam, LabelPII:
		return true
	}
	return false
}

// Harmful returns true for labels that may trigger suppression on their own.
// Spam is actionable too but is kept distinct in reasoning text.
func (l Label) Harmful() bool {
	switch l {
	case LabelToxicity, LabelHate, LabelHarassment, LabelThreat,
		LabelSexual, LabelPII:
		return true
	}
	return false
}

// ParseLabel converts an external label string into a taxonomy Label.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown moderation label: %q", s)
	}
	return l, nil
}

// Severity summarizes how strongly a job's labels warrant action.
type Severity int

const (
	SeverityClean    Severity = 0
	SeverityModerate Severity = 1
	SeveritySevere   Severity = 2
)

// Valid returns true if the severity is one of the defined ordinals.
func (s Severity) Valid() bool {
	return s >= SeverityClean && s <= SeveritySevere
}

func (s Severity) String() string {
	switch s {
	case SeverityClean:
		return "clean"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Action is the final moderation verdict.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionReview Action = "review"
	ActionReject Action = "reject"
)

// Valid returns true if the action is one of the defined verdicts.
func (a Action) Valid() bool {
	return a == ActionAllow || a == ActionReview || a == ActionReject
}

// Sentiment is the coarse polarity of the analyzed text. It is reported to
// clients but never drives suppression on its own.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid returns true if the sentiment is one of the defined polarities.
func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNeutral || s == SentimentNegative
}

// DeriveSentiment infers polarity from the triggered labels when the scorer
// does not report one. Toxicity and hate read as negative, a clean result as
// positive, anything else as neutral.
func DeriveSentiment(labels []Label) Sentiment {
	if len(labels) == 0 {
		return SentimentPositive
	}
	for _, l := range labels {
		if l == LabelToxicity || l == LabelHate {
			return SentimentNegative
		}
	}
	return SentimentNeutral
}
