package moderation

import (
	"fmt"
	"sort"
	"strings"
)

// Classification is the structured output of a classifier adapter: the
// triggered taxonomy labels with per-label confidences, an overall severity
// ordinal, sentiment polarity, and the scorer's raw confidence in the
// strongest signal.
type Classification struct {
	Labels        []Label
	Confidences   map[Label]float64
	Severity      Severity
	Sentiment     Sentiment
	RawConfidence float64
}

// Triggered returns true if any taxonomy label fired.
func (c Classification) Triggered() bool {
	return len(c.Labels) > 0
}

// Validate rejects classifications that fall outside the fixed taxonomy or
// carry out-of-range ordinals. Adapters call this at the scorer boundary so
// malformed upstream output never reaches the decision policy.
func (c Classification) Validate() error {
	for _, l := range c.Labels {
		if !l.Valid() {
			return fmt.Errorf("unknown moderation label: %q", l)
		}
	}
	if !c.Severity.Valid() {
		return fmt.Errorf("severity out of range: %d", int(c.Severity))
	}
	if !c.Sentiment.Valid() {
		return fmt.Errorf("invalid sentiment: %q", c.Sentiment)
	}
	if c.RawConfidence < 0 || c.RawConfidence > 1 {
		return fmt.Errorf("confidence out of range: %v", c.RawConfidence)
	}
	return nil
}

// Decision is the outcome of applying Policy to a Classification.
type Decision struct {
	Action     Action
	Confidence float64
	Reasoning  string
}

// Policy holds the tunable knobs of the decision function.
//
// ProfanityPredicate identifies classifications whose only signal is
// profanity-style toxicity; a severe verdict for such a classification is
// downgraded one step when the scorer is not confident. The boundary between
// profanity-style toxicity and other toxicity is deliberately a predicate
// rather than a constant.
type Policy struct {
	// ConfidenceThreshold is the minimum raw confidence required to leave
	// the allow default once labels have fired. Below it the verdict is
	// review, never allow.
	ConfidenceThreshold float64

	// ProfanityDowngradeBelow downgrades reject to review when the predicate
	// matches and raw confidence is below this bound.
	ProfanityDowngradeBelow float64

	ProfanityPredicate func(Classification) bool
}

const (
	defaultConfidenceThreshold     = 0.7
	defaultProfanityDowngradeBelow = 0.8
)

// DefaultPolicy returns the production decision policy.
func DefaultPolicy() Policy {
	return Policy{
		ConfidenceThreshold:     defaultConfidenceThreshold,
		ProfanityDowngradeBelow: defaultProfanityDowngradeBelow,
		ProfanityPredicate:      SoleToxicitySignal,
	}
}

// SoleToxicitySignal is the default profanity predicate: the classification
// triggered exactly one label and it is toxicity. Mild swearing tends to land
// here, while slurs and targeted abuse co-trigger hate or harassment.
func SoleToxicitySignal(c Classification) bool {
	return len(c.Labels) == 1 && c.Labels[0] == LabelToxicity
}

func (p Policy) sanitized() Policy {
	if p.ConfidenceThreshold <= 0 || p.ConfidenceThreshold > 1 {
		p.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if p.ProfanityDowngradeBelow <= 0 || p.ProfanityDowngradeBelow > 1 {
		p.ProfanityDowngradeBelow = defaultProfanityDowngradeBelow
	}
	if p.ProfanityPredicate == nil {
		p.ProfanityPredicate = SoleToxicitySignal
	}
	return p
}

// Decide maps a classification to a verdict. It is a pure function of its
// arguments.
//
// Sentiment never drives suppression: text with no triggered taxonomy label
// is allowed no matter how negative it reads. Once labels have fired, the
// severity ordinal picks the verdict, an under-confident profanity-only
// signal is softened from reject to review, and anything below the
// confidence threshold falls back to review rather than allow.
func Decide(c Classification, p Policy) Decision {
	p = p.sanitized()

	if !c.Triggered() {
		return Decision{
			Action:     ActionAllow,
			Confidence: c.RawConfidence,
			Reasoning:  "no policy violations detected",
		}
	}

	action := severityAction(c.Severity)

	if action == ActionReject &&
		c.RawConfidence < p.ProfanityDowngradeBelow &&
		p.ProfanityPredicate(c) {
		action = ActionReview
	}

	if c.RawConfidence < p.ConfidenceThreshold && action != ActionReview {
		action = ActionReview
	}

	return Decision{
		Action:     action,
		Confidence: c.RawConfidence,
		Reasoning:  reasoning(c),
	}
}

func severityAction(s Severity) Action {
	switch s {
	case SeveritySevere:
		return ActionReject
	case SeverityModerate:
		return ActionReview
	default:
		return ActionAllow
	}
}

// reasoning builds the deterministic audit string shipped in the webhook
// payload: triggered labels with confidences in canonical order, then the
// severity.
func reasoning(c Classification) string {
	labels := make([]Label, len(c.Labels))
	copy(labels, c.Labels)
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		if conf, ok := c.Confidences[l]; ok {
			parts = append(parts, fmt.Sprintf("%s (%.2f)", l, conf))
		} else {
			parts = append(parts, string(l))
		}
	}
	return fmt.Sprintf("detected: %s | severity: %s", strings.Join(parts, ", "), c.Severity)
}
