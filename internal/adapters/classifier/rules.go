package classifier

import (
	"github.com/target/modpipe/internal/domain/lexicon"
	"github.com/target/modpipe/internal/domain/moderation"
)

// Rule layer confidences. PII and hate matches are near-certain because the
// patterns are exact; sexual and profanity entries carry slightly more
// ambiguity from safe-context handling.
const (
	piiConfidence      = 0.95
	hateConfidence     = 0.95
	sexualConfidence   = 0.9
	toxicityConfidence = 0.9
)

// ruleCheck evaluates the lexicon layers in priority order: PII first, then
// hate speech, sexual content and critical profanity. The first layer that
// fires decides the classification.
func ruleCheck(raw, stripped string) (moderation.Classification, bool) {
	if pii := lexicon.DetectPII(raw); pii.Detected() {
		return ruleClassification(moderation.LabelPII, moderation.SeverityModerate, piiConfidence), true
	}

	if hits := lexicon.HateSpeech(stripped); len(hits) > 0 {
		return ruleClassification(moderation.LabelHate, moderation.SeveritySevere, hateConfidence), true
	}

	if hits := lexicon.SexualContent(stripped); len(hits) > 0 {
		return ruleClassification(moderation.LabelSexual, moderation.SeveritySevere, sexualConfidence), true
	}

	if hits := lexicon.CriticalProfanity(stripped); len(hits) > 0 {
		return ruleClassification(moderation.LabelToxicity, moderation.SeveritySevere, toxicityConfidence), true
	}

	return moderation.Classification{}, false
}

func ruleClassification(label moderation.Label, severity moderation.Severity, confidence float64) moderation.Classification {
	return moderation.Classification{
		Labels:        []moderation.Label{label},
		Confidences:   map[moderation.Label]float64{label: confidence},
		Severity:      severity,
		Sentiment:     moderation.DeriveSentiment([]moderation.Label{label}),
		RawConfidence: confidence,
	}
}
