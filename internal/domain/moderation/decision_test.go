package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideNoLabelsAllowsRegardlessOfSentiment(t *testing.T) {
	for _, s := range []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative} {
		c := Classification{
			Labels:        nil,
			Severity:      SeverityClean,
			Sentiment:     s,
			RawConfidence: 0.92,
		}
		d := Decide(c, DefaultPolicy())
		assert.Equal(t, ActionAllow, d.Action, "sentiment %s", s)
		assert.Equal(t, "no policy violations detected", d.Reasoning)
	}
}

func TestDecideSeverityMapping(t *testing.T) {
	tests := []struct {
		name     string
		labels   []Label
		severity Severity
		conf     float64
		want     Action
	}{
		{
			name:     "moderate severity reviews",
			labels:   []Label{LabelSpam},
			severity: SeverityModerate,
			conf:     0.9,
			want:     ActionReview,
		},
		{
			name:     "severe hate rejects",
			labels:   []Label{LabelHate, LabelToxicity},
			severity: SeveritySevere,
			conf:     0.95,
			want:     ActionReject,
		},
		{
			name:     "severe threat rejects",
			labels:   []Label{LabelThreat},
			severity: SeveritySevere,
			conf:     0.88,
			want:     ActionReject,
		},
		{
			name:     "clean severity with label stays allow",
			labels:   []Label{LabelSpam},
			severity: SeverityClean,
			conf:     0.9,
			want:     ActionAllow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classification{
				Labels:        tt.labels,
				Severity:      tt.severity,
				Sentiment:     SentimentNeutral,
				RawConfidence: tt.conf,
			}
			assert.Equal(t, tt.want, Decide(c, DefaultPolicy()).Action)
		})
	}
}

func TestDecideToxicitySeverityByConfidence(t *testing.T) {
	base := Classification{
		Labels:      []Label{LabelToxicity},
		Confidences: map[Label]float64{LabelToxicity: 0.95},
		Severity:    SeveritySevere,
		Sentiment:   SentimentNegative,
	}

	confident := base
	confident.RawConfidence = 0.95
	assert.Equal(t, ActionReject, Decide(confident, DefaultPolicy()).Action)

	uncertain := base
	uncertain.RawConfidence = 0.6
	assert.Equal(t, ActionReview, Decide(uncertain, DefaultPolicy()).Action)
}

func TestDecideProfanityDowngrade(t *testing.T) {
	// Sole toxicity signal, confident enough to pass the threshold but not
	// the profanity bound: reject softens to review.
	c := Classification{
		Labels:        []Label{LabelToxicity},
		Confidences:   map[Label]float64{LabelToxicity: 0.75},
		Severity:      SeveritySevere,
		Sentiment:     SentimentNegative,
		RawConfidence: 0.75,
	}
	assert.Equal(t, ActionReview, Decide(c, DefaultPolicy()).Action)

	// A second harmful label defeats the default predicate.
	c.Labels = []Label{LabelToxicity, LabelHate}
	assert.Equal(t, ActionReject, Decide(c, DefaultPolicy()).Action)

	// A custom predicate widens the downgrade.
	p := DefaultPolicy()
	p.ProfanityPredicate = func(Classification) bool { return true }
	assert.Equal(t, ActionReview, Decide(c, p).Action)
}

func TestDecideBelowThresholdNeverAllows(t *testing.T) {
	c := Classification{
		Labels:        []Label{LabelHarassment},
		Severity:      SeveritySevere,
		Sentiment:     SentimentNegative,
		RawConfidence: 0.3,
	}
	d := Decide(c, DefaultPolicy())
	assert.Equal(t, ActionReview, d.Action)
}

func TestDecideReasoningDeterministic(t *testing.T) {
	c := Classification{
		Labels: []Label{LabelToxicity, LabelHate},
		Confidences: map[Label]float64{
			LabelToxicity: 0.81,
			LabelHate:     0.93,
		},
		Severity:      SeveritySevere,
		Sentiment:     SentimentNegative,
		RawConfidence: 0.93,
	}
	d1 := Decide(c, DefaultPolicy())
	// reversed label order yields the same string
	c.Labels = []Label{LabelHate, LabelToxicity}
	d2 := Decide(c, DefaultPolicy())

	require.Equal(t, d1.Reasoning, d2.Reasoning)
	assert.Equal(t, "detected: hate (0.93), toxicity (0.81) | severity: severe", d1.Reasoning)
}

func TestDecideZeroPolicyFallsBackToDefaults(t *testing.T) {
	c := Classification{
		Labels:        []Label{LabelHate},
		Severity:      SeveritySevere,
		Sentiment:     SentimentNegative,
		RawConfidence: 0.95,
	}
	assert.Equal(t, ActionReject, Decide(c, Policy{}).Action)

	c.RawConfidence = 0.5
	assert.Equal(t, ActionReview, Decide(c, Policy{}).Action)
}

func TestClassificationValidate(t *testing.T) {
	valid := Classification{
		Labels:        []Label{LabelPII},
		Severity:      SeverityModerate,
		Sentiment:     SentimentNeutral,
		RawConfidence: 0.8,
	}
	require.NoError(t, valid.Validate())

	unknown := valid
	unknown.Labels = []Label{"self_harm"}
	assert.Error(t, unknown.Validate())

	badSeverity := valid
	badSeverity.Severity = 7
	assert.Error(t, badSeverity.Validate())

	badSentiment := valid
	badSentiment.Sentiment = "angry"
	assert.Error(t, badSentiment.Validate())

	badConfidence := valid
	badConfidence.RawConfidence = 1.2
	assert.Error(t, badConfidence.Validate())
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel("  Toxicity ")
	require.NoError(t, err)
	assert.Equal(t, LabelToxicity, l)

	_, err = ParseLabel("violence")
	assert.Error(t, err)
}
