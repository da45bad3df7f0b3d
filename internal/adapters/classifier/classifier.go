// Package classifier turns raw comment text into a taxonomy classification.
// A rule layer of lexicon and PII checks handles the unambiguous cases
// locally; everything else goes to the ML scoring service.
package classifier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/target/modpipe/internal/domain/moderation"
	textnorm "github.com/target/modpipe/internal/domain/text"
)

// Scorer scores text that the rule layer could not settle.
type Scorer interface {
	Score(ctx context.Context, raw, normalized string) (moderation.Classification, error)
}

// Options configures a Classifier.
type Options struct {
	Scorer Scorer
	Logger *slog.Logger
}

// Classifier composes text normalization, the rule layer and the remote
// scorer into a single classification step.
type Classifier struct {
	scorer Scorer
	logger *slog.Logger
}

// New builds a Classifier from the provided options.
func New(opts Options) (*Classifier, error) {
	if opts.Scorer == nil {
		return nil, errors.New("classifier: scorer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{scorer: opts.Scorer, logger: logger}, nil
}

// Classify normalizes the text, runs the rule layer and falls through to the
// scoring service when no rule fires. Rule hits short-circuit: they are
// cheap, deterministic and confident enough that a model opinion adds
// nothing.
func (c *Classifier) Classify(ctx context.Context, raw string) (moderation.Classification, error) {
	normalized := textnorm.Normalize(raw)
	stripped := textnorm.StripDiacritics(normalized)

	if cl, ok := ruleCheck(raw, stripped); ok {
		c.logger.DebugContext(ctx, "rule layer matched",
			"labels", cl.Labels,
			"severity", cl.Severity.String())
		return cl, nil
	}

	return c.scorer.Score(ctx, raw, normalized)
}
