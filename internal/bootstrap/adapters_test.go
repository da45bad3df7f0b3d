package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/target/modpipe/internal/adapters/classifier"
	"github.com/target/modpipe/internal/domain/model"
	"github.com/target/modpipe/internal/service"
)

// The moderation worker hands the service layer a full Classifier, never a
// bare scorer client: text normalization and the rule layer sit in front of
// every scoring call.
var _ service.TextClassifier = (*classifier.Classifier)(nil)

func TestJobRunnerLabel(t *testing.T) {
	tests := []struct {
		jobType model.JobType
		want    string
	}{
		{model.JobTypeModerateComment, "moderation"},
		{model.JobTypeDeliverWebhook, "webhook delivery"},
		{model.JobType(""), "job"},
		{model.JobType("some_other_type"), "some other type"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, jobRunnerLabel(tt.jobType))
	}
}
