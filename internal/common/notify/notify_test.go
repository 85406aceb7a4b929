package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/models"
)

type fakePublisher struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSNSNotifier_Publish(t *testing.T) {
	pub := &fakePublisher{}
	n := NewSNSNotifier(pub, "arn:aws:sns:us-west-2:123:scenarios", logger.NewTestLogger(t))

	outcome := models.ScenarioOutcome{
		ScenarioID:   "7",
		ScenarioName: "Plan A",
		Status:       models.StatusSuccess,
		FeatureCount: 3,
	}
	require.NoError(t, n.Publish(context.Background(), outcome))
	require.Len(t, pub.inputs, 1)

	in := pub.inputs[0]
	assert.Equal(t, "arn:aws:sns:us-west-2:123:scenarios", aws.ToString(in.TopicArn))
	assert.Equal(t, "SUCCESS", aws.ToString(in.MessageAttributes["status"].StringValue))

	var decoded models.ScenarioOutcome
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.Message)), &decoded))
	assert.Equal(t, outcome, decoded)
}

func TestSNSNotifier_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("throttled")}
	n := NewSNSNotifier(pub, "arn", logger.NewTestLogger(t))

	err := n.Publish(context.Background(), models.ScenarioOutcome{ScenarioID: "1", Status: models.StatusFailure})
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeExternalService))
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(logger.NewTestLogger(t))
	assert.NoError(t, n.Publish(context.Background(), models.ScenarioOutcome{ScenarioID: "1"}))
}
