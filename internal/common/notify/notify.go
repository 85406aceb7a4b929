// Package notify publishes terminal scenario outcomes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/models"
)

// Notifier receives every terminal outcome.
type Notifier interface {
	Publish(ctx context.Context, outcome models.ScenarioOutcome) error
}

// Publisher is the subset of the SNS API used here.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes outcomes as JSON messages to a topic.
type SNSNotifier struct {
	client   Publisher
	topicARN string
	logger   logger.Logger
}

// NewSNSClient loads the default AWS credential chain for region.
func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sns.NewFromConfig(cfg), nil
}

func NewSNSNotifier(client Publisher, topicARN string, log logger.Logger) *SNSNotifier {
	return &SNSNotifier{
		client:   client,
		topicARN: topicARN,
		logger:   logger.ForComponent(log, "sns-notifier"),
	}
}

func (n *SNSNotifier) Publish(ctx context.Context, outcome models.ScenarioOutcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String(fmt.Sprintf("Scenario %s %s", outcome.ScenarioName, outcome.Status)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(outcome.Status)),
			},
			"scenarioId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(outcome.ScenarioID),
			},
		},
	})
	if err != nil {
		return errors.NewExternalServiceError("sns", err)
	}

	n.logger.Info("Scenario outcome published", map[string]interface{}{
		"scenarioId": outcome.ScenarioID,
		"status":     outcome.Status,
		"messageId":  aws.ToString(out.MessageId),
	})
	return nil
}

// LogNotifier writes outcomes to the log only.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.ForComponent(log, "notifier")}
}

func (n *LogNotifier) Publish(ctx context.Context, outcome models.ScenarioOutcome) error {
	n.logger.Info("Scenario finished", map[string]interface{}{
		"scenarioId":   outcome.ScenarioID,
		"scenarioName": outcome.ScenarioName,
		"status":       outcome.Status,
		"featureCount": outcome.FeatureCount,
	})
	return nil
}
