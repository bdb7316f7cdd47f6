package provision

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"

	"github.com/piwi3910/topiary/pkg/telemetry"
)

// queueProtocol is the SNS delivery protocol for SQS endpoints.
const queueProtocol = "sqs"

// SubscriptionProvisioner idempotently ensures a topic delivers into a
// queue. Subscribe is idempotent at the API level for an identical
// (topic, protocol, endpoint) triple, and SQS endpoints do not require
// confirmation, so a successful call always carries the subscription ARN.
type SubscriptionProvisioner struct {
	client  SNSAPI
	topics  *TopicProvisioner
	log     zerolog.Logger
	metrics *telemetry.Metrics
}

// NewSubscriptionProvisioner creates a subscription provisioner that
// ensures topics through the given topic provisioner before subscribing.
func NewSubscriptionProvisioner(client SNSAPI, topics *TopicProvisioner, log zerolog.Logger, metrics *telemetry.Metrics) *SubscriptionProvisioner {
	return &SubscriptionProvisioner{
		client:  client,
		topics:  topics,
		log:     log.With().Str("component", "subscriptions").Logger(),
		metrics: metrics,
	}
}

// EnsureSubscription ensures the topic named by logicalTopic exists and
// is subscribed to the queue identified by queueARN.
func (p *SubscriptionProvisioner) EnsureSubscription(ctx context.Context, queueARN, logicalTopic string) (SubscriptionRecord, error) {
	topic, err := p.topics.EnsureTopic(ctx, logicalTopic)
	if err != nil {
		p.metrics.RecordEnsure("subscription", false)
		return SubscriptionRecord{}, err
	}

	p.log.Debug().
		Str("topic", logicalTopic).
		Str("topic_arn", topic.ARN).
		Str("queue_arn", queueARN).
		Msg("Ensuring subscription")

	out, err := p.client.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn:              aws.String(topic.ARN),
		Protocol:              aws.String(queueProtocol),
		Endpoint:              aws.String(queueARN),
		ReturnSubscriptionArn: true,
	})
	if err != nil {
		p.metrics.RecordEnsure("subscription", false)
		return SubscriptionRecord{}, NewServiceError("subscribe call failed", err).
			WithResource(logicalTopic).
			WithOperation("subscribe")
	}

	if out.SubscriptionArn == nil || *out.SubscriptionArn == "" {
		p.metrics.RecordEnsure("subscription", false)
		return SubscriptionRecord{}, NewContractViolation("subscribe succeeded but returned no subscription ARN").
			WithResource(logicalTopic).
			WithOperation("subscribe")
	}

	p.metrics.RecordEnsure("subscription", true)
	p.log.Info().
		Str("topic", logicalTopic).
		Str("subscription_arn", *out.SubscriptionArn).
		Msg("Subscription ensured")
	return SubscriptionRecord{ARN: *out.SubscriptionArn}, nil
}
