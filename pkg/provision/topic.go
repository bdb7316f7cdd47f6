package provision

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"

	"github.com/piwi3910/topiary/pkg/envtag"
	"github.com/piwi3910/topiary/pkg/telemetry"
)

// TopicProvisioner idempotently ensures SNS topics exist. CreateTopic is
// idempotent at the API level: repeated calls with the same name return
// the same ARN, so no adoption path is needed for topics.
type TopicProvisioner struct {
	client  SNSAPI
	env     envtag.Tag
	log     zerolog.Logger
	metrics *telemetry.Metrics
}

// NewTopicProvisioner creates a topic provisioner for the given
// environment.
func NewTopicProvisioner(client SNSAPI, env envtag.Tag, log zerolog.Logger, metrics *telemetry.Metrics) *TopicProvisioner {
	return &TopicProvisioner{
		client:  client,
		env:     env,
		log:     log.With().Str("component", "topics").Logger(),
		metrics: metrics,
	}
}

// EnsureTopic ensures the topic named by logical exists in this
// environment and returns its record.
func (p *TopicProvisioner) EnsureTopic(ctx context.Context, logical string) (TopicRecord, error) {
	name := envtag.PhysicalName(logical, p.env)
	p.log.Debug().Str("topic", logical).Str("physical_name", name).Msg("Ensuring topic")

	out, err := p.client.CreateTopic(ctx, &sns.CreateTopicInput{
		Name: aws.String(name),
	})
	if err != nil {
		p.metrics.RecordEnsure("topic", false)
		return TopicRecord{}, NewServiceError("topic creation failed", err).
			WithResource(logical).
			WithOperation("create-topic")
	}

	if out.TopicArn == nil || *out.TopicArn == "" {
		p.metrics.RecordEnsure("topic", false)
		return TopicRecord{}, NewContractViolation("topic creation succeeded but returned no ARN").
			WithResource(logical).
			WithOperation("create-topic")
	}

	p.metrics.RecordEnsure("topic", true)
	p.log.Info().Str("topic", logical).Str("arn", *out.TopicArn).Msg("Topic ensured")
	return TopicRecord{ARN: *out.TopicArn}, nil
}
