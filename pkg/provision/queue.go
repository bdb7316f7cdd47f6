package provision

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/piwi3910/topiary/pkg/envtag"
	"github.com/piwi3910/topiary/pkg/telemetry"
)

// QueueProvisioner idempotently ensures SQS queues exist. Queue creation
// is not naturally idempotent across processes racing on the same name,
// so a name-exists failure is recovered by adopting the existing queue
// through a URL lookup. That is the only built-in recovery in the core.
type QueueProvisioner struct {
	client    SQSAPI
	env       envtag.Tag
	region    string
	accountID string
	log       zerolog.Logger
	metrics   *telemetry.Metrics
}

// NewQueueProvisioner creates a queue provisioner. Region and accountID
// may be empty when the caller could not resolve them; policy handling
// then depends on the environment.
func NewQueueProvisioner(client SQSAPI, env envtag.Tag, region, accountID string, log zerolog.Logger, metrics *telemetry.Metrics) *QueueProvisioner {
	return &QueueProvisioner{
		client:    client,
		env:       env,
		region:    region,
		accountID: accountID,
		log:       log.With().Str("component", "queues").Logger(),
		metrics:   metrics,
	}
}

// EnsureQueue ensures the queue named by logical exists in this
// environment, attaching the environment delivery policy when one can be
// built, and returns its URL and ARN.
func (p *QueueProvisioner) EnsureQueue(ctx context.Context, logical string) (QueueRecord, error) {
	name := envtag.PhysicalName(logical, p.env)
	p.log.Debug().Str("queue", logical).Str("physical_name", name).Msg("Ensuring queue")

	attrs, err := p.queueAttributes(name, logical)
	if err != nil {
		p.metrics.RecordEnsure("queue", false)
		return QueueRecord{}, err
	}

	url, err := p.createOrAdopt(ctx, name, logical, attrs)
	if err != nil {
		p.metrics.RecordEnsure("queue", false)
		return QueueRecord{}, err
	}

	arn, err := p.lookupARN(ctx, url, logical)
	if err != nil {
		p.metrics.RecordEnsure("queue", false)
		return QueueRecord{}, err
	}

	p.metrics.RecordEnsure("queue", true)
	p.log.Info().Str("queue", logical).Str("url", url).Str("arn", arn).Msg("Queue ensured")
	return QueueRecord{URL: url, ARN: arn}, nil
}

// queueAttributes builds the creation attributes. A policy is generated
// only when both region and account are known and the environment is
// suffixed; Local and Unknown environments may proceed bare, any other
// environment without a resolvable policy is unsafe and fails.
func (p *QueueProvisioner) queueAttributes(physicalName, logical string) (map[string]string, error) {
	hasIdentity := p.region != "" && p.accountID != ""

	switch {
	case hasIdentity && !p.env.IsUnknown():
		policy, err := buildQueuePolicy(p.region, p.accountID, physicalName, p.env.Suffix())
		if err != nil {
			return nil, NewServiceError("policy generation failed", err).
				WithResource(logical).
				WithOperation("create-queue")
		}
		return map[string]string{
			string(types.QueueAttributeNamePolicy): policy,
		}, nil

	case p.env.IsLocal() || p.env.IsUnknown():
		// No identity to scope a grant to, and nothing real to protect.
		return nil, nil

	default:
		return nil, NewPolicyUnresolvable("queue requires an access policy but region or account is unknown").
			WithResource(logical).
			WithOperation("create-queue")
	}
}

// createOrAdopt creates the queue, falling back to a URL lookup when a
// concurrent creator won the race on the name.
func (p *QueueProvisioner) createOrAdopt(ctx context.Context, physicalName, logical string, attrs map[string]string) (string, error) {
	out, err := p.client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName:  aws.String(physicalName),
		Attributes: attrs,
	})

	switch {
	case err == nil:
		if out.QueueUrl == nil || *out.QueueUrl == "" {
			return "", NewContractViolation("queue creation succeeded but returned no URL").
				WithResource(logical).
				WithOperation("create-queue")
		}
		return *out.QueueUrl, nil

	case isQueueNameExists(err):
		p.log.Info().Str("queue", logical).Msg("Queue name already exists, adopting")
		p.metrics.RecordQueueAdoption()

		urlOut, lookupErr := p.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
			QueueName: aws.String(physicalName),
		})
		if lookupErr != nil {
			return "", NewServiceError("queue URL lookup failed during adoption", lookupErr).
				WithResource(logical).
				WithOperation("get-queue-url")
		}
		if urlOut.QueueUrl == nil || *urlOut.QueueUrl == "" {
			return "", NewContractViolation("queue URL lookup succeeded but returned no URL").
				WithResource(logical).
				WithOperation("get-queue-url")
		}
		return *urlOut.QueueUrl, nil

	default:
		return "", NewServiceError("queue creation failed", err).
			WithResource(logical).
			WithOperation("create-queue")
	}
}

// lookupARN fetches the queue ARN attribute from its URL.
func (p *QueueProvisioner) lookupARN(ctx context.Context, url, logical string) (string, error) {
	out, err := p.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", NewServiceError("queue attribute lookup failed", err).
			WithResource(logical).
			WithOperation("get-queue-attributes")
	}

	arn, ok := out.Attributes[string(types.QueueAttributeNameQueueArn)]
	if !ok || arn == "" {
		return "", NewContractViolation("queue attribute lookup succeeded but returned no ARN").
			WithResource(logical).
			WithOperation("get-queue-attributes")
	}
	return arn, nil
}

// isQueueNameExists reports whether err is the name-exists creation
// condition. The SDK models it as types.QueueNameExists; the wire code
// differs across API versions, so both are accepted.
func isQueueNameExists(err error) bool {
	var exists *types.QueueNameExists
	if errors.As(err, &exists) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "QueueAlreadyExists" || code == "QueueNameExists"
	}
	return false
}
