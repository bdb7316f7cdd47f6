package provision

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// TopicRecord identifies an ensured SNS topic.
type TopicRecord struct {
	ARN string
}

// QueueRecord identifies an ensured SQS queue.
type QueueRecord struct {
	URL string
	ARN string
}

// SubscriptionRecord identifies an ensured topic-to-queue subscription.
type SubscriptionRecord struct {
	ARN string
}

// SNSAPI is the subset of the SNS client the provisioners call. The
// concrete *sns.Client satisfies it; tests substitute a mock. Handles
// must be safe for concurrent use, which the SDK clients are.
type SNSAPI interface {
	CreateTopic(ctx context.Context, params *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
}

// SQSAPI is the subset of the SQS client the provisioners call.
type SQSAPI interface {
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}
