package provision

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"

	"github.com/piwi3910/topiary/pkg/envtag"
)

const (
	testRegion  = "us-east-1"
	testAccount = "123456789012"
)

// callLog records the order of cloud calls across mocks so tests can
// assert happens-before relationships.
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (c *callLog) record(entry string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *callLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.entries...)
}

// indexOf returns the position of the first entry with the given
// prefix, or -1.
func (c *callLog) indexOf(prefix string) int {
	for i, entry := range c.snapshot() {
		if strings.HasPrefix(entry, prefix) {
			return i
		}
	}
	return -1
}

// mockSNS is an in-memory SNS fake. Repeated CreateTopic and Subscribe
// calls are idempotent the way the real API is.
type mockSNS struct {
	mu             sync.Mutex
	log            *callLog
	createdTopics  []string
	subscriptions  map[string]string // topicARN|endpoint -> subscription ARN
	subscribeCalls int

	failCreateTopic error
	emptyTopicARN   bool
	failSubscribe   error
	emptySubARN     bool
}

func newMockSNS() *mockSNS {
	return &mockSNS{subscriptions: make(map[string]string)}
}

func (m *mockSNS) CreateTopic(ctx context.Context, params *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := aws.ToString(params.Name)
	m.log.record("create-topic:" + name)

	if m.failCreateTopic != nil {
		return nil, m.failCreateTopic
	}
	if m.emptyTopicARN {
		return &sns.CreateTopicOutput{}, nil
	}

	m.createdTopics = append(m.createdTopics, name)
	arn := fmt.Sprintf("arn:aws:sns:%s:%s:%s", testRegion, testAccount, name)
	return &sns.CreateTopicOutput{TopicArn: aws.String(arn)}, nil
}

func (m *mockSNS) Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	topicARN := aws.ToString(params.TopicArn)
	endpoint := aws.ToString(params.Endpoint)
	m.log.record("subscribe:" + topicARN)
	m.subscribeCalls++

	if m.failSubscribe != nil {
		return nil, m.failSubscribe
	}
	if m.emptySubARN {
		return &sns.SubscribeOutput{}, nil
	}

	// Identical (topic, endpoint) pairs return the same ARN.
	key := topicARN + "|" + endpoint
	arn, ok := m.subscriptions[key]
	if !ok {
		arn = fmt.Sprintf("%s:%08d", topicARN, len(m.subscriptions)+1)
		m.subscriptions[key] = arn
	}
	return &sns.SubscribeOutput{SubscriptionArn: aws.String(arn)}, nil
}

func (m *mockSNS) topicNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.createdTopics...)
}

// mockSQS is an in-memory SQS fake. A name listed in existing fails
// CreateQueue with the name-exists condition, like a queue created by a
// racing process.
type mockSQS struct {
	mu          sync.Mutex
	log         *callLog
	created     map[string]map[string]string // name -> creation attributes
	existing    map[string]bool
	getURLCalls int
	createCalls int

	failCreate   error
	emptyURL     bool
	failGetURL   error
	failGetAttrs error
	missingARN   bool
}

func newMockSQS() *mockSQS {
	return &mockSQS{
		created:  make(map[string]map[string]string),
		existing: make(map[string]bool),
	}
}

func queueURL(name string) string {
	return fmt.Sprintf("https://sqs.%s.amazonaws.com/%s/%s", testRegion, testAccount, name)
}

func queueARN(name string) string {
	return fmt.Sprintf("arn:aws:sqs:%s:%s:%s", testRegion, testAccount, name)
}

func (m *mockSQS) CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := aws.ToString(params.QueueName)
	m.log.record("create-queue:" + name)
	m.createCalls++

	if m.failCreate != nil {
		return nil, m.failCreate
	}
	if m.existing[name] {
		return nil, &sqstypes.QueueNameExists{Message: aws.String("queue already exists")}
	}
	if m.emptyURL {
		return &sqs.CreateQueueOutput{}, nil
	}

	m.created[name] = params.Attributes
	return &sqs.CreateQueueOutput{QueueUrl: aws.String(queueURL(name))}, nil
}

func (m *mockSQS) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := aws.ToString(params.QueueName)
	m.log.record("get-queue-url:" + name)
	m.getURLCalls++

	if m.failGetURL != nil {
		return nil, m.failGetURL
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String(queueURL(name))}, nil
}

func (m *mockSQS) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	url := aws.ToString(params.QueueUrl)
	m.log.record("get-queue-attributes:" + url)

	if m.failGetAttrs != nil {
		return nil, m.failGetAttrs
	}
	if m.missingARN {
		return &sqs.GetQueueAttributesOutput{}, nil
	}

	name := url[strings.LastIndex(url, "/")+1:]
	return &sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			string(sqstypes.QueueAttributeNameQueueArn): queueARN(name),
		},
	}, nil
}

func (m *mockSQS) attributesFor(name string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created[name]
}

// testHarness wires mocks into a full provisioner set.
type testHarness struct {
	sns    *mockSNS
	sqs    *mockSQS
	log    *callLog
	topics *TopicProvisioner
	queues *QueueProvisioner
	subs   *SubscriptionProvisioner
}

func newHarness(env envtag.Tag, region, accountID string) *testHarness {
	calls := &callLog{}
	snsMock := newMockSNS()
	snsMock.log = calls
	sqsMock := newMockSQS()
	sqsMock.log = calls

	nop := zerolog.Nop()
	topics := NewTopicProvisioner(snsMock, env, nop, nil)
	queues := NewQueueProvisioner(sqsMock, env, region, accountID, nop, nil)
	subs := NewSubscriptionProvisioner(snsMock, topics, nop, nil)

	return &testHarness{
		sns:    snsMock,
		sqs:    sqsMock,
		log:    calls,
		topics: topics,
		queues: queues,
		subs:   subs,
	}
}

func (h *testHarness) engine(opts Options) *Engine {
	return NewEngine(h.topics, h.queues, h.subs, zerolog.Nop(), nil, opts)
}
