package provision

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/piwi3910/topiary/pkg/config"
	"github.com/piwi3910/topiary/pkg/telemetry"
)

// maxExitFailures caps the failure count reported through the process
// exit code so it never collides with the shell's special codes (126+)
// and never wraps. The true count is always logged.
const maxExitFailures = 125

// defaultMaxParallel bounds concurrent leaf operations when the caller
// does not set a limit.
const defaultMaxParallel = 10

// ResourceKind names the kind of resource a leaf operation touches.
type ResourceKind string

const (
	ResourceTopic        ResourceKind = "topic"
	ResourceQueue        ResourceKind = "queue"
	ResourceSubscription ResourceKind = "subscription"
)

// Outcome records the result of one leaf operation. Every scheduled
// leaf yields exactly one outcome; failures are data, never a
// process-ending event.
type Outcome struct {
	Kind    ResourceKind
	Logical string
	Group   string
	ARN     string
	Err     error
}

// Failed reports whether the leaf failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Summary aggregates the outcomes of one reconciliation pass.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Forced    bool
	StartedAt time.Time
	Duration  time.Duration
	Outcomes  []Outcome
}

// ExitCode maps the summary to the process exit value: 0 for a clean or
// forced-success run, otherwise the failure count saturating at 125.
func (s Summary) ExitCode() int {
	if s.Failed == 0 || s.Forced {
		return 0
	}
	if s.Failed > maxExitFailures {
		return maxExitFailures
	}
	return s.Failed
}

// Options configures engine behavior.
type Options struct {
	// ForceSuccess maps any aggregate outcome to success for external
	// reporting. The true failure count is still logged and kept in the
	// summary.
	ForceSuccess bool

	// MaxParallel bounds concurrent leaf operations across all groups.
	// Zero or negative selects the default.
	MaxParallel int
}

// Engine reconciles a declared topology by fanning out one concurrent
// unit of work per queue group. Within a group the queue is ensured
// before any of its subscriptions; across groups, and across the
// subscription fan-out inside a group, there is no ordering.
type Engine struct {
	topics      *TopicProvisioner
	queues      *QueueProvisioner
	subs        *SubscriptionProvisioner
	maxParallel int
	force       bool
	log         zerolog.Logger
	metrics     *telemetry.Metrics
}

// NewEngine creates a reconciliation engine over the three provisioners.
func NewEngine(topics *TopicProvisioner, queues *QueueProvisioner, subs *SubscriptionProvisioner, log zerolog.Logger, metrics *telemetry.Metrics, opts Options) *Engine {
	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}

	return &Engine{
		topics:      topics,
		queues:      queues,
		subs:        subs,
		maxParallel: maxParallel,
		force:       opts.ForceSuccess,
		log:         log.With().Str("component", "engine").Logger(),
		metrics:     metrics,
	}
}

// Apply reconciles the topology and aggregates every leaf outcome into a
// summary. The returned error is non-nil only when the topology itself
// is rejected before any work is scheduled; provisioning failures are
// recorded in the summary, never returned.
func (e *Engine) Apply(ctx context.Context, topo config.Topology) (Summary, error) {
	if err := checkTopology(topo); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}

	log := e.log.With().Str("run_id", summary.RunID).Logger()
	log.Info().
		Int("groups", len(topo)).
		Int("topic_refs", topo.TopicCount()).
		Msg("Starting reconciliation")

	// Upper bound on leaves: one per queue group plus one per topic
	// reference. Buffering to the bound keeps the collect step a simple
	// drain with no producer ever blocking.
	outcomes := make(chan Outcome, len(topo)+topo.TopicCount())
	sem := make(chan struct{}, e.maxParallel)

	var wg sync.WaitGroup
	for queueName, spec := range topo {
		wg.Add(1)
		go func(queueName string, spec config.QueueSpec) {
			defer wg.Done()
			e.applyGroup(ctx, queueName, spec, outcomes, sem)
		}(queueName, spec)
	}
	wg.Wait()
	close(outcomes)

	for outcome := range outcomes {
		summary.Total++
		if outcome.Failed() {
			summary.Failed++
			log.Error().
				Err(outcome.Err).
				Str("kind", string(outcome.Kind)).
				Str("resource", outcome.Logical).
				Str("group", outcome.Group).
				Msg("Leaf operation failed")
		} else {
			summary.Succeeded++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	summary.Duration = time.Since(summary.StartedAt)
	summary.Forced = e.force && summary.Failed > 0

	status := "succeeded"
	if summary.Failed > 0 {
		status = "failed"
	}
	e.metrics.RecordApply(status, summary.Failed, summary.Duration)

	if summary.Forced {
		log.Warn().
			Int("failures", summary.Failed).
			Msg("Failures overridden by force-success; reporting success")
	}
	log.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Reconciliation complete")

	return summary, nil
}

// applyGroup runs one queue group. The sentinel group only ensures
// topics. A real group ensures its queue first; the queue record
// happens-before every subscription in the group, and a queue failure
// ends the group with that single recorded outcome.
func (e *Engine) applyGroup(ctx context.Context, queueName string, spec config.QueueSpec, outcomes chan<- Outcome, sem chan struct{}) {
	if config.IsSentinel(queueName) {
		var wg sync.WaitGroup
		for _, topic := range spec.Topics {
			wg.Add(1)
			go func(topic string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				rec, err := e.topics.EnsureTopic(ctx, topic)
				outcomes <- Outcome{Kind: ResourceTopic, Logical: topic, Group: queueName, ARN: rec.ARN, Err: err}
			}(topic)
		}
		wg.Wait()
		return
	}

	sem <- struct{}{}
	queue, err := e.queues.EnsureQueue(ctx, queueName)
	<-sem

	outcomes <- Outcome{Kind: ResourceQueue, Logical: queueName, Group: queueName, ARN: queue.ARN, Err: err}
	if err != nil {
		return
	}

	var wg sync.WaitGroup
	for _, topic := range spec.Topics {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rec, subErr := e.subs.EnsureSubscription(ctx, queue.ARN, topic)
			outcomes <- Outcome{Kind: ResourceSubscription, Logical: topic, Group: queueName, ARN: rec.ARN, Err: subErr}
		}(topic)
	}
	wg.Wait()
}

// checkTopology rejects a structurally invalid topology reference before
// any work is scheduled. Full parsing validation lives in package
// config; this is the engine's own guard against being handed a bad
// reference directly.
func checkTopology(topo config.Topology) error {
	if topo == nil {
		return NewConfigError("topology is nil")
	}
	for queueName, spec := range topo {
		if strings.TrimSpace(queueName) == "" {
			return NewConfigError("topology contains an empty queue name")
		}
		for _, topic := range spec.Topics {
			if strings.TrimSpace(topic) == "" {
				return NewConfigError("empty topic name").WithResource(queueName)
			}
		}
	}
	return nil
}
