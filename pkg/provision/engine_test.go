package provision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/piwi3910/topiary/pkg/config"
	"github.com/piwi3910/topiary/pkg/envtag"
)

func TestApplySentinelCreatesTopicsOnly(t *testing.T) {
	h := newHarness(envtag.Dev, testRegion, testAccount)
	engine := h.engine(Options{})

	summary, err := engine.Apply(context.Background(), config.Topology{
		"unsubscribed": {Topics: []string{"a", "b"}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if summary.Total != 2 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 2 succeeded topic leaves", summary)
	}

	names := h.sns.topicNames()
	if len(names) != 2 {
		t.Fatalf("created topics = %v", names)
	}
	for _, name := range names {
		if name != "a-dev" && name != "b-dev" {
			t.Errorf("unexpected topic %q", name)
		}
	}

	if h.sns.subscribeCalls != 0 {
		t.Errorf("sentinel group issued %d subscribe calls, want 0", h.sns.subscribeCalls)
	}
	if h.sqs.createCalls != 0 {
		t.Errorf("sentinel group issued %d queue creations, want 0", h.sqs.createCalls)
	}
}

func TestApplyQueueHappensBeforeSubscriptions(t *testing.T) {
	h := newHarness(envtag.Prod, testRegion, testAccount)
	engine := h.engine(Options{})

	summary, err := engine.Apply(context.Background(), config.Topology{
		"billing": {Topics: []string{"invoice-created", "invoice-paid"}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	// One queue leaf plus two subscription leaves, all succeeding.
	if summary.Total != 3 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0", summary.ExitCode())
	}

	createIdx := h.log.indexOf("create-queue:billing-prod")
	if createIdx == -1 {
		t.Fatalf("queue never created: %v", h.log.snapshot())
	}
	for i, entry := range h.log.snapshot() {
		if strings.HasPrefix(entry, "subscribe:") && i < createIdx {
			t.Errorf("subscribe at %d before queue creation at %d: %v", i, createIdx, h.log.snapshot())
		}
	}
}

func TestApplyEndToEnd(t *testing.T) {
	h := newHarness(envtag.Prod, testRegion, testAccount)
	engine := h.engine(Options{})

	summary, err := engine.Apply(context.Background(), config.Topology{
		"billing": {Topics: []string{"invoice-created", "invoice-paid"}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if summary.Failed != 0 {
		t.Fatalf("failures: %+v", summary.Outcomes)
	}

	// Queue billing-prod exists.
	if h.sqs.attributesFor("billing-prod") == nil {
		t.Error("queue billing-prod was not created")
	}

	// Both topics exist with the environment suffix.
	created := map[string]bool{}
	for _, name := range h.sns.topicNames() {
		created[name] = true
	}
	if !created["invoice-created-prod"] || !created["invoice-paid-prod"] {
		t.Errorf("topics created: %v", h.sns.topicNames())
	}

	// Every subscription targets the queue's ARN.
	for key := range h.sns.subscriptions {
		endpoint := key[strings.LastIndex(key, "|")+1:]
		if endpoint != queueARN("billing-prod") {
			t.Errorf("subscription endpoint = %q", endpoint)
		}
	}
}

func TestApplyQueueFailureSkipsGroupSubscriptions(t *testing.T) {
	h := newHarness(envtag.Dev, testRegion, testAccount)
	h.sqs.failCreate = errors.New("access denied")
	engine := h.engine(Options{})

	summary, err := engine.Apply(context.Background(), config.Topology{
		"billing": {Topics: []string{"a", "b"}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// The queue leaf fails once; its subscriptions never start.
	if summary.Total != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if h.sns.subscribeCalls != 0 {
		t.Errorf("subscriptions ran after queue failure: %d calls", h.sns.subscribeCalls)
	}
	if summary.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", summary.ExitCode())
	}
}

func TestApplyFailureIsolation(t *testing.T) {
	h := newHarness(envtag.Dev, testRegion, testAccount)
	// Topic creation fails for every topic; the sibling group's queue
	// must still be provisioned.
	h.sns.failCreateTopic = errors.New("sns down")
	engine := h.engine(Options{})

	summary, err := engine.Apply(context.Background(), config.Topology{
		"unsubscribed": {Topics: []string{"a", "b"}},
		"orders":       {Topics: []string{}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if summary.Failed != 2 {
		t.Errorf("failed = %d, want exactly the 2 topic leaves", summary.Failed)
	}
	if summary.Succeeded != 1 {
		t.Errorf("succeeded = %d, want the queue leaf", summary.Succeeded)
	}
	if h.sqs.attributesFor("orders-dev") == nil {
		t.Error("sibling queue was not provisioned")
	}
}

func TestApplyForceSuccess(t *testing.T) {
	h := newHarness(envtag.Dev, testRegion, testAccount)
	h.sns.failCreateTopic = errors.New("sns down")
	engine := h.engine(Options{ForceSuccess: true})

	summary, err := engine.Apply(context.Background(), config.Topology{
		"unsubscribed": {Topics: []string{"a"}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// The true count is preserved; only the reported outcome flips.
	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	if !summary.Forced {
		t.Error("summary not marked as forced")
	}
	if summary.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0 under force-success", summary.ExitCode())
	}
}

func TestExitCodeSaturates(t *testing.T) {
	s := Summary{Failed: 3000}
	if s.ExitCode() != 125 {
		t.Errorf("exit code = %d, want saturation at 125", s.ExitCode())
	}

	s = Summary{Failed: 125}
	if s.ExitCode() != 125 {
		t.Errorf("exit code = %d, want 125", s.ExitCode())
	}

	s = Summary{Failed: 0}
	if s.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0", s.ExitCode())
	}
}

func TestApplyRejectsNilTopology(t *testing.T) {
	h := newHarness(envtag.Dev, testRegion, testAccount)
	engine := h.engine(Options{})

	_, err := engine.Apply(context.Background(), nil)
	if !IsConfigError(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestApplyRejectsMalformedTopology(t *testing.T) {
	h := newHarness(envtag.Dev, testRegion, testAccount)
	engine := h.engine(Options{})

	_, err := engine.Apply(context.Background(), config.Topology{
		"": {Topics: []string{"a"}},
	})
	if !IsConfigError(err) {
		t.Fatalf("empty queue name: expected config error, got %v", err)
	}

	_, err = engine.Apply(context.Background(), config.Topology{
		"orders": {Topics: []string{" "}},
	})
	if !IsConfigError(err) {
		t.Fatalf("blank topic name: expected config error, got %v", err)
	}
}

func TestApplyEveryLeafYieldsOneOutcome(t *testing.T) {
	h := newHarness(envtag.QA, testRegion, testAccount)
	engine := h.engine(Options{MaxParallel: 2})

	topo := config.Topology{
		"unsubscribed": {Topics: []string{"t1", "t2", "t3"}},
		"orders":       {Topics: []string{"t4", "t5"}},
		"billing":      {Topics: []string{"t6"}},
	}

	summary, err := engine.Apply(context.Background(), topo)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// 3 sentinel topics + 2 queues + 3 subscriptions.
	if summary.Total != 8 {
		t.Errorf("total = %d, want 8", summary.Total)
	}
	if len(summary.Outcomes) != summary.Total {
		t.Errorf("outcomes = %d, total = %d", len(summary.Outcomes), summary.Total)
	}
	if summary.Succeeded+summary.Failed != summary.Total {
		t.Errorf("summary does not add up: %+v", summary)
	}
	if summary.RunID == "" {
		t.Error("summary missing run ID")
	}
}
