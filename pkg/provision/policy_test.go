package provision

import (
	"encoding/json"
	"testing"
)

func TestBuildQueuePolicyARNs(t *testing.T) {
	policy, err := buildQueuePolicy("us-east-1", "123456789012", "orders-prod", "prod")
	if err != nil {
		t.Fatalf("buildQueuePolicy failed: %v", err)
	}

	var doc policyDocument
	if err := json.Unmarshal([]byte(policy), &doc); err != nil {
		t.Fatalf("generated policy is not valid JSON: %v", err)
	}

	if doc.Version != "2012-10-17" {
		t.Errorf("version = %q", doc.Version)
	}
	if len(doc.Statement) != 2 {
		t.Fatalf("statements = %d, want 2", len(doc.Statement))
	}

	if got := doc.Statement[0].Resource; got != "arn:aws:sqs:us-east-1:123456789012:orders-prod" {
		t.Errorf("delivery resource = %q", got)
	}
	if got := doc.Statement[0].Condition["ArnLike"]["aws:SourceArn"]; got != "arn:aws:sns:us-east-1:123456789012:*-prod" {
		t.Errorf("source ARN = %q", got)
	}
	if got := doc.Statement[1].Principal["AWS"]; got != "arn:aws:iam::123456789012:root" {
		t.Errorf("root principal = %q", got)
	}
	if got := doc.Statement[1].Resource; got != "arn:aws:sqs:us-east-1:123456789012:orders-prod" {
		t.Errorf("root resource = %q", got)
	}
}

func TestBuildQueuePolicyDeterministic(t *testing.T) {
	a, err := buildQueuePolicy("eu-west-1", "999999999999", "events-qa", "qa")
	if err != nil {
		t.Fatal(err)
	}
	b, err := buildQueuePolicy("eu-west-1", "999999999999", "events-qa", "qa")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("policy generation is not deterministic")
	}
}
