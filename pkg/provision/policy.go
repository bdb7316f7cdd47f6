package provision

import (
	"encoding/json"
	"fmt"
)

// policyDocument is the IAM access policy attached to a queue at
// creation time.
type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string                       `json:"Sid,omitempty"`
	Effect    string                       `json:"Effect"`
	Principal map[string]string            `json:"Principal"`
	Action    string                       `json:"Action"`
	Resource  string                       `json:"Resource"`
	Condition map[string]map[string]string `json:"Condition,omitempty"`
}

// buildQueuePolicy generates the access policy for a queue: SNS may
// deliver to it from any topic suffixed for this environment, and the
// account root keeps full access. physicalName already carries the
// environment suffix.
func buildQueuePolicy(region, accountID, physicalName, suffix string) (string, error) {
	queueARN := fmt.Sprintf("arn:aws:sqs:%s:%s:%s", region, accountID, physicalName)
	topicPattern := fmt.Sprintf("arn:aws:sns:%s:%s:*-%s", region, accountID, suffix)
	rootPrincipal := fmt.Sprintf("arn:aws:iam::%s:root", accountID)

	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Sid:       "AllowEnvironmentTopicDelivery",
				Effect:    "Allow",
				Principal: map[string]string{"Service": "sns.amazonaws.com"},
				Action:    "sqs:SendMessage",
				Resource:  queueARN,
				Condition: map[string]map[string]string{
					"ArnLike": {"aws:SourceArn": topicPattern},
				},
			},
			{
				Sid:       "AllowAccountFullAccess",
				Effect:    "Allow",
				Principal: map[string]string{"AWS": rootPrincipal},
				Action:    "sqs:*",
				Resource:  queueARN,
			},
		},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal queue policy: %w", err)
	}
	return string(data), nil
}
