// Package awsclients constructs the SNS, SQS, and STS clients shared by
// the provisioning engine. Construction follows the default AWS
// credential chain and layers explicit overrides on top, so the same
// binary runs against real AWS, LocalStack, or an in-cluster endpoint
// without code changes.
package awsclients

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
)

// LocalEndpoint is the service endpoint used for local development when
// no explicit endpoint is given.
const LocalEndpoint = "http://aws.localstack"

// Options controls client construction. Zero-value fields defer to the
// default AWS configuration chain (environment, shared config, IMDS).
type Options struct {
	// Region overrides the region from the default chain.
	Region string

	// Endpoint overrides the service endpoint for all three clients.
	Endpoint string

	// AccessKeyID and SecretAccessKey supply static credentials. Both
	// must be set together; when empty the default chain applies.
	AccessKeyID     string
	SecretAccessKey string

	// Local substitutes LocalEndpoint when no endpoint override is
	// given.
	Local bool

	// Log receives construction diagnostics.
	Log zerolog.Logger
}

// Clients bundles the service clients with the resolved region.
type Clients struct {
	SNS    *sns.Client
	SQS    *sqs.Client
	STS    *sts.Client
	Region string
}

// New builds the service clients from the default configuration chain
// plus any overrides in opts.
func New(ctx context.Context, opts Options) (*Clients, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error

	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	endpoint := opts.Endpoint
	if endpoint == "" && opts.Local {
		endpoint = LocalEndpoint
	}
	if endpoint != "" {
		opts.Log.Debug().
			Str("endpoint", endpoint).
			Msg("Using AWS endpoint override")
	}

	clients := &Clients{
		SNS: sns.NewFromConfig(cfg, func(o *sns.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
		SQS: sqs.NewFromConfig(cfg, func(o *sqs.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
		STS: sts.NewFromConfig(cfg, func(o *sts.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
		Region: cfg.Region,
	}
	return clients, nil
}

// AccountID resolves the caller's AWS account via STS. Failure is not
// fatal for the caller; an empty string means the account could not be
// determined and queue policies cannot be generated.
func (c *Clients) AccountID(ctx context.Context, log zerolog.Logger) string {
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		log.Warn().Err(err).Msg("Could not resolve AWS account from STS")
		return ""
	}
	if out.Account == nil {
		log.Warn().Msg("STS returned no account in the caller identity")
		return ""
	}
	return *out.Account
}
