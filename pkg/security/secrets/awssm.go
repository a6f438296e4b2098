package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI is the subset of the AWS Secrets Manager client used
// by the provider. It exists so tests can substitute a fake.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerProvider loads secrets from AWS Secrets Manager in the
// source partition.
//
// This is the production provider: both the inbound bearer token and the
// outbound target-partition credential live in Secrets Manager, readable
// only by the gateway's execution role.
type SecretsManagerProvider struct {
	client SecretsManagerAPI
	region string
}

// NewSecretsManagerProvider creates a provider backed by a real AWS
// Secrets Manager client.
//
// The endpoint override is for VPC endpoints and local testing.
func NewSecretsManagerProvider(ctx context.Context, region, endpoint string) (*SecretsManagerProvider, error) {
	optFns := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	smOpts := []func(*secretsmanager.Options){}
	if endpoint != "" {
		smOpts = append(smOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	return &SecretsManagerProvider{
		client: secretsmanager.NewFromConfig(cfg, smOpts...),
		region: cfg.Region,
	}, nil
}

// NewSecretsManagerProviderWithClient creates a provider with an injected
// client. Used by tests.
func NewSecretsManagerProviderWithClient(client SecretsManagerAPI, region string) *SecretsManagerProvider {
	return &SecretsManagerProvider{
		client: client,
		region: region,
	}
}

// GetSecret retrieves a secret value from Secrets Manager.
//
// String secrets are returned as-is. Binary secrets are returned as the
// raw bytes converted to a string.
func (p *SecretsManagerProvider) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret from secrets manager: %w", err)
	}

	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	if len(out.SecretBinary) > 0 {
		return string(out.SecretBinary), nil
	}

	return "", fmt.Errorf("secret %q has no value", name)
}

// Provider returns the provider name.
func (p *SecretsManagerProvider) Provider() string {
	return "secretsmanager"
}

// Supports indicates if this provider supports the given secret name.
//
// Secrets Manager accepts both friendly names and full ARNs, so any
// non-empty name is supported.
func (p *SecretsManagerProvider) Supports(name string) bool {
	return strings.TrimSpace(name) != ""
}
