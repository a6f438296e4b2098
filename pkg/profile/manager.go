// Package profile manages application inference profiles for models
// that cannot be invoked directly by model ID.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/aws/smithy-go"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/secrets"
)

// BedrockAPI is the subset of the Bedrock control-plane client used by
// the manager. It exists so tests can substitute a fake.
type BedrockAPI interface {
	CreateInferenceProfile(ctx context.Context, params *bedrock.CreateInferenceProfileInput, optFns ...func(*bedrock.Options)) (*bedrock.CreateInferenceProfileOutput, error)
	ListInferenceProfiles(ctx context.Context, params *bedrock.ListInferenceProfilesInput, optFns ...func(*bedrock.Options)) (*bedrock.ListInferenceProfilesOutput, error)
}

// CreationError indicates a profile could not be created or looked up.
// It maps to ProfileCreationFailed at the wire boundary.
type CreationError struct {
	ModelID string
	Cause   error
}

// Error implements the error interface.
func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to ensure inference profile for %q: %v", e.ModelID, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *CreationError) Unwrap() error {
	return e.Cause
}

// Manager ensures an application inference profile exists for models
// that require one, caching the mapping in-process.
//
// Profile names are derived deterministically from the model ID, so
// concurrent creation attempts across processes converge on the same
// resource: creation conflicts are resolved by fetching the existing
// profile rather than failing. No distributed lock is involved.
type Manager struct {
	client BedrockAPI
	config config.ProfileConfig
	region string
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]string // modelID -> profile ARN
}

// NewManager creates a profile manager with an injected control-plane
// client.
func NewManager(client BedrockAPI, cfg config.ProfileConfig, region string) *Manager {
	return &Manager{
		client: client,
		config: cfg,
		region: region,
		cache:  make(map[string]string),
		logger: slog.Default().With("component", "profile-manager"),
	}
}

// NewManagerForCredential creates a manager whose control-plane client
// authenticates with the given target-partition keypair.
//
// Profile management is a control-plane operation and always uses SigV4;
// a bearer-only deployment cannot manage profiles and relies on them
// pre-existing.
func NewManagerForCredential(ctx context.Context, cfg config.ProfileConfig, cred *secrets.ResolvedCredential) (*Manager, error) {
	if cred.Kind != secrets.KindKeypair {
		return nil, fmt.Errorf("profile management requires an IAM keypair credential")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cred.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken,
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	clientOpts := []func(*bedrock.Options){}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *bedrock.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewManager(bedrock.NewFromConfig(awsCfg, clientOpts...), cfg, cred.Region), nil
}

// RequiresProfile reports whether the model ID is known to need an
// application inference profile before it can be invoked.
//
// Models matching none of the configured prefixes are still handled
// reactively when the service rejects a direct invocation.
func (m *Manager) RequiresProfile(modelID string) bool {
	for _, prefix := range m.config.RequiredPrefixes {
		if strings.HasPrefix(modelID, prefix) {
			return true
		}
	}
	return false
}

// EnsureProfile returns the inference profile ARN for a model, creating
// the profile if it does not exist yet.
//
// The fetch-or-create critical section runs under the cache mutex, so
// within one process at most one creation call happens per model ID.
func (m *Manager) EnsureProfile(ctx context.Context, modelID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if arn, ok := m.cache[modelID]; ok {
		return arn, nil
	}

	opCtx := ctx
	if m.config.OperationTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, m.config.OperationTimeout)
		defer cancel()
	}

	arn, err := m.createOrFetch(opCtx, modelID)
	if err != nil {
		return "", &CreationError{ModelID: modelID, Cause: err}
	}

	m.cache[modelID] = arn
	m.logger.Info("inference profile ready",
		"model_id", modelID,
		"profile_arn", arn,
	)
	return arn, nil
}

// createOrFetch attempts to create the profile; a name conflict means
// another process won the race, so the existing profile is fetched
// instead.
func (m *Manager) createOrFetch(ctx context.Context, modelID string) (string, error) {
	name := m.ProfileName(modelID)
	sourceARN := fmt.Sprintf("arn:aws:bedrock:%s::foundation-model/%s", m.region, modelID)

	out, err := m.client.CreateInferenceProfile(ctx, &bedrock.CreateInferenceProfileInput{
		InferenceProfileName: aws.String(name),
		Description:          aws.String("Cross-partition gateway profile for " + modelID),
		ModelSource: &bedrocktypes.InferenceProfileModelSourceMemberCopyFrom{
			Value: sourceARN,
		},
	})
	if err == nil {
		return aws.ToString(out.InferenceProfileArn), nil
	}

	var conflict *bedrocktypes.ConflictException
	if !errors.As(err, &conflict) {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			m.logger.Warn("profile creation rejected",
				"model_id", modelID,
				"error_code", apiErr.ErrorCode(),
				"error_message", apiErr.ErrorMessage(),
			)
		}
		return "", err
	}

	m.logger.Debug("profile already exists, fetching",
		"model_id", modelID,
		"profile_name", name,
	)
	return m.findByName(ctx, name)
}

// findByName lists application inference profiles and returns the ARN
// of the one with the given name.
func (m *Manager) findByName(ctx context.Context, name string) (string, error) {
	var nextToken *string
	for {
		out, err := m.client.ListInferenceProfiles(ctx, &bedrock.ListInferenceProfilesInput{
			TypeEquals: bedrocktypes.InferenceProfileTypeApplication,
			NextToken:  nextToken,
		})
		if err != nil {
			return "", err
		}

		for _, summary := range out.InferenceProfileSummaries {
			if aws.ToString(summary.InferenceProfileName) == name {
				return aws.ToString(summary.InferenceProfileArn), nil
			}
		}

		if out.NextToken == nil {
			return "", fmt.Errorf("profile %q reported as existing but not found in listing", name)
		}
		nextToken = out.NextToken
	}
}

// ProfileName derives the deterministic profile name for a model ID.
//
// The name must be stable across processes: it is the idempotency key
// that lets concurrent creators converge on one profile.
func (m *Manager) ProfileName(modelID string) string {
	return m.config.NamePrefix + "-" + sanitizeModelID(modelID)
}

// sanitizeModelID maps a model ID onto the profile-name character set.
// Dots and colons become hyphens.
func sanitizeModelID(modelID string) string {
	var b strings.Builder
	b.Grow(len(modelID))
	for _, r := range modelID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
