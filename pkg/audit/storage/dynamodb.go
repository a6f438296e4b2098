package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the backend.
// It exists so tests can substitute a fake.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDBConfig contains configuration for the DynamoDB storage
// backend.
type DynamoDBConfig struct {
	// Table is the table name, keyed by request_id.
	Table string

	// Region is the AWS region of the table (the source partition).
	Region string

	// Endpoint overrides the DynamoDB endpoint (local testing).
	Endpoint string

	// RetentionDays sets the item TTL. Zero disables the TTL attribute.
	RetentionDays int
}

// dynamoItem is the stored item shape. The expires_at attribute is the
// table's TTL attribute; DynamoDB deletes expired items itself.
type dynamoItem struct {
	RequestID       string `dynamodbav:"request_id"`
	Timestamp       string `dynamodbav:"timestamp"`
	ModelID         string `dynamodbav:"model_id"`
	ProfileARN      string `dynamodbav:"profile_arn,omitempty"`
	TransportMethod string `dynamodbav:"transport_method"`
	Reason          string `dynamodbav:"reason,omitempty"`
	LatencyMs       int64  `dynamodbav:"latency_ms"`
	Success         bool   `dynamodbav:"success"`
	StatusCode      int    `dynamodbav:"status_code"`
	RequestBytes    int    `dynamodbav:"request_bytes"`
	ResponseBytes   int    `dynamodbav:"response_bytes"`
	Attempts        int    `dynamodbav:"attempts"`
	ErrorKind       string `dynamodbav:"error_kind,omitempty"`
	ExpiresAt       int64  `dynamodbav:"expires_at,omitempty"`
}

// DynamoDBStorage implements the audit Storage interface on DynamoDB.
// This is the production backend: retention is enforced by the table's
// TTL, not by the gateway.
type DynamoDBStorage struct {
	client DynamoDBAPI
	config DynamoDBConfig
	logger *slog.Logger
}

// NewDynamoDBStorage creates a backend with a real DynamoDB client.
func NewDynamoDBStorage(ctx context.Context, cfg DynamoDBConfig) (*DynamoDBStorage, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("dynamodb audit storage: table is required")
	}

	optFns := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	clientOpts := []func(*dynamodb.Options){}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewDynamoDBStorageWithClient(dynamodb.NewFromConfig(awsCfg, clientOpts...), cfg), nil
}

// NewDynamoDBStorageWithClient creates a backend with an injected
// client. Used by tests.
func NewDynamoDBStorageWithClient(client DynamoDBAPI, cfg DynamoDBConfig) *DynamoDBStorage {
	return &DynamoDBStorage{
		client: client,
		config: cfg,
		logger: slog.Default().With("component", "audit.storage.dynamodb"),
	}
}

// Write puts one audit record as a DynamoDB item.
func (s *DynamoDBStorage) Write(ctx context.Context, record *audit.Record) error {
	item := dynamoItem{
		RequestID:       record.RequestID,
		Timestamp:       record.Timestamp.UTC().Format(time.RFC3339Nano),
		ModelID:         record.ModelID,
		ProfileARN:      record.ProfileARN,
		TransportMethod: record.TransportMethod,
		Reason:          record.Reason,
		LatencyMs:       record.LatencyMs,
		Success:         record.Success,
		StatusCode:      record.StatusCode,
		RequestBytes:    record.RequestBytes,
		ResponseBytes:   record.ResponseBytes,
		Attempts:        record.Attempts,
		ErrorKind:       record.ErrorKind,
	}
	if s.config.RetentionDays > 0 {
		item.ExpiresAt = record.Timestamp.
			AddDate(0, 0, s.config.RetentionDays).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return audit.NewStorageError("dynamodb", "marshal", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.Table),
		Item:      av,
	})
	if err != nil {
		return audit.NewStorageError("dynamodb", "put_item", err)
	}
	return nil
}

// DeleteOlderThan is a no-op: the table's TTL enforces retention.
func (s *DynamoDBStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// Count is not supported; scanning the table per health check would be
// wasteful.
func (s *DynamoDBStorage) Count(ctx context.Context) (int64, error) {
	return 0, fmt.Errorf("count not supported by the dynamodb backend")
}

// Close is a no-op.
func (s *DynamoDBStorage) Close() error {
	return nil
}
