package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()

	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "audit.db")

	s, err := NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("failed to create sqlite storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(requestID string, ts time.Time) *audit.Record {
	return &audit.Record{
		RequestID:       requestID,
		Timestamp:       ts,
		ModelID:         "anthropic.claude-sonnet-4-20250514-v1:0",
		ProfileARN:      "arn:aws:bedrock:us-east-1:111122223333:application-inference-profile/xpi-claude",
		TransportMethod: "internet",
		LatencyMs:       812,
		Success:         true,
		StatusCode:      200,
		RequestBytes:    421,
		ResponseBytes:   1890,
		Attempts:        1,
	}
}

func TestSQLiteStorage_WriteAndGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	record := testRecord("req-1", time.Now())
	if err := s.Write(ctx, record); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := s.Get(ctx, "req-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if got.ModelID != record.ModelID {
		t.Errorf("model mismatch: %q vs %q", got.ModelID, record.ModelID)
	}
	if got.ProfileARN != record.ProfileARN {
		t.Errorf("profile ARN mismatch: %q vs %q", got.ProfileARN, record.ProfileARN)
	}
	if got.LatencyMs != record.LatencyMs {
		t.Errorf("latency mismatch: %d vs %d", got.LatencyMs, record.LatencyMs)
	}
	if !got.Success {
		t.Error("expected success=true")
	}
	if got.ErrorKind != "" {
		t.Errorf("expected empty error kind, got %q", got.ErrorKind)
	}
}

func TestSQLiteStorage_WriteFailureRecord(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	record := testRecord("req-2", time.Now())
	record.Success = false
	record.StatusCode = 502
	record.ErrorKind = "UpstreamUnavailable"
	record.Reason = "fallback from tunnel"
	record.Attempts = 3

	if err := s.Write(ctx, record); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := s.Get(ctx, "req-2")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ErrorKind != "UpstreamUnavailable" {
		t.Errorf("expected error kind persisted, got %q", got.ErrorKind)
	}
	if got.Reason != "fallback from tunnel" {
		t.Errorf("expected reason persisted, got %q", got.Reason)
	}
	if got.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", got.Attempts)
	}
}

func TestSQLiteStorage_DuplicateRequestIDRejected(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	record := testRecord("req-dup", time.Now())
	if err := s.Write(ctx, record); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := s.Write(ctx, record); err == nil {
		t.Error("expected duplicate request_id to be rejected")
	}
}

func TestSQLiteStorage_DeleteOlderThan(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	old := testRecord("req-old", time.Now().AddDate(0, 0, -40))
	fresh := testRecord("req-fresh", time.Now())

	if err := s.Write(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.DeleteOlderThan(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 record pruned, got %d", deleted)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 record remaining, got %d", count)
	}

	if _, err := s.Get(ctx, "req-fresh"); err != nil {
		t.Errorf("fresh record should survive pruning: %v", err)
	}
}
