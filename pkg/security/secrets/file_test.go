package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileProvider_GetSecret(t *testing.T) {
	path := writeSecretFile(t, "api-token: tok-123\nother: value\n")

	provider, err := NewFileProvider(path, false)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	value, err := provider.GetSecret(context.Background(), "api-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "tok-123" {
		t.Errorf("expected 'tok-123', got '%s'", value)
	}
}

func TestFileProvider_GetSecret_NotFound(t *testing.T) {
	path := writeSecretFile(t, "api-token: tok-123\n")

	provider, err := NewFileProvider(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	if _, err := provider.GetSecret(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing secret")
	}
}

func TestFileProvider_Supports(t *testing.T) {
	path := writeSecretFile(t, "present: yes\n")

	provider, err := NewFileProvider(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	if !provider.Supports("present") {
		t.Error("expected Supports to be true for loaded secret")
	}
	if provider.Supports("absent") {
		t.Error("expected Supports to be false for absent secret")
	}
}

func TestFileProvider_InsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.yaml")
	if err := os.WriteFile(path, []byte("key: value\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileProvider(path, false); err == nil {
		t.Error("expected error for world-readable secret file")
	}
}

func TestFileProvider_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.yaml")

	if _, err := NewFileProvider(path, false); err == nil {
		t.Error("expected error for missing secret file")
	}
}

func TestFileProvider_Refresh(t *testing.T) {
	path := writeSecretFile(t, "rotating: before\n")

	provider, err := NewFileProvider(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	if err := os.WriteFile(path, []byte("rotating: after\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := provider.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	value, err := provider.GetSecret(context.Background(), "rotating")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "after" {
		t.Errorf("expected 'after' following refresh, got '%s'", value)
	}
}

func TestFileProvider_MalformedYAML(t *testing.T) {
	path := writeSecretFile(t, "not: [valid: yaml\n")

	if _, err := NewFileProvider(path, false); err == nil {
		t.Error("expected error for malformed secret file")
	}
}
