package cli

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}

	output, err := formatter.Format("test message")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(output) != "test message\n" {
		t.Errorf("Format() = %q, want %q", string(output), "test message\n")
	}

	buf := &bytes.Buffer{}
	if err := formatter.FormatTo(buf, "test message"); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if buf.String() != "test message\n" {
		t.Errorf("FormatTo() = %q", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	formatter := &JSONFormatter{Indent: true}
	data := struct {
		Backend string `json:"backend"`
		Records int64  `json:"records"`
	}{Backend: "sqlite", Records: 42}

	output, err := formatter.Format(data)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(output, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["backend"] != "sqlite" {
		t.Errorf("backend = %v", decoded["backend"])
	}

	buf := &bytes.Buffer{}
	if err := formatter.FormatTo(buf, data); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Error("FormatTo() wrote invalid JSON")
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("FormatJSON did not return JSONFormatter")
	}
	if _, ok := NewFormatter(FormatText).(*TextFormatter); !ok {
		t.Error("FormatText did not return TextFormatter")
	}
	if _, ok := NewFormatter("bogus").(*TextFormatter); !ok {
		t.Error("unknown format did not fall back to text")
	}
}
