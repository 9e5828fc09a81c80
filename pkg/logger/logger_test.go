package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", *DefaultConfig(), false},
		{"debug", *DebugConfig(), false},
		{"json", Config{Level: InfoLevel, Format: JSONFormat}, false},
		{"bad level", Config{Level: "trace", Format: TextFormat}, true},
		{"bad format", Config{Level: InfoLevel, Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestNewLoggerRejectsInvalidConfig(t *testing.T) {
	if _, err := NewLogger(&Config{Level: "trace", Format: TextFormat}); err == nil {
		t.Error("Invalid level should be rejected")
	}
}

func TestNewLoggerNilConfigUsesDefaults(t *testing.T) {
	log, err := NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if log == nil {
		t.Fatal("Expected a logger")
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	log.WithFields(Fields{
		"transaction_id": "TX001",
		"documents":      2,
	}).Info("Documents attached")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log line should be valid JSON: %v", err)
	}
	if entry["msg"] != "Documents attached" {
		t.Errorf("Unexpected message: %v", entry["msg"])
	}
	if entry["transaction_id"] != "TX001" {
		t.Errorf("Expected transaction_id field, got %v", entry["transaction_id"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: WarnLevel, Format: TextFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	log.Info("hidden")
	log.Warn("visible")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("Info should be filtered below the warn level")
	}
	if !strings.Contains(output, "visible") {
		t.Error("Warn should be logged at the warn level")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	log.WithComponent("assigner").Info("ready")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log line should be valid JSON: %v", err)
	}
	if entry["component"] != "assigner" {
		t.Errorf("Expected component field, got %v", entry["component"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	log.WithError(fmt.Errorf("db unreachable")).Error("Storage check failed")

	if !strings.Contains(buf.String(), "db unreachable") {
		t.Errorf("Error cause should appear in the output:\n%s", buf.String())
	}
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	if original == nil {
		t.Fatal("Global logger should be initialized")
	}

	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: InfoLevel, Format: TextFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	SetGlobalLogger(log)

	GetGlobalLogger().Info("through the global")
	if !strings.Contains(buf.String(), "through the global") {
		t.Error("Replaced global logger should receive log calls")
	}
}

func TestProgressTrackerCounts(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: DebugLevel, Format: JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	tracker := NewProgressTracker(log, "scoring", 10, time.Hour)
	for i := 0; i < 10; i++ {
		tracker.Increment(1)
	}
	tracker.Finish()

	// The interval suppresses intermediate logs; Finish always reports.
	output := buf.String()
	if !strings.Contains(output, "scoring") {
		t.Errorf("Finish should log the operation name:\n%s", output)
	}
	if !strings.Contains(output, `"processed":10`) && !strings.Contains(output, `"processed": 10`) {
		t.Errorf("Finish should report the processed count:\n%s", output)
	}
}
