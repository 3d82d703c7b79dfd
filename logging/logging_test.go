package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	logger.Info("info message")
	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Error("log should contain INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("log should contain the message")
	}
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("backfill")
	logger.SetOutput(&buf)

	logger.Info("hello world", map[string]interface{}{"b": 2, "a": "x"})

	output := buf.String()
	if !strings.HasPrefix(output, "INFO ") {
		t.Errorf("expected line to start with 'INFO ', got: %s", output)
	}
	if !strings.Contains(output, "[backfill]") {
		t.Errorf("expected component [backfill], got: %s", output)
	}
	if !strings.Contains(output, "hello world a=x b=2") {
		t.Errorf("expected sorted fields, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" WARN ", LevelWarn, false},
		{"", LevelInfo, false},
		{"verbose", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_EmbeddingFailed(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.EmbeddingFailed("c-1", errors.New("status 503"))

	output := buf.String()
	if !strings.Contains(output, "WARN") {
		t.Error("embedding failure should be WARN level")
	}
	if !strings.Contains(output, "competency=c-1") {
		t.Errorf("expected competency field, got: %s", output)
	}
}

func TestLogger_BackfillComplete(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.BackfillComplete(3, 0, 10*time.Millisecond)
	if !strings.HasPrefix(buf.String(), "INFO") {
		t.Errorf("clean backfill should log at INFO, got: %s", buf.String())
	}

	buf.Reset()
	logger.BackfillComplete(3, 1, 10*time.Millisecond)
	if !strings.HasPrefix(buf.String(), "WARN") {
		t.Errorf("backfill with failures should log at WARN, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "failed=1") {
		t.Errorf("expected failed count, got: %s", buf.String())
	}
}

func TestLogger_Nop(t *testing.T) {
	logger := Nop()
	logger.Error("dropped")
	var nilLogger *Logger
	nilLogger.Info("no panic")
}
