package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{level: "", want: zerolog.InfoLevel},
		{level: "debug", want: zerolog.DebugLevel},
		{level: "WARN", want: zerolog.WarnLevel},
		{level: " error ", want: zerolog.ErrorLevel},
		{level: "verbose", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := New(Config{Level: tt.level, Format: FormatJSON})
			if got := log.GetLevel(); got != tt.want {
				t.Errorf("New(%q) level = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestNewWithWriterEmitsJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("report_id", "r-1").Msg("Report saved")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "Report saved" {
		t.Errorf("message = %v, want %q", entry["message"], "Report saved")
	}
	if entry["report_id"] != "r-1" {
		t.Errorf("report_id = %v, want %q", entry["report_id"], "r-1")
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected a timestamp field")
	}
	if _, ok := entry["caller"]; !ok {
		t.Error("expected a caller field")
	}
}

func TestNewOutput(t *testing.T) {
	jsonBuf := &bytes.Buffer{}
	jsonLog := New(Config{Format: FormatJSON, Output: jsonBuf})
	jsonLog.Warn().Msg("to json")
	if !strings.Contains(jsonBuf.String(), `"message":"to json"`) {
		t.Errorf("json output = %q", jsonBuf.String())
	}

	consoleBuf := &bytes.Buffer{}
	consoleLog := New(Config{Output: consoleBuf})
	consoleLog.Warn().Msg("to console")
	if !strings.Contains(consoleBuf.String(), "to console") || strings.Contains(consoleBuf.String(), `"message"`) {
		t.Errorf("console output = %q", consoleBuf.String())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContextDefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("default level = %v, want info", log.GetLevel())
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"user_id": "123",
		"job_id":  "job-9",
	})

	log.Info().Msg("Job started")

	output := buf.String()
	for _, want := range []string{`"user_id":"123"`, `"job_id":"job-9"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %s, got: %s", want, output)
		}
	}
}
