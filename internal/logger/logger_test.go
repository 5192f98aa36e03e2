package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{" WARN ", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"loud", logrus.InfoLevel},
	}
	for _, tt := range tests {
		SetLevel(tt.in)
		if got := Logger.GetLevel(); got != tt.want {
			t.Errorf("SetLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestForRequest(t *testing.T) {
	var buf bytes.Buffer
	out := Logger.Out
	Logger.SetOutput(&buf)
	defer Logger.SetOutput(out)

	ForRequest("abc-123").Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "abc-123" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if entry["msg"] != "hello" {
		t.Errorf("msg = %v", entry["msg"])
	}
}
