package logs

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/labstack/gommon/log"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(log.DEBUG))
	logger.With(Any("command", "remove")).Warn(
		"Cannot remove", errors.New("not found"), Any("name", "test"),
	)
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal("Error:", err)
	}
	expect := map[string]string{
		"level":   "WARN",
		"message": "Cannot remove",
		"error":   "not found",
		"name":    "test",
		"command": "remove",
	}
	for key, value := range expect {
		if line[key] != value {
			t.Fatalf("Expected %q for %q, got %v", value, key, line[key])
		}
	}
	file, ok := line["file"].(string)
	if !ok || !strings.Contains(file, "logger_test.go") {
		t.Fatalf("Unexpected file: %v", line["file"])
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(log.WARN))
	logger.Info("skipped")
	logger.Debugf("skipped %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("Unexpected output: %q", buf.String())
	}
	logger.Errorf("written %d", 2)
	if !strings.Contains(buf.String(), "written 2") {
		t.Fatalf("Unexpected output: %q", buf.String())
	}
}
