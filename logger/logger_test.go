package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestLogMetricEmitsStructuredEntry(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithComponent("channels").LogMetric("channels", "trades_queue_depth", 3, "gauge", Fields{
		"capacity": 100,
	})

	out := buf.String()
	for _, want := range []string{
		`"metric":"trades_queue_depth"`,
		`"value":3`,
		`"metric_type":"gauge"`,
		`"component":"channels"`,
		`"capacity":100`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metric entry missing %s: %s", want, out)
		}
	}
}

func TestLogMetricDefaultsToCounter(t *testing.T) {
	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithComponent("writer").LogMetric("writer", "files_written", int64(1), "", nil)

	if !strings.Contains(buf.String(), `"metric_type":"counter"`) {
		t.Errorf("expected counter default, got: %s", buf.String())
	}
}
