package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Out: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Debug().Msg("hidden")
	logger.Info().Str("issue", "abc").Msg("assigned")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked: %s", out)
	}
	if !strings.Contains(out, `"issue":"abc"`) || !strings.Contains(out, `"message":"assigned"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(Options{Level: "loud", Out: &bytes.Buffer{}}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(Options{Format: "xml", Out: &bytes.Buffer{}}); err == nil {
		t.Fatalf("expected format error")
	}
}
