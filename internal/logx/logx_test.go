package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithComponentAddsField(t *testing.T) {
	capture := &logCapture{}
	log := WithComponent(newCaptureLogger(capture), "dispatcher")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["component"] != "dispatcher" {
		t.Fatalf("expected component field, got %+v", entry)
	}
}

func TestWithComponentEmptyIsNoop(t *testing.T) {
	capture := &logCapture{}
	log := WithComponent(newCaptureLogger(capture), "")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["component"]; ok {
		t.Fatalf("did not expect component field, got %+v", entry)
	}
}

func TestWithInstanceAddsField(t *testing.T) {
	capture := &logCapture{}
	log := WithInstance(newCaptureLogger(capture), "abc-123")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["instance"] != "abc-123" {
		t.Fatalf("expected instance field, got %+v", entry)
	}
}

func TestContextWithInstanceLogger(t *testing.T) {
	capture := &logCapture{}
	ctx := ContextWithInstanceLogger(context.Background(), newCaptureLogger(capture), "abc-123")
	Ctx(ctx).Info("hello")

	entry := capture.firstEntry(t)
	if entry["instance"] != "abc-123" {
		t.Fatalf("expected instance field, got %+v", entry)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	line := bytes.TrimSpace(c.buf.Bytes())
	if idx := bytes.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry %q: %v", line, err)
	}
	return entry
}
