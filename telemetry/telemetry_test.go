package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	shutdown, err := Setup(false, dir, "test")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, traceFile)); !os.IsNotExist(err) {
		t.Errorf("trace file created while disabled: %v", err)
	}
}

func TestProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := newProvider(&buf, "test")
	if err != nil {
		t.Fatal(err)
	}
	_, span := tp.Tracer("test").Start(context.Background(), "transcriber.Dispatch")
	span.End()
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "transcriber.Dispatch") {
		t.Errorf("span missing from export: %q", buf.String())
	}
}
