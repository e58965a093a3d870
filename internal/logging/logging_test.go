package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	l.Warn("shown", "satellite_id", 25544)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"satellite_id":25544`) {
		t.Errorf("output = %s", out)
	}

	buf.Reset()
	l, err = New(&buf, "DEBUG", "text")
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("text line")
	if !strings.Contains(buf.String(), "msg=\"text line\"") {
		t.Errorf("text output = %s", buf.String())
	}

	if _, err := New(&buf, "loud", "json"); err == nil {
		t.Error("bad level accepted")
	}
	if _, err := New(&buf, "info", "xml"); err == nil {
		t.Error("bad format accepted")
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("empty context should give the default logger")
	}
	var buf bytes.Buffer
	l, _ := New(&buf, "info", "json")
	if FromContext(NewContext(context.Background(), l)) != l {
		t.Error("logger not carried by context")
	}
}
