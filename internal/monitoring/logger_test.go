package monitoring

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestUseSlog(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var buf bytes.Buffer
	UseSlog(NewConsoleLogger(&buf, slog.LevelInfo))
	Logf("frame %d sent", 3)

	if !strings.Contains(buf.String(), "frame 3 sent") {
		t.Errorf("log output %q missing message", buf.String())
	}

	UseSlog(nil)
	Logf("muted")
	if strings.Contains(buf.String(), "muted") {
		t.Error("nil slog logger should mute Logf")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}
