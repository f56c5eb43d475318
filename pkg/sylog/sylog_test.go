package sylog

import (
	"bytes"
	"strings"
	"testing"
)

func withCapturedOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := SetWriter(&buf)
	t.Cleanup(func() { SetWriter(old) })
	return &buf
}

func TestWritefRespectsLevel(t *testing.T) {
	buf := withCapturedOutput(t)
	oldLevel := loggerLevel
	t.Cleanup(func() { SetLevel(oldLevel) })

	SetLevel(WarnLevel)
	Infof("should be suppressed")
	if buf.Len() != 0 {
		t.Fatalf("Infof wrote output at WarnLevel: %q", buf.String())
	}

	Warningf("shown at warn level")
	if !strings.Contains(buf.String(), "shown at warn level") {
		t.Fatalf("Warningf output = %q", buf.String())
	}
}

func TestWritefIncludesLevelPrefix(t *testing.T) {
	buf := withCapturedOutput(t)
	oldLevel := loggerLevel
	t.Cleanup(func() { SetLevel(oldLevel) })

	SetLevel(DebugLevel)
	Debugf("detail: %d", 42)
	if !strings.Contains(buf.String(), "DEBUG") || !strings.Contains(buf.String(), "detail: 42") {
		t.Fatalf("Debugf output = %q", buf.String())
	}
}

func TestSetWriterReturnsPrevious(t *testing.T) {
	var first, second bytes.Buffer
	old := SetWriter(&first)
	prev := SetWriter(&second)
	if prev != &first {
		t.Fatalf("SetWriter did not return the previously installed writer")
	}
	SetWriter(old)
}
