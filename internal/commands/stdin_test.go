package commands

import (
	"os"
	"testing"
)

func pipeWith(t *testing.T, content string) *os.File {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	if _, err := w.WriteString(content); err != nil {
		t.Fatalf("failed to write pipe: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close pipe: %v", err)
	}

	return r
}

func TestCaptureStdin(t *testing.T) {
	tests := []struct {
		name     string
		terminal bool
		piped    string
		want     string
	}{
		{name: "piped text", piped: "line one\nline two\n", want: "line one\nline two\n"},
		{name: "empty pipe", piped: "", want: ""},
		{name: "terminal is not read", terminal: true, piped: "ignored", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := isTerminal
			isTerminal = func(int) bool { return tt.terminal }
			t.Cleanup(func() { isTerminal = orig })

			got, err := CaptureStdin(pipeWith(t, tt.piped))
			if err != nil {
				t.Fatalf("CaptureStdin() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CaptureStdin() = %q, want %q", got, tt.want)
			}
		})
	}
}
