package commands

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var isTerminal = term.IsTerminal

// CaptureStdin returns everything piped into f. When f is a terminal nothing
// is piped and the empty string is returned without blocking.
func CaptureStdin(f *os.File) (string, error) {
	if isTerminal(int(f.Fd())) {
		return "", nil
	}

	return readAll(f)
}

func readAll(r io.Reader) (string, error) {
	var sb strings.Builder
	if _, err := io.Copy(&sb, r); err != nil {
		return "", err
	}

	return sb.String(), nil
}
