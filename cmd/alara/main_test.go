package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestApplicationPrintsVersion(t *testing.T) {
	app := application()
	var out bytes.Buffer
	app.Writer = &out

	args := []string{os.Args[0], "-V"}
	if err := app.Run(args); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("expected version %q in output, got %q", version, out.String())
	}
}

func TestMain2ReturnsBadInputOnMissingArg(t *testing.T) {
	code := main2([]string{os.Args[0]})
	if code != exitBadInput {
		t.Fatalf("code = %d, want %d", code, exitBadInput)
	}
}

func TestMain2ReturnsBadInputOnMissingFile(t *testing.T) {
	code := main2([]string{os.Args[0], "/nonexistent/path/to/input.json"})
	if code != exitBadInput {
		t.Fatalf("code = %d, want %d", code, exitBadInput)
	}
}
