package main

import (
	"os"
	"testing"
)

func TestMain_InvalidConfigExitsNonZero(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"modload", "--concurrency", "0", "--no-color", "--log-level", "error"}
	if code := Main(); code != 1 {
		t.Errorf("Main() = %d, want 1", code)
	}
}

func TestMain_Version(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"modload", "--version"}
	if code := Main(); code != 0 {
		t.Errorf("Main() = %d, want 0", code)
	}
}
