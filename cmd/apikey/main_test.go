package main

import (
	"bytes"
	"strings"
	"testing"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSetShowClear(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("CREDENTIAL_BACKEND", "file")
	t.Setenv("CREDENTIAL_DIR", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")

	out, err := runCmd(t, "", "show")
	if err != nil || !strings.Contains(out, "no API key stored") {
		t.Fatalf("show before set: %q %v", out, err)
	}

	if out, err = runCmd(t, "", "set", "AIzaSyExampleKey1234"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if strings.Contains(out, "AIzaSyExampleKey1234") {
		t.Fatalf("set must not echo the key: %q", out)
	}

	out, err = runCmd(t, "", "show")
	if err != nil || !strings.HasPrefix(out, "AIza") || !strings.Contains(out, "1234") {
		t.Fatalf("show after set: %q %v", out, err)
	}

	if _, err = runCmd(t, "", "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, _ = runCmd(t, "", "show")
	if !strings.Contains(out, "no API key stored") {
		t.Fatalf("show after clear: %q", out)
	}
}

func TestSetReadsStdin(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("CREDENTIAL_BACKEND", "file")
	t.Setenv("CREDENTIAL_DIR", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := runCmd(t, "from-stdin-key-42\n", "set"); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, _ := runCmd(t, "", "show")
	if !strings.HasPrefix(out, "from") || !strings.Contains(out, "y-42") {
		t.Fatalf("show = %q", out)
	}
}

func TestMemoryBackendRejected(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("CREDENTIAL_BACKEND", "memory")
	if _, err := runCmd(t, "", "show"); err == nil {
		t.Fatalf("expected error for memory backend")
	}
}
