package launcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
)

// scriptedRunner fails every invocation whose command line matches one of
// the fail substrings, and records every invocation it sees.
type scriptedRunner struct {
	fail  []string
	calls []string
}

func (r *scriptedRunner) invoke(name string, args ...string) error {
	line := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, line)
	for _, f := range r.fail {
		if strings.Contains(line, f) {
			return errors.New("exit status 1")
		}
	}
	return nil
}

func (r *scriptedRunner) Run(name string, args ...string) error   { return r.invoke(name, args...) }
func (r *scriptedRunner) Start(name string, args ...string) error { return r.invoke(name, args...) }

func newTestLauncher(t *testing.T, goos, client string, r Runner) *Launcher {
	t.Helper()
	return &Launcher{goos: goos, client: client, runner: r, tmpDir: t.TempDir()}
}

func TestDarwinChainShortCircuits(t *testing.T) {
	// First method fails, second succeeds: exactly two attempts recorded,
	// and the URI fallback is never invoked.
	r := &scriptedRunner{}
	l := newTestLauncher(t, "darwin", "Microsoft Remote Desktop", r)
	// Fail only the bare `open <file>` form; `open -a ...` still succeeds.
	r.fail = []string{fmt.Sprintf("open %s", filepath.Join(l.tmpDir, "rdpconnect_i-0001.rdp"))}

	attempts, err := l.Launch(9810, "i-0001")
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected exactly 2 attempts, got %+v", attempts)
	}
	if attempts[0].Outcome != model.LaunchFailure || attempts[0].Method != "open-default" {
		t.Fatalf("unexpected first attempt: %+v", attempts[0])
	}
	if attempts[1].Outcome != model.LaunchSuccess || attempts[1].Method != "open-named-client" {
		t.Fatalf("unexpected second attempt: %+v", attempts[1])
	}
	for _, call := range r.calls {
		if strings.Contains(call, "rdp://") {
			t.Fatalf("uri fallback must not run after a success: %v", r.calls)
		}
	}
}

func TestDarwinChainExhaustionCarriesManualHint(t *testing.T) {
	r := &scriptedRunner{fail: []string{"open"}}
	l := newTestLauncher(t, "darwin", "Microsoft Remote Desktop", r)

	attempts, err := l.Launch(9811, "i-0002")
	if err == nil {
		t.Fatal("expected launch failure")
	}
	if fault.KindOf(err) != fault.LaunchFailed {
		t.Fatalf("expected launch_failed kind, got %q", fault.KindOf(err))
	}
	if !strings.Contains(fault.HintOf(err), "localhost:9811") {
		t.Fatalf("hint must carry the tunnel endpoint: %q", fault.HintOf(err))
	}
	if len(attempts) != 3 {
		t.Fatalf("expected all 3 attempts recorded, got %+v", attempts)
	}
}

func TestDarwinUnconfiguredClientIsSkippedNotFailed(t *testing.T) {
	r := &scriptedRunner{fail: []string{".rdp"}}
	l := newTestLauncher(t, "darwin", "", r)

	attempts, err := l.Launch(9812, "i-0003")
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %+v", attempts)
	}
	if attempts[1].Outcome != model.LaunchSkipped {
		t.Fatalf("expected named-client attempt skipped, got %+v", attempts[1])
	}
	if attempts[2].Outcome != model.LaunchSuccess || attempts[2].Method != "open-uri" {
		t.Fatalf("expected uri fallback success, got %+v", attempts[2])
	}
}

func TestWindowsWritesDescriptorAndLaunchesClient(t *testing.T) {
	r := &scriptedRunner{}
	l := newTestLauncher(t, "windows", `mstsc.exe`, r)

	attempts, err := l.Launch(9813, "i-0004")
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 || attempts[0].Outcome != model.LaunchSuccess {
		t.Fatalf("unexpected attempts: %+v", attempts)
	}

	b, err := os.ReadFile(filepath.Join(l.tmpDir, "rdpconnect_i-0004.rdp"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(b)
	if !strings.Contains(content, "full address:s:localhost:9813\n") {
		t.Fatalf("descriptor missing address line: %q", content)
	}
	if !strings.Contains(content, "prompt for credentials:i:1\n") {
		t.Fatalf("descriptor missing credential prompt flag: %q", content)
	}
}

func TestLinuxClientArgForms(t *testing.T) {
	cases := []struct {
		client string
		want   string
	}{
		{"/usr/bin/rdesktop", "/usr/bin/rdesktop localhost:9814"},
		{"/usr/bin/xfreerdp", "/usr/bin/xfreerdp /v:localhost:9814"},
		{"/opt/some-client", "/opt/some-client localhost:9814"},
	}
	for _, tc := range cases {
		r := &scriptedRunner{}
		l := newTestLauncher(t, "linux", tc.client, r)
		if _, err := l.Launch(9814, "i-0005"); err != nil {
			t.Fatalf("%s: %v", tc.client, err)
		}
		if len(r.calls) != 1 || r.calls[0] != tc.want {
			t.Fatalf("%s: unexpected invocation %v", tc.client, r.calls)
		}
	}
}

func TestValidateClient(t *testing.T) {
	l := newTestLauncher(t, "linux", "", &scriptedRunner{})
	if err := l.ValidateClient(); fault.KindOf(err) != fault.Configuration {
		t.Fatalf("expected configuration error for empty client, got %v", err)
	}

	l = newTestLauncher(t, "linux", filepath.Join(t.TempDir(), "missing-client"), &scriptedRunner{})
	if err := l.ValidateClient(); fault.KindOf(err) != fault.ToolingMissing {
		t.Fatalf("expected tooling_missing for absent path, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "client")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	l = newTestLauncher(t, "linux", path, &scriptedRunner{})
	if err := l.ValidateClient(); err != nil {
		t.Fatalf("expected existing path to validate: %v", err)
	}

	// macOS never requires a configured client.
	l = newTestLauncher(t, "darwin", "", &scriptedRunner{})
	if err := l.ValidateClient(); err != nil {
		t.Fatalf("darwin validation should pass: %v", err)
	}
}
