// Package launcher starts the local remote-desktop client against a
// tunnel's local endpoint.
//
// Each platform gets an ordered chain of launch methods, resolved once per
// launcher rather than inspected at call time:
//
//   - Windows: write an .rdp descriptor file and hand it to the configured
//     client (mstsc).
//   - macOS: try the descriptor through the default handler, then through
//     the named client application, then an rdp:// URI, stopping at the
//     first method that works.
//   - Everything else: invoke the configured client binary directly, with
//     the argument form the client expects (rdesktop-style positional
//     address, or xfreerdp's /v: form).
//
// The chain is finite and non-restartable: methods after the first success
// never run, and every method that did run is recorded as a LaunchAttempt
// for diagnostics.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
)

// Runner abstracts subprocess execution so tests can script per-attempt
// outcomes. Run starts a command and waits for it (handoff helpers like
// macOS `open` exit immediately after dispatching); Start fires and forgets
// (desktop clients block until the user closes the session, so waiting
// would hang the orchestrator).
type Runner interface {
	Run(name string, args ...string) error
	Start(name string, args ...string) error
}

type osRunner struct{}

func (osRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

func (osRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap in the background so the client never becomes a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}

// Launcher executes the launch chain for one configured client.
type Launcher struct {
	goos   string
	client string
	runner Runner
	tmpDir string
}

// New builds a launcher for the current platform and the configured
// remote-desktop client (a path on Windows/Linux, an application name on
// macOS).
func New(client string) *Launcher {
	return &Launcher{goos: runtime.GOOS, client: client, runner: osRunner{}, tmpDir: os.TempDir()}
}

// ValidateClient checks that a usable client is configured before any
// tunnel work starts. On macOS the chain can succeed through the default
// handler without a configured client, so nothing is required there.
func (l *Launcher) ValidateClient() error {
	if l.goos == "darwin" {
		return nil
	}
	if strings.TrimSpace(l.client) == "" {
		return fault.New(fault.Configuration, "remote-desktop client not configured").
			WithHint("set the client path in settings")
	}
	if strings.ContainsRune(l.client, os.PathSeparator) {
		if _, err := os.Stat(l.client); err != nil {
			return fault.New(fault.ToolingMissing, "remote-desktop client not found at %s", l.client).
				WithHint("install the client or update its path in settings")
		}
		return nil
	}
	if _, err := exec.LookPath(l.client); err != nil {
		return fault.New(fault.ToolingMissing, "remote-desktop client %q not found in PATH", l.client).
			WithHint("install the client or update its path in settings")
	}
	return nil
}

type step struct {
	method string
	skip   string // non-empty: recorded as skipped with this reason
	exec   func() error
}

// Launch runs the platform's attempt chain against localhost:localPort.
// The returned attempts are in execution order. When every runnable
// attempt fails, the error is a launch failure whose hint carries the
// manual-connection instruction with the tunnel endpoint.
func (l *Launcher) Launch(localPort int, instanceID string) ([]model.LaunchAttempt, error) {
	steps, err := l.plan(localPort, instanceID)
	if err != nil {
		return nil, err
	}

	var attempts []model.LaunchAttempt
	for _, s := range steps {
		if s.skip != "" {
			attempts = append(attempts, model.LaunchAttempt{Method: s.method, Outcome: model.LaunchSkipped, Reason: s.skip})
			continue
		}
		if err := s.exec(); err != nil {
			attempts = append(attempts, model.LaunchAttempt{Method: s.method, Outcome: model.LaunchFailure, Reason: err.Error()})
			continue
		}
		attempts = append(attempts, model.LaunchAttempt{Method: s.method, Outcome: model.LaunchSuccess})
		return attempts, nil
	}
	return attempts, fault.New(fault.LaunchFailed, "all remote-desktop launch methods failed").
		WithHint(fmt.Sprintf("open your remote-desktop client manually and connect to localhost:%d", localPort))
}

func (l *Launcher) plan(localPort int, instanceID string) ([]step, error) {
	switch l.goos {
	case "windows":
		file, err := l.writeDescriptor(instanceID, localPort)
		if err != nil {
			return nil, err
		}
		return []step{
			{method: "client-file", exec: func() error { return l.runner.Start(l.client, file) }},
		}, nil

	case "darwin":
		file, err := l.writeDescriptor(instanceID, localPort)
		if err != nil {
			return nil, err
		}
		steps := []step{
			{method: "open-default", exec: func() error { return l.runner.Run("open", file) }},
		}
		if strings.TrimSpace(l.client) == "" {
			steps = append(steps, step{method: "open-named-client", skip: "no client application configured"})
		} else {
			steps = append(steps, step{method: "open-named-client", exec: func() error {
				return l.runner.Run("open", "-a", l.client, file)
			}})
		}
		uri := fmt.Sprintf("rdp://full%%20address=s:localhost:%d", localPort)
		steps = append(steps, step{method: "open-uri", exec: func() error { return l.runner.Run("open", uri) }})
		return steps, nil

	default:
		args := clientArgs(l.client, localPort)
		return []step{
			{method: "client-direct", exec: func() error { return l.runner.Start(l.client, args...) }},
		}, nil
	}
}

// clientArgs selects the argument form by matching a known substring in the
// configured client path. Unrecognized clients get the positional form.
func clientArgs(client string, localPort int) []string {
	endpoint := fmt.Sprintf("localhost:%d", localPort)
	if strings.Contains(client, "xfreerdp") {
		return []string{"/v:" + endpoint}
	}
	return []string{endpoint}
}

// writeDescriptor creates the .rdp connection descriptor the Windows and
// macOS chains hand to the client. The credential-prompt flag makes the
// client ask for credentials instead of assuming cached ones.
func (l *Launcher) writeDescriptor(instanceID string, localPort int) (string, error) {
	path := filepath.Join(l.tmpDir, fmt.Sprintf("rdpconnect_%s.rdp", instanceID))
	content := fmt.Sprintf("full address:s:localhost:%d\nprompt for credentials:i:1\n", localPort)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fault.Wrap(fault.LaunchFailed, err, "write connection descriptor")
	}
	return path, nil
}
