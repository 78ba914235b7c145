// Package tunnel manages the lifecycle of the EC2 Instance Connect tunnel
// subprocess: spawn, liveness confirmation, and termination. The manager
// enforces the single-tunnel invariant: at most one tunnel is live
// system-wide, and starting a new one terminates its predecessor first.
package tunnel

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws-rdp-connect/rdpconnect/internal/awscli"
	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
	"github.com/aws-rdp-connect/rdpconnect/internal/util"
)

// stderrCap bounds how much of the subprocess error stream is retained for
// diagnostics.
const stderrCap = 32 << 10

// Starter abstracts tunnel process creation for testing.
type Starter interface {
	OpenTunnel(ctx context.Context, instanceID string, localPort int, profile string) (*awscli.TunnelProcess, error)
}

// Manager owns the single managed tunnel. All state transitions happen
// under its lock; the watch goroutine that reaps the subprocess goes
// through the same lock, so readers always see a consistent runtime.
type Manager struct {
	mu      sync.Mutex
	starter Starter
	cur     *active
}

type active struct {
	rt     model.TunnelRuntime
	cancel context.CancelFunc
	// exited is closed by the watch goroutine once the subprocess has been
	// reaped and its stderr captured.
	exited chan struct{}
	stderr string
}

func NewManager(st Starter) *Manager {
	return &Manager{starter: st}
}

// Start launches a tunnel subprocess for the given instance and returns its
// runtime in the Starting state. Any prior tunnel is terminated first so
// the single-tunnel invariant holds even when the caller never disconnected
// the previous session.
//
// The subprocess is bound to its own background context, not to ctx: the
// tunnel must outlive the connection sequence that created it. ctx only
// gates the spawn itself.
func (m *Manager) Start(ctx context.Context, runID, instanceID string, localPort int, profile string) (model.TunnelRuntime, error) {
	if err := ctx.Err(); err != nil {
		return model.TunnelRuntime{}, err
	}

	m.mu.Lock()
	m.terminateLocked()
	m.mu.Unlock()

	procCtx, cancel := context.WithCancel(context.Background())
	proc, err := m.starter.OpenTunnel(procCtx, instanceID, localPort, profile)
	if err != nil {
		cancel()
		if fault.KindOf(err) != "" {
			return model.TunnelRuntime{}, err
		}
		return model.TunnelRuntime{}, fault.Wrap(fault.TunnelFailed, err, "start tunnel")
	}

	a := &active{
		rt: model.TunnelRuntime{
			RunID:      runID,
			InstanceID: instanceID,
			Profile:    profile,
			LocalPort:  localPort,
			RemotePort: util.RemoteDesktopPort,
			PID:        proc.Cmd.Process.Pid,
			State:      model.TunnelStarting,
			StartedAt:  time.Now(),
		},
		cancel: cancel,
		exited: make(chan struct{}),
	}

	m.mu.Lock()
	m.cur = a
	m.mu.Unlock()

	go m.watch(a, proc)
	return a.rt, nil
}

// watch drains the subprocess stderr, reaps the process, and records an
// unexpected exit as a failure. Expected exits (after Terminate) keep
// their Terminated state.
func (m *Manager) watch(a *active, proc *awscli.TunnelProcess) {
	raw, _ := io.ReadAll(io.LimitReader(proc.Stderr, stderrCap))
	waitErr := proc.Cmd.Wait()

	m.mu.Lock()
	a.stderr = strings.TrimSpace(string(raw))
	if a.rt.State == model.TunnelStarting || a.rt.State == model.TunnelLive {
		a.rt.State = model.TunnelFailed
		a.rt.LastError = a.stderr
		if a.rt.LastError == "" && waitErr != nil {
			a.rt.LastError = waitErr.Error()
		}
		a.rt.PID = 0
	}
	m.mu.Unlock()
	close(a.exited)
}

// ConfirmLive waits up to grace for evidence the subprocess died during
// startup. A process still running after the grace window is declared
// Live. This is a process-alive heuristic, not a protocol-level check: the
// CLI may still be negotiating the websocket when we report Live, and the
// first RDP connection is the real proof.
func (m *Manager) ConfirmLive(grace time.Duration) (model.TunnelRuntime, error) {
	m.mu.Lock()
	a := m.cur
	m.mu.Unlock()
	if a == nil {
		return model.TunnelRuntime{}, fault.New(fault.TunnelFailed, "no tunnel in progress")
	}

	select {
	case <-a.exited:
	case <-time.After(grace):
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if a.rt.State == model.TunnelFailed {
		rt := a.rt
		msg := rt.LastError
		if msg == "" {
			msg = "tunnel process exited during startup"
		}
		return rt, fault.New(fault.TunnelFailed, "tunnel to %s failed: %s", rt.InstanceID, msg)
	}
	if a.rt.State == model.TunnelStarting {
		a.rt.State = model.TunnelLive
	}
	return a.rt, nil
}

// Terminate requests termination of the current tunnel. It is idempotent:
// terminating an already Terminated or Failed tunnel, or when no tunnel
// exists, is a no-op. Must be called on orchestrator teardown and on
// detected failure so the subprocess is never leaked.
func (m *Manager) Terminate() {
	m.mu.Lock()
	m.terminateLocked()
	m.mu.Unlock()
}

func (m *Manager) terminateLocked() {
	a := m.cur
	if a == nil {
		return
	}
	if a.rt.State == model.TunnelTerminated || a.rt.State == model.TunnelFailed {
		return
	}
	// Flip the state before cancelling so the watch goroutine sees the
	// termination as expected and does not record it as a failure.
	a.rt.State = model.TunnelTerminated
	a.rt.PID = 0
	a.cancel()
}

// Current returns the managed tunnel's runtime with uptime computed, or
// false when no tunnel has been started.
func (m *Manager) Current() (model.TunnelRuntime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return model.TunnelRuntime{}, false
	}
	rt := m.cur.rt
	if !rt.StartedAt.IsZero() && rt.State == model.TunnelLive {
		rt.UptimeSec = int64(time.Since(rt.StartedAt).Seconds())
	}
	return rt, true
}
