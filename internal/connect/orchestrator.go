// Package connect runs the end-to-end connection sequence: resolve the
// governing AWS profile, reauthenticate when it switched, allocate a local
// port, open the instance tunnel, confirm it, and launch the desktop
// client. One sequence runs at a time.
package connect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aws-rdp-connect/rdpconnect/internal/awsprofile"
	"github.com/aws-rdp-connect/rdpconnect/internal/events"
	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
	"github.com/aws-rdp-connect/rdpconnect/internal/portalloc"
	"github.com/aws-rdp-connect/rdpconnect/internal/util"
)

// Stage identifies where a connection sequence currently is, or where it
// stopped.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageResolvingProfile Stage = "resolving_profile"
	StageReauthPending    Stage = "reauth_pending"
	StageAllocatingPort   Stage = "allocating_port"
	StageStartingTunnel   Stage = "starting_tunnel"
	StageConfirmingTunnel Stage = "confirming_tunnel"
	StageLaunching        Stage = "launching"
	StageConnected        Stage = "connected"
	StageFailed           Stage = "failed"
)

// Request carries everything a connection sequence needs as input.
type Request struct {
	Instance      model.Instance
	ActiveProfile string
	KnownProfiles []string
}

// Result is the outcome of one sequence. On failure, FailedAt names the
// stage that was in progress when the sequence stopped.
type Result struct {
	RunID      string
	InstanceID string
	Stage      Stage
	FailedAt   Stage
	Profile    string
	Tunnel     model.TunnelRuntime
	Attempts   []model.LaunchAttempt
	Warnings   []string
}

// Authenticator performs a blocking credential refresh for a profile. Its
// return is the completion signal: the tunnel is not opened until Login
// comes back clean.
type Authenticator interface {
	Login(ctx context.Context, profile string) error
}

// Tunneler is the tunnel manager surface the sequence drives.
type Tunneler interface {
	Start(ctx context.Context, runID, instanceID string, localPort int, profile string) (model.TunnelRuntime, error)
	ConfirmLive(grace time.Duration) (model.TunnelRuntime, error)
	Terminate()
}

// ClientLauncher validates and runs the desktop-client launch chain.
type ClientLauncher interface {
	ValidateClient() error
	Launch(localPort int, instanceID string) ([]model.LaunchAttempt, error)
}

// Journal receives one event per stage transition. Journal errors never
// fail a connection.
type Journal interface {
	Append(events.Event) error
}

// Recorder marks an instance as successfully connected, for recency
// ordering in listings.
type Recorder func(instanceID string) error

// Orchestrator runs connection sequences. At most one sequence is in
// flight; a second Connect while one runs is rejected rather than queued,
// since the tunnel manager would otherwise tear down a tunnel the first
// sequence is still confirming.
type Orchestrator struct {
	auth      Authenticator
	tunnels   Tunneler
	launcher  ClientLauncher
	journal   Journal
	record    Recorder
	portRange model.PortRange
	grace     time.Duration

	// Notify, when set, observes every stage transition. Called from the
	// connecting goroutine.
	Notify func(Stage, Result)

	busy chan struct{}
}

func New(auth Authenticator, tunnels Tunneler, launcher ClientLauncher, journal Journal, record Recorder, portRange model.PortRange) *Orchestrator {
	return &Orchestrator{
		auth:      auth,
		tunnels:   tunnels,
		launcher:  launcher,
		journal:   journal,
		record:    record,
		portRange: portRange,
		grace:     util.TunnelConfirmGrace,
		busy:      make(chan struct{}, 1),
	}
}

// Connect runs the full sequence for one instance. It blocks until the
// sequence reaches Connected or Failed. The returned Result is populated
// even on error so callers can render what happened.
func (o *Orchestrator) Connect(ctx context.Context, req Request) (Result, error) {
	select {
	case o.busy <- struct{}{}:
	default:
		return Result{Stage: StageFailed, FailedAt: StageIdle},
			fault.New(fault.Configuration, "a connection is already in progress")
	}
	defer func() { <-o.busy }()

	res := Result{RunID: uuid.NewString(), InstanceID: req.Instance.ID, Stage: StageIdle}

	// A missing client is caught before any AWS work: failing after the
	// tunnel is up would waste the whole sequence on a local config error.
	if err := o.launcher.ValidateClient(); err != nil {
		return o.fail(res, StageIdle, err)
	}

	o.transition(&res, StageResolvingProfile, "")
	resolution, err := awsprofile.Resolve(req.ActiveProfile, req.Instance, req.KnownProfiles)
	if err != nil {
		return o.fail(res, StageResolvingProfile, err)
	}
	res.Profile = resolution.Profile
	if resolution.Mismatch != nil {
		res.Warnings = append(res.Warnings, resolution.Mismatch.Error())
		o.journalEvent(res, "warning", resolution.Mismatch.Error())
	}

	if resolution.Switched {
		o.transition(&res, StageReauthPending, "profile switched to "+resolution.Profile)
		if err := o.auth.Login(ctx, resolution.Profile); err != nil {
			return o.fail(res, StageReauthPending, err)
		}
	}

	o.transition(&res, StageAllocatingPort, "")
	port, err := portalloc.Allocate(o.portRange)
	if err != nil {
		return o.fail(res, StageAllocatingPort, err)
	}

	o.transition(&res, StageStartingTunnel, "")
	rt, err := o.tunnels.Start(ctx, res.RunID, req.Instance.ID, port, resolution.Profile)
	if err != nil {
		return o.fail(res, StageStartingTunnel, err)
	}
	res.Tunnel = rt

	o.transition(&res, StageConfirmingTunnel, "")
	rt, err = o.tunnels.ConfirmLive(o.grace)
	res.Tunnel = rt
	if err != nil {
		o.tunnels.Terminate()
		return o.fail(res, StageConfirmingTunnel, err)
	}

	o.transition(&res, StageLaunching, "")
	attempts, err := o.launcher.Launch(port, req.Instance.ID)
	res.Attempts = attempts
	for _, a := range attempts {
		o.journalEvent(res, "attempt", attemptMessage(a))
	}
	if err != nil {
		// The tunnel stays live: the failure hint tells the user how to
		// connect manually, which needs the endpoint to still be there.
		return o.fail(res, StageLaunching, err)
	}

	o.transition(&res, StageConnected, "")
	if o.record != nil {
		_ = o.record(req.Instance.ID)
	}
	return res, nil
}

// Disconnect terminates the managed tunnel, if any.
func (o *Orchestrator) Disconnect() {
	o.tunnels.Terminate()
}

func (o *Orchestrator) transition(res *Result, s Stage, note string) {
	res.Stage = s
	o.journalEvent(*res, "stage", firstNonEmpty(note, string(s)))
	if o.Notify != nil {
		o.Notify(s, *res)
	}
}

func (o *Orchestrator) fail(res Result, at Stage, err error) (Result, error) {
	res.FailedAt = at
	res.Stage = StageFailed
	o.journalEvent(res, "failure", err.Error())
	if o.Notify != nil {
		o.Notify(StageFailed, res)
	}
	return res, err
}

func (o *Orchestrator) journalEvent(res Result, eventType, message string) {
	if o.journal == nil {
		return
	}
	_ = o.journal.Append(events.Event{
		RunID:      res.RunID,
		InstanceID: res.InstanceID,
		Profile:    res.Profile,
		EventType:  eventType,
		Message:    message,
		LocalPort:  res.Tunnel.LocalPort,
	})
}

// attemptMessage renders one launch attempt as a journal line, so
// `events --run <id>` shows the full chain a run walked through.
func attemptMessage(a model.LaunchAttempt) string {
	msg := fmt.Sprintf("%s: %s", a.Method, a.Outcome)
	if a.Reason != "" {
		msg += " (" + a.Reason + ")"
	}
	return msg
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
