package model

import (
	"fmt"
	"time"
)

// Instance is one EC2 instance record as reported by describe-instances.
type Instance struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	State     string `json:"state" yaml:"state"`
	Type      string `json:"type" yaml:"type"`
	PrivateIP string `json:"private_ip" yaml:"private_ip"`
	// Profile is set only on saved instances. It records which credential
	// profile the instance was saved under, which may differ from the
	// profile active when the user later connects.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
}

func (i Instance) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}

// PortRange is the inclusive window local tunnel ports are drawn from.
type PortRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

type TunnelState string

const (
	TunnelStarting   TunnelState = "starting"
	TunnelLive       TunnelState = "live"
	TunnelFailed     TunnelState = "failed"
	TunnelTerminated TunnelState = "terminated"
)

// TunnelRuntime is the observable state of the managed instance-connect
// tunnel. At most one tunnel is live at a time; a new connection replaces
// the previous one.
type TunnelRuntime struct {
	RunID      string      `json:"run_id"`
	InstanceID string      `json:"instance_id"`
	Profile    string      `json:"profile"`
	LocalPort  int         `json:"local_port"`
	RemotePort int         `json:"remote_port"`
	PID        int         `json:"pid,omitempty"`
	State      TunnelState `json:"state"`
	StartedAt  time.Time   `json:"-"`
	UptimeSec  int64       `json:"uptime_seconds"`
	LastError  string      `json:"last_error,omitempty"`
}

// LocalEndpoint is the address the remote-desktop client dials.
func (t TunnelRuntime) LocalEndpoint() string {
	return fmt.Sprintf("localhost:%d", t.LocalPort)
}

type LaunchOutcome string

const (
	LaunchSuccess LaunchOutcome = "success"
	LaunchFailure LaunchOutcome = "failed"
	LaunchSkipped LaunchOutcome = "skipped"
)

// LaunchAttempt records one concrete method of invoking the remote-desktop
// client and how it went. Attempts are recorded in execution order, for
// diagnostics only.
type LaunchAttempt struct {
	Method  string        `json:"method"`
	Outcome LaunchOutcome `json:"outcome"`
	Reason  string        `json:"reason,omitempty"`
}
