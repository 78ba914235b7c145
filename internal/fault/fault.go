// Package fault defines the error taxonomy surfaced at the connection
// orchestrator boundary. Every failure from an external collaborator (AWS
// CLI, tunnel subprocess, remote-desktop client, settings file) is mapped
// to one of these kinds before it reaches the interaction layer, so the UI
// and CLI can render a single human-readable message plus a remediation
// hint without inspecting raw subprocess errors.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// Configuration covers invalid settings such as a bad port range or a
	// missing required field. Not retried.
	Configuration Kind = "configuration"
	// ToolingMissing means a required external executable (aws CLI, the
	// configured remote-desktop client) was not found.
	ToolingMissing Kind = "tooling_missing"
	// Auth means the login collaborator failed; the user may retry manually.
	Auth Kind = "auth"
	// TunnelFailed means the tunnel subprocess exited early; the message
	// carries its captured stderr.
	TunnelFailed Kind = "tunnel_failed"
	// LaunchFailed means every launch attempt was exhausted; the hint tells
	// the user how to connect by hand.
	LaunchFailed Kind = "launch_failed"
	// ProfileMismatch means a saved profile tag is no longer known. It is
	// recoverable: the orchestrator falls back to the active profile.
	ProfileMismatch Kind = "profile_mismatch"
)

// Error tags an underlying error with a taxonomy kind and an optional
// remediation hint.
type Error struct {
	Kind Kind
	Hint string
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error from a format string.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags an existing error, preserving it for errors.Is/As chains.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf("%s: %w", msg, err)}
}

// WithHint attaches a remediation hint shown alongside the error message.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf reports the taxonomy kind of err, or "" when err carries no tag.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// HintOf returns the remediation hint attached to err, if any.
func HintOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Hint
	}
	return ""
}
