// Package util provides common utility functions and constants used across
// the rdpconnect application. This package is intentionally kept
// dependency-free (no imports from other internal/* packages) to serve as a
// shared foundation without introducing circular dependencies.
package util

import "time"

const (
	// RemoteDesktopPort is the fixed remote port every tunnel forwards to.
	// EC2 Instance Connect tunnels created by this tool always target RDP.
	RemoteDesktopPort = 3389

	// TunnelConfirmGrace is how long the tunnel manager waits after spawning
	// the open-tunnel subprocess before deciding it survived startup. The
	// check is process-alive, not protocol-alive: a subprocess that is still
	// running after the grace window is treated as a live tunnel even though
	// no RDP traffic has flowed yet. Used by internal/tunnel and as the
	// orchestrator's default confirm window.
	TunnelConfirmGrace = 2 * time.Second

	// MinUserPort and MaxUserPort bound the configurable local port range.
	// Ports below 1024 require elevated privileges to bind and are rejected
	// when the user edits settings.
	MinUserPort = 1024
	MaxUserPort = 65535

	// DefaultRefreshSeconds is the fallback interval for the TUI's periodic
	// tunnel status refresh, used when settings carry no valid value.
	DefaultRefreshSeconds = 3
)
