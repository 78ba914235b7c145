package util

import "strings"

// DefaultString returns the fallback value if v is empty or consists
// entirely of whitespace; otherwise it returns v unchanged.
//
// Examples:
//
//	DefaultString("prod", "default")  → "prod"
//	DefaultString("",     "default")  → "default"
//	DefaultString("  ",   "default")  → "default"
func DefaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// EmptyDash returns "-" if s is blank, used by the CLI and TUI to render a
// visible placeholder for optional fields (instance Name tag, saved profile)
// in table output.
func EmptyDash(s string) string {
	return DefaultString(s, "-")
}
