package util

import "fmt"

// ValidatePortRange checks a user-supplied local port range. Both bounds
// must fall within [MinUserPort, MaxUserPort] and min must be strictly less
// than max. This runs when settings change, not at allocation time.
func ValidatePortRange(min, max int) error {
	if min < MinUserPort || min > MaxUserPort || max < MinUserPort || max > MaxUserPort {
		return fmt.Errorf("port range %d-%d out of bounds (ports must be %d-%d)", min, max, MinUserPort, MaxUserPort)
	}
	if min >= max {
		return fmt.Errorf("port range %d-%d invalid: min must be less than max", min, max)
	}
	return nil
}
