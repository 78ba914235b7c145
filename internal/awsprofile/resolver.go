package awsprofile

import (
	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
)

// Resolution describes which profile governs a connection attempt.
type Resolution struct {
	Profile string
	// Switched is true iff the effective profile differs from the active
	// one, which obligates the orchestrator to reauthenticate before
	// opening the tunnel.
	Switched bool
	// Mismatch is set when the instance carried a saved profile tag that is
	// no longer known and the active profile was used instead. It is a
	// warning, not a failure.
	Mismatch error
}

// Resolve picks the effective profile for connecting to inst.
//
// A saved profile tag wins when it is still known. A stale tag falls back
// to the active profile and reports a mismatch. With no usable tag and no
// valid active profile the request cannot proceed.
func Resolve(active string, inst model.Instance, known []string) (Resolution, error) {
	knownSet := map[string]bool{}
	for _, p := range known {
		knownSet[p] = true
	}

	if inst.Profile != "" {
		if knownSet[inst.Profile] {
			return Resolution{Profile: inst.Profile, Switched: inst.Profile != active}, nil
		}
		if active != "" && knownSet[active] {
			return Resolution{
				Profile: active,
				Mismatch: fault.New(fault.ProfileMismatch,
					"saved profile %q is no longer configured; using active profile %q", inst.Profile, active),
			}, nil
		}
		return Resolution{}, fault.New(fault.Configuration,
			"saved profile %q is unknown and no valid active profile is selected", inst.Profile)
	}

	if active != "" && knownSet[active] {
		return Resolution{Profile: active}, nil
	}
	return Resolution{}, fault.New(fault.Configuration, "no AWS profile selected")
}
