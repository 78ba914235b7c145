package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aws-rdp-connect/rdpconnect/internal/appconfig"
	"github.com/aws-rdp-connect/rdpconnect/internal/awscli"
	"github.com/aws-rdp-connect/rdpconnect/internal/awsprofile"
	"github.com/aws-rdp-connect/rdpconnect/internal/launcher"
	"github.com/aws-rdp-connect/rdpconnect/internal/util"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Issue struct {
	Severity       Severity `json:"severity"`
	Check          string   `json:"check"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

func (r Report) HasHigh() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// Run executes local diagnostics for rdpconnect operations.
func Run() (Report, error) {
	var issues []Issue

	if err := awscli.EnsureAWSBinary(); err != nil {
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "aws-binary",
			Target:         "PATH",
			Message:        err.Error(),
			Recommendation: "install AWS CLI v2 and ensure `aws` is on PATH",
		})
	}

	cfg, err := appconfig.Load()
	if err != nil {
		return Report{}, err
	}

	if err := launcher.New(cfg.RDPClient).ValidateClient(); err != nil {
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "rdp-client",
			Target:         util.DefaultString(cfg.RDPClient, "(unset)"),
			Message:        err.Error(),
			Recommendation: "install a remote-desktop client or update its path in settings",
		})
	}

	if err := util.ValidatePortRange(cfg.LocalPortRange.Min, cfg.LocalPortRange.Max); err != nil {
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "port-range",
			Target:         fmt.Sprintf("%d-%d", cfg.LocalPortRange.Min, cfg.LocalPortRange.Max),
			Message:        err.Error(),
			Recommendation: "set a local port range within 1024-65535 in settings",
		})
	}

	res, err := awsprofile.ParseDefault()
	if err == nil {
		for _, w := range res.Warnings {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "aws-config-warning",
				Target:         "~/.aws/config",
				Message:        w,
				Recommendation: "fix malformed profile sections in the AWS config file",
			})
		}
		if len(res.Profiles) == 0 {
			issues = append(issues, Issue{
				Severity:       SeverityHigh,
				Check:          "aws-profiles",
				Target:         "~/.aws/config",
				Message:        "no AWS profiles configured",
				Recommendation: "run `aws configure sso` to create a profile",
			})
		}
		issues = append(issues, staleTagIssues(cfg, res)...)
	}

	if dir, err := appconfig.ConfigDir(); err == nil {
		checkPathPerm(&issues, dir, 0o700, false)
		checkPathPerm(&issues, filepath.Join(dir, "config.yaml"), 0o600, true)
		checkPathPerm(&issues, filepath.Join(dir, "events.jsonl"), 0o600, true)
		checkPathPerm(&issues, filepath.Join(dir, "history.json"), 0o600, true)
	}

	sort.Slice(issues, func(i, j int) bool {
		ri := severityRank(issues[i].Severity)
		rj := severityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if issues[i].Check != issues[j].Check {
			return issues[i].Check < issues[j].Check
		}
		if issues[i].Target != issues[j].Target {
			return issues[i].Target < issues[j].Target
		}
		return issues[i].Message < issues[j].Message
	})
	return Report{Issues: issues}, nil
}

// staleTagIssues flags saved instances whose profile tag no longer matches
// any configured profile. Connecting to them falls back to the active
// profile, which may not reach the instance's account.
func staleTagIssues(cfg appconfig.Settings, res awsprofile.ParseResult) []Issue {
	var issues []Issue
	for profile, insts := range cfg.SavedInstances {
		if res.Contains(profile) {
			continue
		}
		for _, inst := range insts {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "stale-profile-tag",
				Target:         inst.ID,
				Message:        fmt.Sprintf("saved under profile %q which is no longer configured", profile),
				Recommendation: "re-save the instance under a current profile, or restore the profile",
			})
		}
	}
	return issues
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

func checkPathPerm(issues *[]Issue, path string, max os.FileMode, isFile bool) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		*issues = append(*issues, Issue{
			Severity:       SeverityLow,
			Check:          "file-permissions",
			Target:         path,
			Message:        fmt.Sprintf("unable to inspect permissions: %v", err),
			Recommendation: "verify path and permissions manually",
		})
		return
	}
	mode := st.Mode().Perm()
	if mode > max {
		kind := "directory"
		if isFile {
			kind = "file"
		}
		*issues = append(*issues, Issue{
			Severity:       SeverityMedium,
			Check:          "file-permissions",
			Target:         path,
			Message:        fmt.Sprintf("%s permissions are too broad (%#o)", kind, mode),
			Recommendation: fmt.Sprintf("restrict permissions to %#o or tighter", max),
		})
	}
}
