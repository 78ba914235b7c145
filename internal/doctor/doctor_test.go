package doctor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws-rdp-connect/rdpconnect/internal/appconfig"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(home, "aws-config"))
	return home
}

func TestRunFlagsMissingProfiles(t *testing.T) {
	isolate(t)

	report, err := Run()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Check == "aws-profiles" && issue.Severity == SeverityHigh {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected aws-profiles issue, got %+v", report.Issues)
	}
}

func TestRunFlagsStaleProfileTags(t *testing.T) {
	home := isolate(t)

	awsCfg := "[profile prod]\nregion = us-east-1\n"
	if err := os.WriteFile(filepath.Join(home, "aws-config"), []byte(awsCfg), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := appconfig.Default()
	cfg.SavedInstances = map[string][]model.Instance{
		"retired": {{ID: "i-0abc", Name: "legacy"}},
	}
	if err := appconfig.Save(cfg); err != nil {
		t.Fatal(err)
	}

	report, err := Run()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Check == "stale-profile-tag" && issue.Target == "i-0abc" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected stale-profile-tag issue, got %+v", report.Issues)
	}
}

func TestRunFlagsBroadConfigPermissions(t *testing.T) {
	home := isolate(t)

	awsCfg := "[profile prod]\nregion = us-east-1\n"
	if err := os.WriteFile(filepath.Join(home, "aws-config"), []byte(awsCfg), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := appconfig.Load(); err != nil {
		t.Fatal(err)
	}
	dir, err := appconfig.ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(filepath.Join(dir, "config.yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := Run()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Check == "file-permissions" && issue.Target == filepath.Join(dir, "config.yaml") {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected file-permissions issue, got %+v", report.Issues)
	}
}

func TestRunJSONShape(t *testing.T) {
	isolate(t)

	report, err := Run()
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["issues"]; !ok {
		t.Fatalf("expected issues key in json output: %s", string(b))
	}
}
