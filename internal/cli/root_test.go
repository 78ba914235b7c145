package cli

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws-rdp-connect/rdpconnect/internal/appconfig"
	"github.com/aws-rdp-connect/rdpconnect/internal/events"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
)

func setupEnvForCLI(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	awsCfg := filepath.Join(home, "aws-config")
	t.Setenv("AWS_CONFIG_FILE", awsCfg)
	content := "[default]\nregion = us-east-1\n[profile prod]\nregion = us-east-1\n[profile dev]\nregion = eu-west-1\n"
	if err := os.WriteFile(awsCfg, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return home
}

func TestProfilesTextOutput(t *testing.T) {
	setupEnvForCLI(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"profiles"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, p := range []string{"default", "prod", "dev"} {
		if !strings.Contains(out, p) {
			t.Fatalf("expected profile %s in output: %s", p, out)
		}
	}
}

func TestProfilesJSONOutput(t *testing.T) {
	setupEnvForCLI(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"profiles", "--json"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var profiles []string
	if err := json.Unmarshal([]byte(out), &profiles); err != nil {
		t.Fatalf("json parse: %v; output=%s", err, out)
	}
	if len(profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %v", profiles)
	}
}

func TestInstancesSavedOutput(t *testing.T) {
	setupEnvForCLI(t)

	cfg := appconfig.Default()
	appconfig.SaveInstance(&cfg, "prod", model.Instance{ID: "i-0aa", Name: "bastion-adjacent"})
	if err := appconfig.Save(cfg); err != nil {
		t.Fatal(err)
	}

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"instances", "--saved"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "i-0aa") || !strings.Contains(out, "bastion-adjacent") {
		t.Fatalf("expected saved instance in output: %s", out)
	}
	if !strings.Contains(out, "prod") {
		t.Fatalf("expected profile tag in output: %s", out)
	}
}

func TestInstancesNoProfileFails(t *testing.T) {
	setupEnvForCLI(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"instances"})
	cmd.SetErr(io.Discard)
	cmd.SetOut(io.Discard)
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without a selected profile")
	}
}

func TestEventsJSONOutput(t *testing.T) {
	setupEnvForCLI(t)

	store := events.NewStore()
	if err := store.Append(events.Event{
		Timestamp:  time.Now().UTC(),
		RunID:      "r-1",
		InstanceID: "i-0bb",
		EventType:  "stage",
		Message:    "connected",
		LocalPort:  9822,
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"events", "--instance", "i-0bb", "--json"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("events json: %v", err)
	}
	var payload []map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("invalid events json: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("expected 1 event, got %d", len(payload))
	}
	if payload[0]["message"] != "connected" {
		t.Fatalf("unexpected event: %v", payload[0])
	}
}

func TestDoctorJSONOutput(t *testing.T) {
	setupEnvForCLI(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"doctor", "--json"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("doctor json: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("invalid doctor json: %v", err)
	}
	if _, ok := payload["issues"]; !ok {
		t.Fatalf("expected issues key in doctor output: %s", out)
	}
}

func TestSettingsUpdateAndShow(t *testing.T) {
	setupEnvForCLI(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"settings", "--default-profile", "prod", "--port-min", "9700", "--port-max", "9750"})
	out, err := captureStdout(func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("settings update: %v", err)
	}
	if !strings.Contains(out, "prod") || !strings.Contains(out, "9700-9750") {
		t.Fatalf("expected updated settings in output: %s", out)
	}

	cfg, err := appconfig.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultProfile != "prod" || cfg.LocalPortRange.Min != 9700 {
		t.Fatalf("settings not persisted: %+v", cfg)
	}
}

func TestSettingsRejectsInvalidRange(t *testing.T) {
	setupEnvForCLI(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"settings", "--port-min", "100"})
	cmd.SetErr(io.Discard)
	cmd.SetOut(io.Discard)
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for port below 1024")
	}
}

func captureStdout(fn func() error) (string, error) {
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}
	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = orig
	b, readErr := io.ReadAll(r)
	if readErr != nil {
		return "", readErr
	}
	return string(b), runErr
}
