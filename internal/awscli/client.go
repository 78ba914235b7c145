// Package awscli launches AWS CLI subprocesses for login, instance
// inventory, and EC2 Instance Connect tunnels.
//
// This package never speaks an AWS API itself: it shells out to the
// installed `aws` binary, which means SSO sessions, regions, and credential
// chains all come from the user's existing AWS CLI configuration without
// any reimplementation here.
//
// Three operations matter:
//
//   - Login: runs `aws sso login --profile X` and blocks until the CLI
//     reports success or failure. The blocking return is the completion
//     signal the connection orchestrator waits on before opening a tunnel
//     with freshly switched credentials.
//
//   - DescribeInstances: runs `aws ec2 describe-instances` and decodes the
//     reservation JSON into flat instance records.
//
//   - OpenTunnel: runs `aws ec2-instance-connect open-tunnel` in the
//     background. The returned TunnelProcess carries the exec.Cmd so the
//     tunnel manager can monitor lifecycle and capture stderr.
//
// All arguments are passed via argv, never through a shell, so instance ids
// and profile names containing metacharacters cannot inject commands.
package awscli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/creack/pty"

	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
	"github.com/aws-rdp-connect/rdpconnect/internal/util"
)

// TunnelProcess represents a running open-tunnel subprocess.
//
// The caller (internal/tunnel.Manager) owns its lifecycle: it calls
// Cmd.Wait() in a goroutine to detect exit, drains Stderr to capture the
// CLI's diagnostic text, and kills the process via the context passed to
// OpenTunnel.
type TunnelProcess struct {
	Cmd    *exec.Cmd
	Stderr io.ReadCloser
}

// Client launches AWS CLI processes. It is stateless and safe for
// concurrent use; each method builds an independent exec.Cmd.
type Client struct{}

func New() *Client { return &Client{} }

// EnsureAWSBinary checks that the `aws` binary is on PATH. Called early so
// connect attempts fail with a clear remediation hint instead of a raw exec
// error mid-sequence.
func EnsureAWSBinary() error {
	if _, err := exec.LookPath("aws"); err != nil {
		return fault.New(fault.ToolingMissing, "aws CLI not found in PATH").
			WithHint("install the AWS CLI v2 and ensure `aws` is on PATH")
	}
	return nil
}

// Login performs `aws sso login` for the given profile and blocks until the
// subprocess exits. A nil return means the CLI reported a completed login;
// the orchestrator relies on this as the explicit reauthentication
// completion signal rather than sleeping for a fixed settle period.
func (c *Client) Login(ctx context.Context, profile string) error {
	cmd := exec.CommandContext(ctx, "aws", "sso", "login", "--profile", profile)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fault.New(fault.Auth, "sso login for profile %q failed: %s", profile, msg)
	}
	return nil
}

// LoginInteractive runs `aws sso login` attached to a PTY so the device
// code and verification URL the CLI prints reach the user's terminal
// unmangled. Used by the `login` subcommand; the orchestrator uses the
// non-interactive Login, which is sufficient because the CLI opens the
// browser itself.
func (c *Client) LoginInteractive(ctx context.Context, profile string) error {
	cmd := exec.CommandContext(ctx, "aws", "sso", "login", "--profile", profile)
	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start login: %w", err)
	}
	defer f.Close()

	go func() {
		_, _ = io.Copy(f, os.Stdin)
	}()
	_, _ = io.Copy(os.Stdout, f)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fault.New(fault.Auth, "sso login for profile %q failed", profile)
	}
	return nil
}

// DescribeInstances lists EC2 instances visible to the given profile.
func (c *Client) DescribeInstances(ctx context.Context, profile string) ([]model.Instance, error) {
	cmd := exec.CommandContext(ctx, "aws", "ec2", "describe-instances", "--profile", profile, "--output", "json")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
			return nil, fault.New(fault.ToolingMissing, "aws CLI not found in PATH").
				WithHint("install the AWS CLI v2 and ensure `aws` is on PATH")
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("describe-instances failed: %s", msg)
	}
	return parseInstances(stdout.Bytes())
}

// parseInstances flattens the describe-instances reservation structure into
// instance records, resolving the Name tag when present.
func parseInstances(data []byte) ([]model.Instance, error) {
	var doc struct {
		Reservations []struct {
			Instances []struct {
				InstanceId string `json:"InstanceId"`
				State      struct {
					Name string `json:"Name"`
				} `json:"State"`
				InstanceType     string `json:"InstanceType"`
				PrivateIpAddress string `json:"PrivateIpAddress"`
				Tags             []struct {
					Key   string `json:"Key"`
					Value string `json:"Value"`
				} `json:"Tags"`
			} `json:"Instances"`
		} `json:"Reservations"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse describe-instances output: %w", err)
	}

	var out []model.Instance
	for _, res := range doc.Reservations {
		for _, in := range res.Instances {
			inst := model.Instance{
				ID:        in.InstanceId,
				State:     in.State.Name,
				Type:      in.InstanceType,
				PrivateIP: in.PrivateIpAddress,
			}
			for _, tag := range in.Tags {
				if tag.Key == "Name" {
					inst.Name = tag.Value
					break
				}
			}
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// OpenTunnel starts an EC2 Instance Connect tunnel subprocess in the
// background, forwarding localPort to the instance's RDP port.
//
// The process is tied to ctx via exec.CommandContext: cancelling the
// context kills it, which is how the tunnel manager terminates tunnels.
// The caller must eventually call Cmd.Wait() to reap the process and must
// drain Stderr, where the CLI writes every diagnostic (auth failures, bind
// collisions, unreachable instances).
func (c *Client) OpenTunnel(ctx context.Context, instanceID string, localPort int, profile string) (*TunnelProcess, error) {
	cmd := exec.CommandContext(ctx, "aws", c.BuildTunnelArgs(instanceID, localPort, profile)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = io.Discard
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
			return nil, fault.New(fault.ToolingMissing, "aws CLI not found in PATH").
				WithHint("install the AWS CLI v2 and ensure `aws` is on PATH")
		}
		return nil, err
	}
	return &TunnelProcess{Cmd: cmd, Stderr: stderr}, nil
}

// BuildTunnelArgs composes the open-tunnel argument list without starting a
// process, for display and for testing argument composition separately
// from execution.
//
// Example: ["ec2-instance-connect", "open-tunnel", "--instance-id",
// "i-0001", "--remote-port", "3389", "--local-port", "9811", "--profile",
// "dev"]
func (c *Client) BuildTunnelArgs(instanceID string, localPort int, profile string) []string {
	return []string{
		"ec2-instance-connect", "open-tunnel",
		"--instance-id", instanceID,
		"--remote-port", strconv.Itoa(util.RemoteDesktopPort),
		"--local-port", strconv.Itoa(localPort),
		"--profile", profile,
	}
}
