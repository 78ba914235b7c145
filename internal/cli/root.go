// Package cli provides the command-line interface for rdpconnect.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aws-rdp-connect/rdpconnect/internal/appconfig"
	"github.com/aws-rdp-connect/rdpconnect/internal/awscli"
	"github.com/aws-rdp-connect/rdpconnect/internal/awsprofile"
	"github.com/aws-rdp-connect/rdpconnect/internal/connect"
	"github.com/aws-rdp-connect/rdpconnect/internal/doctor"
	"github.com/aws-rdp-connect/rdpconnect/internal/events"
	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/history"
	"github.com/aws-rdp-connect/rdpconnect/internal/launcher"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
	"github.com/aws-rdp-connect/rdpconnect/internal/tunnel"
	"github.com/aws-rdp-connect/rdpconnect/internal/ui"
	"github.com/aws-rdp-connect/rdpconnect/internal/util"
)

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rdpconnect",
		Short: "RDP to private EC2 instances through Instance Connect tunnels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ui.Run()
		},
	}

	root.AddCommand(
		newProfilesCmd(),
		newInstancesCmd(),
		newConnectCmd(),
		newStatusCmd(),
		newEventsCmd(),
		newDoctorCmd(),
		newSettingsCmd(),
		newLoginCmd(),
	)
	return root
}

func newProfilesCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List AWS profiles from ~/.aws/config",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := awsprofile.ParseDefault()
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Profiles)
			}
			cfg, err := appconfig.Load()
			if err != nil {
				return err
			}
			for _, p := range res.Profiles {
				marker := " "
				if p == cfg.DefaultProfile {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, p)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newInstancesCmd() *cobra.Command {
	var profileArg string
	var savedOnly, jsonOut bool
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List EC2 instances for a profile, or saved instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load()
			if err != nil {
				return err
			}

			var insts []model.Instance
			if savedOnly {
				insts = cfg.SavedFor()
			} else {
				profile := util.DefaultString(profileArg, cfg.DefaultProfile)
				if profile == "" {
					return fault.New(fault.Configuration, "no profile selected").
						WithHint("pass --profile or set a default profile in settings")
				}
				insts, err = awscli.New().DescribeInstances(cmd.Context(), profile)
				if err != nil {
					return err
				}
			}

			last, err := history.LastConnected()
			if err == nil {
				insts = history.SortInstancesRecent(insts, last)
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(insts)
			}
			fmt.Printf("%-20s %-28s %-10s %-12s %-16s %s\n", "ID", "NAME", "STATE", "TYPE", "PRIVATE-IP", "PROFILE")
			for _, in := range insts {
				fmt.Printf("%-20s %-28s %-10s %-12s %-16s %s\n",
					in.ID, util.EmptyDash(in.Name), util.EmptyDash(in.State),
					util.EmptyDash(in.Type), util.EmptyDash(in.PrivateIP), util.EmptyDash(in.Profile))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&profileArg, "profile", "", "AWS profile to query")
	cmd.Flags().BoolVar(&savedOnly, "saved", false, "list saved instances instead of querying AWS")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newConnectCmd() *cobra.Command {
	var profileArg string
	cmd := &cobra.Command{
		Use:   "connect <instance-id>",
		Short: "Open a tunnel to an instance and launch the remote-desktop client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := awscli.EnsureAWSBinary(); err != nil {
				return err
			}
			cfg, err := appconfig.Load()
			if err != nil {
				return err
			}
			profiles, err := awsprofile.ParseDefault()
			if err != nil {
				return err
			}

			inst := model.Instance{ID: args[0]}
			for _, saved := range cfg.SavedFor() {
				if saved.ID == args[0] {
					inst = saved
					break
				}
			}

			o := newOrchestrator(cfg)
			res, err := o.Connect(cmd.Context(), connect.Request{
				Instance:      inst,
				ActiveProfile: util.DefaultString(profileArg, cfg.DefaultProfile),
				KnownProfiles: profiles.Profiles,
			})
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			if err != nil {
				if hint := fault.HintOf(err); hint != "" {
					fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
				}
				return err
			}
			fmt.Printf("connected %s profile=%s pid=%d endpoint=%s\n",
				inst.ID, res.Profile, res.Tunnel.PID, res.Tunnel.LocalEndpoint())
			fmt.Println("press Ctrl+C to disconnect")

			// The tunnel dies with this process, so hold it open until the
			// user interrupts.
			<-cmd.Context().Done()
			o.Disconnect()
			return nil
		},
	}
	cmd.Flags().StringVar(&profileArg, "profile", "", "AWS profile overriding the configured default")
	return cmd
}

func newOrchestrator(cfg appconfig.Settings) *connect.Orchestrator {
	client := awscli.New()
	return connect.New(
		client,
		tunnel.NewManager(client),
		launcher.New(cfg.RDPClient),
		events.NewStore(),
		history.Touch,
		cfg.LocalPortRange,
	)
}

func newStatusCmd() *cobra.Command {
	var jsonOut bool
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent connection outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			evts, err := events.NewStore().Read(events.Query{Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(evts)
			}
			fmt.Printf("%-20s %-20s %-16s %-10s %s\n", "TIME", "INSTANCE", "PROFILE", "TYPE", "MESSAGE")
			for _, e := range evts {
				fmt.Printf("%-20s %-20s %-16s %-10s %s\n",
					e.Timestamp.Local().Format(time.DateTime),
					util.EmptyDash(e.InstanceID), util.EmptyDash(e.Profile), e.EventType, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum events to show")
	return cmd
}

func newEventsCmd() *cobra.Command {
	var runID, instanceID string
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the connection event journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			evts, err := events.NewStore().Read(events.Query{
				RunID:      runID,
				InstanceID: instanceID,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(evts)
			}
			for _, e := range evts {
				fmt.Printf("%s run=%s instance=%s %s: %s\n",
					e.Timestamp.Local().Format(time.DateTime),
					util.EmptyDash(e.RunID), util.EmptyDash(e.InstanceID), e.EventType, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "filter by run id")
	cmd.Flags().StringVar(&instanceID, "instance", "", "filter by instance id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum events to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newDoctorCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose local setup problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := doctor.Run()
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			if len(report.Issues) == 0 {
				fmt.Println("no issues found")
				return nil
			}
			for _, issue := range report.Issues {
				fmt.Printf("[%s] %s %s: %s\n  fix: %s\n",
					strings.ToUpper(string(issue.Severity)), issue.Check, issue.Target,
					issue.Message, issue.Recommendation)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newSettingsCmd() *cobra.Command {
	var clientArg, defaultProfile string
	var portMin, portMax int
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load()
			if err != nil {
				return err
			}

			changed := false
			if cmd.Flags().Changed("client") {
				cfg.RDPClient = clientArg
				changed = true
			}
			if cmd.Flags().Changed("default-profile") {
				cfg.DefaultProfile = defaultProfile
				changed = true
			}
			if cmd.Flags().Changed("port-min") || cmd.Flags().Changed("port-max") {
				r := cfg.LocalPortRange
				if cmd.Flags().Changed("port-min") {
					r.Min = portMin
				}
				if cmd.Flags().Changed("port-max") {
					r.Max = portMax
				}
				if err := appconfig.ValidateUpdate(r); err != nil {
					return err
				}
				cfg.LocalPortRange = r
				changed = true
			}
			if changed {
				if err := appconfig.Save(cfg); err != nil {
					return err
				}
			}

			fmt.Printf("rdp_client:      %s\n", util.EmptyDash(cfg.RDPClient))
			fmt.Printf("default_profile: %s\n", util.EmptyDash(cfg.DefaultProfile))
			fmt.Printf("port_range:      %d-%d\n", cfg.LocalPortRange.Min, cfg.LocalPortRange.Max)
			fmt.Printf("saved_instances: %d\n", len(cfg.SavedFor()))
			return nil
		},
	}
	cmd.Flags().StringVar(&clientArg, "client", "", "remote-desktop client path or application name")
	cmd.Flags().StringVar(&defaultProfile, "default-profile", "", "default AWS profile")
	cmd.Flags().IntVar(&portMin, "port-min", 0, "lower bound of the local port range")
	cmd.Flags().IntVar(&portMax, "port-max", 0, "upper bound of the local port range")
	return cmd
}

func newLoginCmd() *cobra.Command {
	var profileArg string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Run `aws sso login` for a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := awscli.EnsureAWSBinary(); err != nil {
				return err
			}
			cfg, err := appconfig.Load()
			if err != nil {
				return err
			}
			profile := util.DefaultString(profileArg, cfg.DefaultProfile)
			if profile == "" {
				return fault.New(fault.Configuration, "no profile selected").
					WithHint("pass --profile or set a default profile in settings")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()
			if err := awscli.New().LoginInteractive(ctx, profile); err != nil {
				return err
			}
			fmt.Printf("logged in to profile %s\n", profile)
			return nil
		},
	}
	cmd.Flags().StringVar(&profileArg, "profile", "", "AWS profile to log in to")
	return cmd
}
