package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aws-rdp-connect/rdpconnect/internal/appconfig"
	"github.com/aws-rdp-connect/rdpconnect/internal/awscli"
	"github.com/aws-rdp-connect/rdpconnect/internal/awsprofile"
	"github.com/aws-rdp-connect/rdpconnect/internal/connect"
	"github.com/aws-rdp-connect/rdpconnect/internal/events"
	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/history"
	"github.com/aws-rdp-connect/rdpconnect/internal/launcher"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
	"github.com/aws-rdp-connect/rdpconnect/internal/tunnel"
	"github.com/aws-rdp-connect/rdpconnect/internal/util"
)

type tickMsg time.Time

type statusMsg string

// instancesMsg carries the result of an async describe-instances call.
type instancesMsg struct {
	profile   string
	instances []model.Instance
	err       error
}

// connectDoneMsg carries the outcome of an async connection sequence.
type connectDoneMsg struct {
	res connect.Result
	err error
}

// profilesChangedMsg fires when the AWS config file changes on disk.
type profilesChangedMsg struct{}

type modelUI struct {
	profiles   []string
	profileSel int
	warnings   []string
	// runWarnings holds the latest connection run's warnings only; each new
	// connect replaces them so repeated runs do not pile up.
	runWarnings []string

	instances []model.Instance
	filtered  []model.Instance
	sel       int

	filter     string
	filterMode bool
	showHelp   bool
	settings   *settingsForm

	loading    bool
	connecting bool
	status     string

	tun *tunnel.Manager
	o   *connect.Orchestrator

	watcher *awsprofile.Watcher

	width  int
	height int
	cfg    appconfig.Settings
}

func initialModel() modelUI {
	cfg, _ := appconfig.Load()
	client := awscli.New()
	tun := tunnel.NewManager(client)
	o := connect.New(client, tun, launcher.New(cfg.RDPClient), events.NewStore(), history.Touch, cfg.LocalPortRange)

	m := modelUI{cfg: cfg, tun: tun, o: o}
	m.reloadProfiles()
	m.status = "Ready. Tab switches profile, Enter connects to the selected instance."

	if path, err := awsprofile.DefaultPath(); err == nil {
		if w, err := awsprofile.Watch(path); err == nil {
			m.watcher = w
		}
	}
	return m
}

func (m *modelUI) reloadProfiles() {
	res, err := awsprofile.ParseDefault()
	if err != nil {
		m.status = "profile parse error: " + err.Error()
		return
	}
	m.profiles = res.Profiles
	m.warnings = res.Warnings
	if m.profileSel >= len(m.profiles) {
		m.profileSel = 0
	}
	// Prefer the configured default profile on first load.
	if m.cfg.DefaultProfile != "" {
		for i, p := range m.profiles {
			if p == m.cfg.DefaultProfile {
				m.profileSel = i
				break
			}
		}
	}
}

func (m modelUI) activeProfile() string {
	if len(m.profiles) == 0 {
		return ""
	}
	return m.profiles[m.profileSel]
}

func (m *modelUI) applyFilter() {
	if strings.TrimSpace(m.filter) == "" {
		m.filtered = append([]model.Instance(nil), m.instances...)
	} else {
		f := strings.ToLower(strings.TrimSpace(m.filter))
		m.filtered = nil
		for _, in := range m.instances {
			if strings.Contains(strings.ToLower(in.ID), f) ||
				strings.Contains(strings.ToLower(in.Name), f) ||
				strings.Contains(strings.ToLower(in.PrivateIP), f) {
				m.filtered = append(m.filtered, in)
			}
		}
	}
	if m.sel >= len(m.filtered) {
		m.sel = len(m.filtered) - 1
	}
	if m.sel < 0 {
		m.sel = 0
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Duration(util.DefaultRefreshSeconds)*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func loadInstancesCmd(profile string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		insts, err := awscli.New().DescribeInstances(ctx, profile)
		return instancesMsg{profile: profile, instances: insts, err: err}
	}
}

func connectCmd(o *connect.Orchestrator, req connect.Request) tea.Cmd {
	return func() tea.Msg {
		res, err := o.Connect(context.Background(), req)
		return connectDoneMsg{res: res, err: err}
	}
}

func watchProfilesCmd(w *awsprofile.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-w.Changed; !ok {
			return nil
		}
		return profilesChangedMsg{}
	}
}

func (m modelUI) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), watchProfilesCmd(m.watcher)}
	if p := m.activeProfile(); p != "" {
		cmds = append(cmds, loadInstancesCmd(p))
	}
	return tea.Batch(cmds...)
}

func (m modelUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case instancesMsg:
		m.loading = false
		if msg.profile != m.activeProfile() {
			// Stale response from a profile the user already switched away from.
			return m, nil
		}
		if msg.err != nil {
			m.status = "instance list failed: " + msg.err.Error()
			return m, nil
		}
		insts := msg.instances
		if last, err := history.LastConnected(); err == nil {
			insts = history.SortInstancesRecent(insts, last)
		}
		m.instances = insts
		m.applyFilter()
		m.status = fmt.Sprintf("Loaded %d instances for profile %s", len(insts), msg.profile)
		return m, nil

	case connectDoneMsg:
		m.connecting = false
		m.runWarnings = msg.res.Warnings
		if msg.err != nil {
			m.status = "connect failed: " + msg.err.Error()
			if hint := fault.HintOf(msg.err); hint != "" {
				m.status += " (" + hint + ")"
			}
			return m, nil
		}
		m.status = fmt.Sprintf("Connected to %s via %s (pid=%d)", msg.res.InstanceID, msg.res.Tunnel.LocalEndpoint(), msg.res.Tunnel.PID)
		return m, nil

	case profilesChangedMsg:
		m.reloadProfiles()
		m.status = "AWS config changed, profiles reloaded"
		cmds := []tea.Cmd{watchProfilesCmd(m.watcher)}
		if p := m.activeProfile(); p != "" {
			m.loading = true
			cmds = append(cmds, loadInstancesCmd(p))
		}
		return m, tea.Batch(cmds...)

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m modelUI) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.settings != nil {
		done, cmd := m.settings.update(msg)
		if done != nil {
			if done.saved {
				m.cfg = done.cfg
				m.status = "Settings saved"
			} else {
				m.status = "Settings unchanged"
			}
			m.settings = nil
		}
		return m, cmd
	}

	if m.filterMode {
		switch msg.String() {
		case "enter", "esc":
			m.filterMode = false
			m.applyFilter()
			return m, nil
		case "backspace":
			if len(m.filter) > 0 {
				m.filter = m.filter[:len(m.filter)-1]
			}
			m.applyFilter()
			return m, nil
		default:
			if len(msg.String()) == 1 {
				m.filter += msg.String()
				m.applyFilter()
			}
			return m, nil
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.tun.Terminate()
		if m.watcher != nil {
			_ = m.watcher.Close()
		}
		return m, tea.Quit

	case "j", "down":
		if m.sel < len(m.filtered)-1 {
			m.sel++
		}
	case "k", "up":
		if m.sel > 0 {
			m.sel--
		}

	case "tab", "p":
		if len(m.profiles) == 0 {
			break
		}
		m.profileSel = (m.profileSel + 1) % len(m.profiles)
		m.loading = true
		m.instances = nil
		m.applyFilter()
		m.status = "Loading instances for profile " + m.activeProfile()
		return m, loadInstancesCmd(m.activeProfile())

	case "r":
		m.reloadProfiles()
		if p := m.activeProfile(); p != "" {
			m.loading = true
			m.status = "Refreshing instances for profile " + p
			return m, loadInstancesCmd(p)
		}

	case "/":
		m.filterMode = true
		m.status = "Filter mode: type and press Enter"

	case "?":
		m.showHelp = !m.showHelp

	case "e":
		m.settings = newSettingsForm(m.cfg)
		return m, m.settings.focusCmd()

	case "s":
		if len(m.filtered) == 0 {
			break
		}
		inst := m.filtered[m.sel]
		if appconfig.SaveInstance(&m.cfg, m.activeProfile(), inst) {
			if err := appconfig.Save(m.cfg); err != nil {
				m.status = "save failed: " + err.Error()
			} else {
				m.status = fmt.Sprintf("Saved %s under profile %s", inst.DisplayName(), m.activeProfile())
			}
		} else {
			m.status = "Already saved: " + inst.DisplayName()
		}

	case "d":
		m.tun.Terminate()
		m.status = "Tunnel terminated"

	case "enter":
		if len(m.filtered) == 0 || m.connecting {
			break
		}
		inst := m.filtered[m.sel]
		m.connecting = true
		m.runWarnings = nil
		m.status = "Connecting to " + inst.DisplayName() + "..."
		return m, connectCmd(m.o, connect.Request{
			Instance:      inst,
			ActiveProfile: m.activeProfile(),
			KnownProfiles: m.profiles,
		})
	}
	return m, nil
}

func (m modelUI) View() string {
	head := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render("AWS RDP Connect")
	subhead := fmt.Sprintf("profiles=%d instances=%d shown=%d", len(m.profiles), len(m.instances), len(m.filtered))

	if m.settings != nil {
		return lipgloss.JoinVertical(lipgloss.Left, head, m.settings.view(m.renderPanel, m.effectiveWidth()))
	}

	profLine := strings.Builder{}
	profLine.WriteString("Profiles: ")
	for i, p := range m.profiles {
		if i == m.profileSel {
			profLine.WriteString("[" + p + "] ")
		} else {
			profLine.WriteString(p + " ")
		}
	}
	if len(m.profiles) == 0 {
		profLine.WriteString("(none found in ~/.aws/config)")
	}

	left := strings.Builder{}
	if m.loading {
		left.WriteString("loading...\n")
	}
	for i, in := range m.filtered {
		cursor := " "
		if i == m.sel {
			cursor = ">"
		}
		left.WriteString(fmt.Sprintf("%s %-20s %-26s %-10s %s\n",
			cursor, in.ID, util.EmptyDash(in.Name), util.EmptyDash(in.State), util.EmptyDash(in.PrivateIP)))
	}
	if len(m.filtered) == 0 && !m.loading {
		left.WriteString("  (no instances)\n")
	}

	detail := strings.Builder{}
	if len(m.filtered) > 0 {
		in := m.filtered[m.sel]
		detail.WriteString(fmt.Sprintf("Instance: %s\nName: %s\nState: %s\nType: %s\nPrivate IP: %s\nSaved profile: %s\n",
			in.ID, util.EmptyDash(in.Name), util.EmptyDash(in.State),
			util.EmptyDash(in.Type), util.EmptyDash(in.PrivateIP), util.EmptyDash(in.Profile)))
	} else {
		detail.WriteString("Pick an instance to connect.\n")
	}

	tbl := strings.Builder{}
	if rt, ok := m.tun.Current(); ok {
		tbl.WriteString(fmt.Sprintf("%-20s %-18s %-12s %-8s %-8s\n", "INSTANCE", "ENDPOINT", "STATE", "PID", "UP(s)"))
		tbl.WriteString(fmt.Sprintf("%-20s %-18s %-12s %-8d %-8d\n", rt.InstanceID, rt.LocalEndpoint(), rt.State, rt.PID, rt.UptimeSec))
		if rt.LastError != "" {
			tbl.WriteString("last error: " + rt.LastError + "\n")
		}
	} else {
		tbl.WriteString("(no tunnel)\n")
	}

	warn := ""
	if all := append(append([]string(nil), m.warnings...), m.runWarnings...); len(all) > 0 {
		warn = "Warnings: " + strings.Join(all, " | ") + "\n"
	}
	filterLine := fmt.Sprintf("Filter: %s", m.filter)
	if m.filterMode {
		filterLine += " (typing...)"
	}

	quickHelp := "Keys: Enter connect | Tab profile | s save | d disconnect | e settings | / filter | r refresh | ? help | q quit"
	main := m.renderMainPanels(left.String(), detail.String())
	tunnelPanel := m.renderPanel("Tunnel", tbl.String(), m.effectiveWidth(), lipgloss.Color("63"))
	status := m.renderPanel("Status", m.status, m.effectiveWidth(), lipgloss.Color("205"))
	help := ""
	if m.showHelp {
		help = m.renderPanel("Help", m.helpBlock(), m.effectiveWidth(), lipgloss.Color("244"))
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		head,
		subhead,
		profLine.String(),
		filterLine,
		quickHelp,
		main,
		tunnelPanel,
		help,
		warn,
		status,
	)
}

// Run starts the interactive dashboard.
func Run() error {
	if err := awscli.EnsureAWSBinary(); err != nil {
		return err
	}
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m modelUI) helpBlock() string {
	return strings.Join([]string{
		"  Navigation: j/k or arrow keys move selection.",
		"  Profiles: Tab or p cycles the active AWS profile.",
		"  Filtering: press /, type id/name/ip text, then Enter.",
		"  Connect: press Enter on the selected instance.",
		"  Save: press s to remember the instance under the active profile.",
		"  Disconnect: press d to terminate the managed tunnel.",
		"  Settings: press e to edit client, default profile, and port range.",
		"  Quit: press q (or Ctrl+C); the managed tunnel is terminated.",
	}, "\n")
}

func (m modelUI) effectiveWidth() int {
	if m.width <= 0 {
		return 100
	}
	return m.width
}

func (m modelUI) renderMainPanels(instancesPanel, detailsPanel string) string {
	width := m.effectiveWidth()
	if width < 96 {
		return lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderPanel("Instances", instancesPanel, width, lipgloss.Color("39")),
			m.renderPanel("Details", detailsPanel, width, lipgloss.Color("69")),
		)
	}
	leftWidth := width * 3 / 5
	rightWidth := width - leftWidth
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderPanel("Instances", instancesPanel, leftWidth, lipgloss.Color("39")),
		m.renderPanel("Details", detailsPanel, rightWidth, lipgloss.Color("69")),
	)
}

func (m modelUI) renderPanel(title, body string, width int, accent lipgloss.Color) string {
	if width < 24 {
		width = 24
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(title)
	content := strings.TrimSuffix(body, "\n")
	panel := strings.TrimSpace(header + "\n" + content)
	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Render(panel)
}
