package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aws-rdp-connect/rdpconnect/internal/appconfig"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
)

// Field indices for the settings form.
const (
	fieldClient = iota
	fieldDefaultProfile
	fieldPortMin
	fieldPortMax
	fieldCount
)

// settingsResult is returned when the user leaves the form.
type settingsResult struct {
	cfg   appconfig.Settings
	saved bool
}

// settingsForm edits the persisted settings in place.
type settingsForm struct {
	base     appconfig.Settings
	fields   []textinput.Model
	focusIdx int
	errMsg   string
}

func newSettingsForm(cfg appconfig.Settings) *settingsForm {
	placeholders := []string{
		"mstsc.exe, /usr/bin/xfreerdp, or app name on macOS",
		"profile used when an instance has no saved profile",
		"9800",
		"9900",
	}
	values := []string{
		cfg.RDPClient,
		cfg.DefaultProfile,
		strconv.Itoa(cfg.LocalPortRange.Min),
		strconv.Itoa(cfg.LocalPortRange.Max),
	}
	limits := []int{256, 64, 6, 6}

	f := &settingsForm{base: cfg}
	f.fields = make([]textinput.Model, fieldCount)
	for i := range f.fields {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.SetValue(values[i])
		ti.CharLimit = limits[i]
		ti.Width = 50
		f.fields[i] = ti
	}
	f.fields[0].Focus()
	return f
}

func (f *settingsForm) focusCmd() tea.Cmd {
	return f.fields[f.focusIdx].Cursor.BlinkCmd()
}

// update processes a key message and returns a settingsResult once the form
// is submitted or cancelled.
func (f *settingsForm) update(msg tea.KeyMsg) (*settingsResult, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return &settingsResult{cfg: f.base, saved: false}, nil
	case "tab", "shift+tab", "down", "up":
		f.fields[f.focusIdx].Blur()
		if msg.String() == "tab" || msg.String() == "down" {
			f.focusIdx = (f.focusIdx + 1) % fieldCount
		} else {
			f.focusIdx = (f.focusIdx - 1 + fieldCount) % fieldCount
		}
		f.fields[f.focusIdx].Focus()
		return nil, f.focusCmd()
	case "enter":
		cfg, err := f.buildSettings()
		if err != nil {
			f.errMsg = err.Error()
			return nil, nil
		}
		if err := appconfig.Save(cfg); err != nil {
			f.errMsg = err.Error()
			return nil, nil
		}
		return &settingsResult{cfg: cfg, saved: true}, nil
	default:
		var cmd tea.Cmd
		f.fields[f.focusIdx], cmd = f.fields[f.focusIdx].Update(msg)
		f.errMsg = ""
		return nil, cmd
	}
}

// buildSettings applies the field values on top of the current settings,
// enforcing the port range rule before anything is persisted.
func (f *settingsForm) buildSettings() (appconfig.Settings, error) {
	cfg := f.base
	cfg.RDPClient = strings.TrimSpace(f.fields[fieldClient].Value())
	cfg.DefaultProfile = strings.TrimSpace(f.fields[fieldDefaultProfile].Value())

	minStr := strings.TrimSpace(f.fields[fieldPortMin].Value())
	maxStr := strings.TrimSpace(f.fields[fieldPortMax].Value())
	minPort, err := strconv.Atoi(minStr)
	if err != nil {
		return appconfig.Settings{}, fmt.Errorf("port range lower bound must be a number")
	}
	maxPort, err := strconv.Atoi(maxStr)
	if err != nil {
		return appconfig.Settings{}, fmt.Errorf("port range upper bound must be a number")
	}
	r := model.PortRange{Min: minPort, Max: maxPort}
	if err := appconfig.ValidateUpdate(r); err != nil {
		return appconfig.Settings{}, err
	}
	cfg.LocalPortRange = r
	return cfg, nil
}

// view renders the form panel.
func (f *settingsForm) view(renderPanel func(string, string, int, lipgloss.Color) string, width int) string {
	labels := []string{"RDP client:", "Default profile:", "Port range min:", "Port range max:"}

	var b strings.Builder
	for i, label := range labels {
		cursor := "  "
		if i == f.focusIdx {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("%s%-18s %s\n", cursor, label, f.fields[i].View()))
	}

	if f.errMsg != "" {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		b.WriteString("\n" + errStyle.Render("Error: "+f.errMsg) + "\n")
	}

	b.WriteString("\nTab/Shift-Tab navigate | Enter save | Esc cancel")
	return renderPanel("Settings", b.String(), width, lipgloss.Color("214"))
}
