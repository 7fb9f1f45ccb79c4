package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"beatsense/internal/haptic"
	"beatsense/internal/pipeline"
	"beatsense/internal/transport"
)

// beatFlashTicks is how many messages the BEAT badge stays lit.
const beatFlashTicks = 6

// intensityStep is the change per +/- key press.
const intensityStep = 0.1

// Controller is the part of the pipeline the monitor can steer.
type Controller interface {
	Mode() pipeline.Mode
	SetMode(pipeline.Mode) error
	Strategy() pipeline.Strategy
	SetStrategy(pipeline.Strategy) error
	HapticConfig() haptic.HapticConfig
	SetHapticEnabled(bool)
	SetHapticIntensity(float64) error
	PlayPattern(haptic.VibrationPattern) bool
	Pulse(time.Duration) bool
	Stats() pipeline.Stats
}

type screen int

const (
	liveScreen screen = iota
	patternScreen
)

type keyMap struct {
	Quit      key.Binding
	Switch    key.Binding
	Mode      key.Binding
	Strategy  key.Binding
	Toggle    key.Binding
	Louder    key.Binding
	Softer    key.Binding
	Pulse     key.Binding
	Up        key.Binding
	Down      key.Binding
	PlayEntry key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Switch:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "live/patterns")),
		Mode:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mode")),
		Strategy:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "strategy")),
		Toggle:    key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "haptics on/off")),
		Louder:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "intensity")),
		Softer:    key.NewBinding(key.WithKeys("-")),
		Pulse:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pulse")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "select")),
		Down:      key.NewBinding(key.WithKeys("down", "j")),
		PlayEntry: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Switch, k.Mode, k.Strategy, k.Toggle, k.Louder, k.Pulse, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Up, k.PlayEntry}}
}

// messageMsg carries one pipeline message into Update.
type messageMsg transport.Message

// feedClosedMsg signals the source has finished.
type feedClosedMsg struct{}

// MonitorModel is the live view of a running pipeline.
type MonitorModel struct {
	feed <-chan transport.Message
	ctrl Controller

	last     transport.Message
	lastBeat transport.Message
	flash    int
	finished bool
	status   string
	screen   screen
	patterns []haptic.VibrationPattern
	selected int
	bar      progress.Model
	help     help.Model
	keys     keyMap
}

// NewMonitorModel builds a monitor over feed, steering ctrl.
func NewMonitorModel(feed <-chan transport.Message, ctrl Controller) MonitorModel {
	return MonitorModel{
		feed:     feed,
		ctrl:     ctrl,
		patterns: haptic.Patterns(),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts listening to the feed.
func (m MonitorModel) Init() tea.Cmd {
	return waitForMessage(m.feed)
}

func waitForMessage(feed <-chan transport.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-feed
		if !ok {
			return feedClosedMsg{}
		}
		return messageMsg(msg)
	}
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.bar.Width = min(40, max(10, msg.Width-30))

	case messageMsg:
		m.last = transport.Message(msg)
		if m.flash > 0 {
			m.flash--
		}
		if m.last.Beat.IsBeat {
			m.lastBeat = m.last
			m.flash = beatFlashTicks
		}
		return m, waitForMessage(m.feed)

	case feedClosedMsg:
		m.finished = true
		m.status = "source finished"

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m MonitorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Switch):
		if m.screen == liveScreen {
			m.screen = patternScreen
		} else {
			m.screen = liveScreen
		}

	case key.Matches(msg, m.keys.Mode):
		next := nextMode(m.ctrl.Mode())
		m.status = m.report(m.ctrl.SetMode(next), "mode "+string(next))

	case key.Matches(msg, m.keys.Strategy):
		next := pipeline.StrategyAdaptive
		if m.ctrl.Strategy() == pipeline.StrategyAdaptive {
			next = pipeline.StrategyMood
		}
		m.status = m.report(m.ctrl.SetStrategy(next), "strategy "+string(next))

	case key.Matches(msg, m.keys.Toggle):
		enabled := !m.ctrl.HapticConfig().Enabled
		m.ctrl.SetHapticEnabled(enabled)
		m.status = fmt.Sprintf("haptics %s", onOff(enabled))

	case key.Matches(msg, m.keys.Louder), key.Matches(msg, m.keys.Softer):
		step := intensityStep
		if key.Matches(msg, m.keys.Softer) {
			step = -step
		}
		v := m.ctrl.HapticConfig().Intensity + step
		err := m.ctrl.SetHapticIntensity(v)
		m.status = m.report(err, fmt.Sprintf("intensity %.0f%%", m.ctrl.HapticConfig().Intensity*100))

	case key.Matches(msg, m.keys.Pulse):
		m.status = playedStatus("pulse", m.ctrl.Pulse(0))

	case m.screen == patternScreen && key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case m.screen == patternScreen && key.Matches(msg, m.keys.Down):
		if m.selected < len(m.patterns)-1 {
			m.selected++
		}

	case m.screen == patternScreen && key.Matches(msg, m.keys.PlayEntry):
		p := m.patterns[m.selected]
		m.status = playedStatus(p.Name, m.ctrl.PlayPattern(p))
	}
	return m, nil
}

func (m MonitorModel) report(err error, ok string) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return ok
}

func playedStatus(name string, played bool) string {
	if played {
		return "played " + name
	}
	return name + " not played"
}

func nextMode(m pipeline.Mode) pipeline.Mode {
	switch m {
	case pipeline.ModeCombined:
		return pipeline.ModeVisual
	case pipeline.ModeVisual:
		return pipeline.ModeHaptic
	default:
		return pipeline.ModeCombined
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// View renders the UI
func (m MonitorModel) View() string {
	var title, body string
	if m.screen == liveScreen {
		title = titleStyle.Render("beatsense · live")
		body = m.renderLive()
	} else {
		title = titleStyle.Render("beatsense · pattern library")
		body = m.renderPatterns()
	}

	status := m.status
	if status == "" {
		status = fmt.Sprintf("mode %s · strategy %s", m.ctrl.Mode(), m.ctrl.Strategy())
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		body,
		infoStyle.Render(status),
		m.help.View(m.keys),
	)
}

func (m MonitorModel) renderLive() string {
	var sb strings.Builder
	f, b := m.last.Frame, m.last.Beat

	badge := dimStyle.Render(" ··· ")
	if m.flash > 0 {
		badge = beatStyle.Render("BEAT")
	}
	bpm := "--"
	if b.BPM > 0 {
		bpm = fmt.Sprintf("%d", b.BPM)
	}
	fmt.Fprintf(&sb, "%s  BPM %s  confidence %.2f  energy %.2f\n",
		badge, highlightStyle.Render(bpm), b.Confidence, b.Energy)
	if m.last.Source != "" {
		fmt.Fprintf(&sb, "%s\n", dimStyle.Render(fmt.Sprintf("source %s · session %s · tick %d",
			m.last.Source, m.last.Session, m.last.Sequence)))
	}
	sb.WriteString("\n")

	for _, band := range []struct {
		name  string
		level float64
	}{
		{"volume", f.Volume},
		{"bass  ", f.Bass},
		{"mid   ", f.Mid},
		{"treble", f.Treble},
	} {
		fmt.Fprintf(&sb, "%s %s %3.0f%%\n", band.name, m.bar.ViewAs(band.level), band.level*100)
	}

	hc := m.ctrl.HapticConfig()
	haptics := fmt.Sprintf("haptics %s · intensity %.0f%% · device %s",
		onOff(hc.Enabled), hc.Intensity*100, orNone(string(hc.DeviceClass)))
	if hc.IsActuating {
		haptics += " · " + highlightStyle.Render("vibrating")
	}
	if m.lastBeat.Haptic.Pattern != "" {
		haptics += fmt.Sprintf("\nlast beat pattern %s (%s)",
			m.lastBeat.Haptic.Pattern, playedWord(m.lastBeat.Haptic.Played))
	}
	stats := m.ctrl.Stats()
	haptics += dimStyle.Render(fmt.Sprintf("\nticks %d · beats %d · played %d · send errors %d",
		stats.Ticks, stats.Beats, stats.HapticPlays, stats.SendErrors))

	sb.WriteString("\n")
	sb.WriteString(panelStyle.Render(haptics))
	if m.finished {
		sb.WriteString("\n" + highlightStyle.Render("source finished, press q to exit"))
	}
	return sb.String()
}

func playedWord(played bool) string {
	if played {
		return "played"
	}
	return "skipped"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func (m MonitorModel) renderPatterns() string {
	var sb strings.Builder
	for i, p := range m.patterns {
		line := fmt.Sprintf("  %-18s %5dms  %s\n", p.Name, p.Duration(), p.Description)
		if i == m.selected {
			line = highlightStyle.Render("▶" + line[1:])
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// RunMonitor launches the monitor and blocks until the user quits.
func RunMonitor(feed *Feed, ctrl Controller) error {
	p := tea.NewProgram(NewMonitorModel(feed.C(), ctrl), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
