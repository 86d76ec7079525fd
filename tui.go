package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"micrec/audio"
	"micrec/clipboard"
	"micrec/gesture"
	"micrec/recorder"
)

// TUI message types
type refreshMsg struct{}
type errMsg struct{ err error }
type noticeMsg string
type tickMsg time.Time

type tuiModel struct {
	app      *app
	state    recorder.State
	cursor   int
	lockMode bool
	recStart time.Time
	elapsed  time.Duration
	notice   string
	errText  string
	frame    int
	width    int
	height   int
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	standbyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	urlStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	buttonStyle  = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder())
)

func newTUIModel(a *app) tuiModel {
	m := tuiModel{app: a, lockMode: a.lock.Load()}
	m.setState(a.ctrl.Snapshot())
	if sel := m.state.Selected; sel != nil {
		for i, d := range m.state.Devices {
			if d.ID == sel.ID {
				m.cursor = i
			}
		}
	}
	return m
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m *tuiModel) setState(st recorder.State) {
	if st.Recording && !m.state.Recording {
		m.recStart = time.Now()
		m.elapsed = 0
	}
	m.state = st
	if m.cursor >= len(st.Devices) {
		m.cursor = max(len(st.Devices)-1, 0)
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.frame++
		if m.state.Recording {
			m.elapsed = time.Since(m.recStart)
		}
		return m, tuiTick()

	case refreshMsg:
		m.setState(m.app.ctrl.Snapshot())
		m.lockMode = m.app.lock.Load()

	case errMsg:
		m.errText = msg.err.Error()
		m.notice = ""

	case noticeMsg:
		m.notice = string(msg)
		m.errText = ""

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := m.app
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.state.Devices)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.state.Devices) == 0 || m.state.Recording {
			return m, nil
		}
		a.selectDevice(m.state.Devices[m.cursor].ID)
		m.setState(a.ctrl.Snapshot())
	case " ", "space":
		return m, gestureCmd(a, gesture.Click)
	case "l":
		m.lockMode = !m.lockMode
		a.setLock(m.lockMode)
		if m.lockMode && a.combo == "" {
			m.notice = "lock mode needs a -hotkey to hold"
		}
	case "p":
		return m, playCmd(a)
	case "c":
		return m, copyCmd(m.state.AudioURL)
	case "r":
		return m, reloadCmd(a)
	case "w":
		return m, saveCmd(a)
	}
	return m, nil
}

func gestureCmd(a *app, g gesture.Gesture) tea.Cmd {
	return func() tea.Msg {
		if err := a.gesture(a.ctx, g); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func playCmd(a *app) tea.Cmd {
	return func() tea.Msg {
		if err := a.playLast(a.ctx); err != nil {
			return errMsg{fmt.Errorf("playback: %w", err)}
		}
		return noticeMsg("playback finished")
	}
}

func copyCmd(url string) tea.Cmd {
	return func() tea.Msg {
		if url == "" {
			return errMsg{errNoClip}
		}
		if err := clipboard.Copy(url); err != nil {
			return errMsg{err}
		}
		return noticeMsg("✓ copied")
	}
}

func reloadCmd(a *app) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		defer cancel()
		if err := a.reloadDevices(ctx); err != nil {
			return errMsg{err}
		}
		return noticeMsg(fmt.Sprintf("%d input devices", len(a.ctrl.Devices())))
	}
}

func saveCmd(a *app) tea.Cmd {
	return func() tea.Msg {
		if err := a.savePrefs(); err != nil {
			return errMsg{err}
		}
		return noticeMsg("saved " + a.cfgPath)
	}
}

func (m tuiModel) View() string {
	var lines []string

	switch m.state.Phase {
	case recorder.PhaseActive:
		lines = append(lines, recStyle.Render(fmt.Sprintf("● REC %.1fs", m.elapsed.Seconds())))
	case recorder.PhaseFinalizing:
		lines = append(lines, busyStyle.Render("◌ finishing…"))
	case recorder.PhaseAcquiring:
		lines = append(lines, busyStyle.Render("◌ waiting for microphone…"))
	default:
		lines = append(lines, standbyStyle.Render("○ STANDBY"))
	}
	lines = append(lines, "")

	lines = append(lines, titleStyle.Render("Input devices"))
	if len(m.state.Devices) == 0 {
		lines = append(lines, dimStyle.Render("  (none, system default will be used)"))
	}
	for i, d := range m.state.Devices {
		lines = append(lines, m.deviceLine(i, d))
	}
	lines = append(lines, "")

	check := "[ ]"
	if m.lockMode {
		check = "[x]"
	}
	lock := check + " Lock mode"
	if m.lockMode && m.app.combo != "" {
		lock += dimStyle.Render("  hold " + m.app.combo + " to record")
	}
	lines = append(lines, lock)

	label := "Start Recording"
	if m.state.Recording {
		label = "Stop Recording"
	}
	button := buttonStyle.Render(label)
	if m.lockMode {
		button = buttonStyle.BorderForeground(lipgloss.Color("239")).Foreground(lipgloss.Color("239")).Render(label)
	}
	lines = append(lines, button)

	if m.state.AudioURL != "" {
		lines = append(lines, titleStyle.Render("Last clip"))
		lines = append(lines, urlStyle.Render(m.state.AudioURL))
		lines = append(lines, dimStyle.Render(m.state.AudioURL+"?format=wav"))
	}

	if m.notice != "" {
		lines = append(lines, noticeStyle.Render(m.notice))
	}
	if m.errText != "" {
		lines = append(lines, errStyle.Render("✗ "+m.errText))
	}
	lines = append(lines, "")

	lines = append(lines, boldHelp.Render("space")+helpStyle.Render(" record  ")+
		boldHelp.Render("↑/↓ enter")+helpStyle.Render(" device  ")+
		boldHelp.Render("l")+helpStyle.Render(" lock  ")+
		boldHelp.Render("p")+helpStyle.Render(" play  ")+
		boldHelp.Render("c")+helpStyle.Render(" copy  ")+
		boldHelp.Render("q")+helpStyle.Render(" quit"))
	lines = append(lines, helpStyle.Render("micrec "+version))

	view := strings.Join(lines, "\n")
	if m.width > 0 {
		view = lipgloss.NewStyle().MaxWidth(m.width).Render(view)
	}
	return view
}

func (m tuiModel) deviceLine(i int, d audio.DeviceInfo) string {
	marker := "  "
	if i == m.cursor {
		marker = cursorStyle.Render("▶ ")
	}
	sel := "( )"
	if m.state.Selected != nil && m.state.Selected.ID == d.ID {
		sel = "(•)"
	}
	name := d.Name
	if name == "" {
		name = d.ID
	}
	if audio.IsBluetooth(name) {
		name += dimStyle.Render(" (bluetooth)")
	}
	return marker + sel + " " + name
}

// tuiRunner owns the bubbletea program and forwards controller changes into
// it. Observers never call Send directly: Send blocks while Update runs, and
// Update itself mutates the controller.
type tuiRunner struct {
	program *tea.Program
	nudge   chan struct{}
	once    sync.Once
}

func newTUIRunner(a *app) *tuiRunner {
	r := &tuiRunner{
		program: tea.NewProgram(newTUIModel(a), tea.WithAltScreen()),
		nudge:   make(chan struct{}, 1),
	}
	a.watch(func() {
		select {
		case r.nudge <- struct{}{}:
		default:
		}
	})
	return r
}

func (r *tuiRunner) run() error {
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-r.nudge:
				r.program.Send(refreshMsg{})
			case <-stop:
				return
			}
		}
	}()
	_, err := r.program.Run()
	close(stop)
	return err
}

func (r *tuiRunner) reportError(err error) {
	go r.program.Send(errMsg{err})
}

func (r *tuiRunner) quit() {
	r.once.Do(r.program.Quit)
}
