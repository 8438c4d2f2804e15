// Package tui is the terminal front-end for the host. It renders the
// backend connection, both mixer decks, and recorded sessions, and
// drives the command registry from a palette overlay.
package tui

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gestdj/gestdj/internal/backend"
	"github.com/gestdj/gestdj/internal/command"
	"github.com/gestdj/gestdj/internal/config"
	"github.com/gestdj/gestdj/internal/database/repository"
	"github.com/gestdj/gestdj/internal/mixer"
)

type appState string

const (
	viewDashboard appState = "dashboard"
	viewSessions  appState = "sessions"
)

const (
	sessionRows = 20
	gaugeWidth  = 14
	statusLimit = 90
)

// Deps are the host services the UI renders and drives.
type Deps struct {
	Registry *command.Registry
	Keys     *KeyRegistry
	Mixer    *mixer.Mixer
	Sessions *repository.SessionRepo
	Updates  <-chan backend.Update
	Status   func() backend.Status
}

// App is the bubbletea model for the host UI.
type App struct {
	ctx      context.Context
	cfg      config.Config
	reg      *command.Registry
	keys     *KeyRegistry
	mixer    *mixer.Mixer
	sessions *repository.SessionRepo
	updates  <-chan backend.Update

	state      appState
	bstat      backend.Status
	snap       mixer.Snapshot
	hands      map[string]backend.HandGesture
	rows       []repository.Session
	sessCursor int
	status     string
	width      int
	palette    palette
}

func New(ctx context.Context, cfg config.Config, deps Deps) *App {
	keys := deps.Keys
	if keys == nil {
		keys = NewKeyRegistry()
	}
	a := &App{
		ctx:      ctx,
		cfg:      cfg,
		reg:      deps.Registry,
		keys:     keys,
		mixer:    deps.Mixer,
		sessions: deps.Sessions,
		updates:  deps.Updates,
		state:    viewDashboard,
		hands:    make(map[string]backend.HandGesture),
	}
	if deps.Status != nil {
		a.bstat = deps.Status()
	}
	if deps.Mixer != nil {
		a.snap = deps.Mixer.Snapshot()
	}
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadSessions(), a.waitForUpdate())
}

// commands

func (a *App) loadSessions() tea.Cmd {
	return func() tea.Msg {
		if a.sessions == nil {
			return sessionsMsg(nil)
		}
		rows, err := a.sessions.Recent(a.ctx, sessionRows)
		if err != nil {
			return errMsg{err}
		}
		return sessionsMsg(rows)
	}
}

// waitForUpdate blocks on the bridge update channel and rechains
// itself from the updateMsg handler, so backend traffic drives the
// redraw rate without a ticker.
func (a *App) waitForUpdate() tea.Cmd {
	if a.updates == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-a.updates
		if !ok {
			return nil
		}
		return updateMsg(u)
	}
}

func (a *App) invokeCmd(name string, args command.Args) tea.Cmd {
	return func() tea.Msg {
		out, err := a.reg.Invoke(a.ctx, name, args)
		if err != nil {
			return errMsg{err}
		}
		return invokeDoneMsg{name: name, result: out}
	}
}

// messages

type updateMsg backend.Update

type sessionsMsg []repository.Session

type invokeDoneMsg struct {
	name   string
	result string
}

type errMsg struct{ error }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width

	case tea.KeyMsg:
		if a.palette.open {
			return a.handlePaletteKey(m)
		}
		return a.handleKey(m)

	case updateMsg:
		u := backend.Update(m)
		a.bstat = u.Status
		if u.Frame != nil {
			a.hands = u.Frame.Gestures.Gestures
		}
		if u.Status.State != backend.StateConnected {
			a.hands = make(map[string]backend.HandGesture)
		}
		if a.mixer != nil {
			a.snap = a.mixer.Snapshot()
		}
		return a, a.waitForUpdate()

	case sessionsMsg:
		a.rows = []repository.Session(m)
		if a.sessCursor >= len(a.rows) {
			a.sessCursor = 0
		}

	case invokeDoneMsg:
		a.status = statusLine(m.result)
		if a.mixer != nil {
			a.snap = a.mixer.Snapshot()
		}
		if a.state == viewSessions {
			return a, a.loadSessions()
		}

	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	b := a.keys.Lookup(m.String(), a.scope())
	if b == nil {
		return a, nil
	}
	if name, ok := actionCommands[b.Action]; ok {
		a.status = "running " + name
		return a, a.invokeCmd(name, command.Args{})
	}
	switch b.Action {
	case actionQuit:
		return a, tea.Quit
	case actionGoDashboard:
		a.state = viewDashboard
	case actionGoSessions:
		a.state = viewSessions
		return a, a.loadSessions()
	case actionPalette:
		a.palette.show(a.reg)
	case actionNavigate:
		a.moveSessionCursor(m.String())
	case actionRefresh:
		return a, a.loadSessions()
	}
	return a, nil
}

func (a *App) moveSessionCursor(keyName string) {
	if a.state != viewSessions {
		return
	}
	switch normalizeKeyName(keyName) {
	case "k", "up":
		if a.sessCursor > 0 {
			a.sessCursor--
		}
	case "j", "down":
		if a.sessCursor < len(a.rows)-1 {
			a.sessCursor++
		}
	}
}

func (a *App) scope() string {
	if a.palette.open {
		return scopePalette
	}
	if a.state == viewSessions {
		return scopeSessions
	}
	return scopeDashboard
}

func (a *App) View() string {
	var body string
	switch a.state {
	case viewSessions:
		body = a.renderSessions()
	default:
		body = a.renderDashboard()
	}
	if a.palette.open {
		body += "\n" + a.renderPalette()
	}
	return body
}

func (a *App) renderDashboard() string {
	decks := lipgloss.JoinHorizontal(lipgloss.Top,
		a.renderDeck(0), " ", a.renderDeck(1))
	title := titleStyle.Render("GesteDJ")
	if a.cfg.Server.Enabled {
		title += helpStyle.Render(fmt.Sprintf("  control %s:%d", a.cfg.Server.Host, a.cfg.Server.Port))
	}
	out := title + "\n"
	out += a.renderBackendPanel() + "\n"
	out += decks + "\n"
	out += a.renderStatusBar(scopeDashboard)
	return out
}

func (a *App) renderBackendPanel() string {
	stateText := string(a.bstat.State)
	switch a.bstat.State {
	case backend.StateConnected:
		stateText = goodStyle.Render(stateText)
	case backend.StateConnecting:
		stateText = warnStyle.Render(stateText)
	default:
		stateText = badStyle.Render(stateText)
	}

	head := labelStyle.Render("backend") + " " + stateText + "  " + a.bstat.Address
	if a.bstat.PID > 0 {
		head += fmt.Sprintf("  pid %d", a.bstat.PID)
	}
	lines := []string{head}

	switch {
	case a.bstat.State == backend.StateConnected:
		caps := a.bstat.Capabilities
		lines = append(lines, fmt.Sprintf("mediapipe %s  midi %s  rtmidi %s",
			onOff(caps.MediaPipe), onOff(caps.MIDI), onOff(caps.RTMIDI)))
	case a.bstat.LastError != "":
		lines = append(lines, badStyle.Render(a.bstat.LastError))
	}

	stats := a.bstat.Stats
	lines = append(lines, fmt.Sprintf("frame %d  gestures %d  detection %.1f%%",
		stats.FramesProcessed, stats.GesturesDetected, stats.DetectionRate*100))

	if hands := a.renderHands(); hands != "" {
		lines = append(lines, hands)
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (a *App) renderHands() string {
	if len(a.hands) == 0 {
		return ""
	}
	names := make([]string, 0, len(a.hands))
	for name := range a.hands {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		g := a.hands[name]
		label := g.Gesture
		if g.Handedness != "" {
			label = strings.ToLower(g.Handedness) + " " + label
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%d up)", name, label, g.FingersUp))
	}
	return statusStyle.Render(strings.Join(parts, "  "))
}

func (a *App) renderDeck(i int) string {
	d := a.snap.Decks[i]
	accent, name := colorDeckA, "Deck 1"
	if i == 1 {
		accent, name = colorDeckB, "Deck 2"
	}

	head := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(name)
	if d.Playing {
		head += "  " + goodStyle.Render("playing")
	} else {
		head += "  " + labelStyle.Render("stopped")
	}
	if d.EffectOn {
		head += "  " + warnStyle.Render("fx")
	}
	lines := []string{head}

	for _, knob := range mixer.Knobs() {
		v := knobValue(d.DeckValues, knob)
		min, max := mixer.Range(knob)
		line := fmt.Sprintf("%-6s %s %.2f", knob, gauge(v, min, max), v)
		if string(knob) == d.ActiveKnob {
			line = activeStyle.Render(line)
		}
		lines = append(lines, line)
	}
	lines = append(lines, fmt.Sprintf("%-6s %s %.2f", "volume", gauge(d.Volume, 0, 1), d.Volume))
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (a *App) renderSessions() string {
	out := titleStyle.Render("Sessions") + "\n"
	if len(a.rows) == 0 {
		out += labelStyle.Render("  no sessions recorded") + "\n"
	}
	for i, s := range a.rows {
		marker := " "
		if i == a.sessCursor {
			marker = "▶"
		}
		dur := time.Since(s.StartedAt)
		state := "live"
		if s.EndedAt != nil {
			dur = s.EndedAt.Sub(s.StartedAt)
			state = "done"
		}
		line := fmt.Sprintf("%s %s  %-4s %8s  frames %-7d gestures %-6d rate %5.1f%%",
			marker, s.StartedAt.Format("2006-01-02 15:04:05"), state,
			dur.Truncate(time.Second), s.FramesProcessed, s.GesturesDetected,
			s.DetectionRate*100)
		switch {
		case i == a.sessCursor:
			line = activeStyle.Render(line)
		case s.EndedAt == nil:
			line = goodStyle.Render(line)
		}
		out += line + "\n"
	}
	out += a.renderStatusBar(scopeSessions)
	return out
}

func (a *App) renderStatusBar(scope string) string {
	out := ""
	if a.status != "" {
		out += statusStyle.Render(a.status) + "\n"
	}
	return out + a.helpLine(scope)
}

func (a *App) helpLine(scope string) string {
	bindings := a.keys.HelpBindings(scope)
	if scope != scopeGlobal {
		bindings = append(bindings, a.keys.HelpBindings(scopeGlobal)...)
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, fmt.Sprintf("[%s] %s", h.Key, h.Desc))
	}
	return helpStyle.Render(strings.Join(parts, "  "))
}

func knobValue(v mixer.DeckValues, knob mixer.Knob) float64 {
	switch knob {
	case mixer.KnobFilter:
		return v.Filter
	case mixer.KnobLow:
		return v.Low
	case mixer.KnobMid:
		return v.Mid
	case mixer.KnobHigh:
		return v.High
	}
	return 0
}

func gauge(v, min, max float64) string {
	if max <= min {
		return strings.Repeat("░", gaugeWidth)
	}
	filled := int(math.Round((v - min) / (max - min) * gaugeWidth))
	if filled < 0 {
		filled = 0
	}
	if filled > gaugeWidth {
		filled = gaugeWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", gaugeWidth-filled)
}

// statusLine collapses a command result to one status bar line.
func statusLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	if len(s) > statusLimit {
		s = s[:statusLimit-3] + "..."
	}
	return s
}

func onOff(v bool) string {
	if v {
		return goodStyle.Render("on")
	}
	return labelStyle.Render("off")
}
