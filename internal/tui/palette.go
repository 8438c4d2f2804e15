package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gestdj/gestdj/internal/command"
)

// paletteRows caps how many matches the overlay shows at once.
const paletteRows = 8

// palette is the command palette overlay. The first word of the query
// searches the registry; everything after it becomes the selected
// command's hinted argument, so ":preset_load warehouse" loads the
// "warehouse" preset.
type palette struct {
	open    bool
	query   string
	cursor  int
	results []command.Command
}

func (p *palette) show(reg *command.Registry) {
	p.open = true
	p.query = ""
	p.cursor = 0
	p.results = reg.Search("")
}

func (p *palette) hide() {
	p.open = false
	p.query = ""
	p.cursor = 0
	p.results = nil
}

func (p *palette) search(reg *command.Registry) {
	term, _ := splitQuery(p.query)
	p.results = reg.Search(term)
	if p.cursor >= len(p.results) {
		p.cursor = 0
	}
}

// selection returns the highlighted command plus the args built from
// the query tail and the command's arg hint.
func (p *palette) selection() (command.Command, command.Args, bool) {
	if p.cursor < 0 || p.cursor >= len(p.results) {
		return command.Command{}, nil, false
	}
	cmd := p.results[p.cursor]
	_, rest := splitQuery(p.query)
	args := command.Args{}
	if cmd.ArgHint != "" && rest != "" {
		args[cmd.ArgHint] = rest
	}
	return cmd, args, true
}

func splitQuery(q string) (term, rest string) {
	q = strings.TrimSpace(q)
	if i := strings.IndexByte(q, ' '); i >= 0 {
		return q[:i], strings.TrimSpace(q[i+1:])
	}
	return q, ""
}

func (a *App) handlePaletteKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.palette.hide()
		return a, nil
	case "enter":
		cmd, args, ok := a.palette.selection()
		a.palette.hide()
		if !ok {
			return a, nil
		}
		a.status = "running " + cmd.Name
		return a, a.invokeCmd(cmd.Name, args)
	case "up", "ctrl+p":
		if a.palette.cursor > 0 {
			a.palette.cursor--
		}
		return a, nil
	case "down", "ctrl+n":
		if a.palette.cursor < len(a.palette.results)-1 {
			a.palette.cursor++
		}
		return a, nil
	}

	switch m.Type {
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		if len(a.palette.query) > 0 {
			a.palette.query = a.palette.query[:len(a.palette.query)-1]
			a.palette.search(a.reg)
		}
	case tea.KeySpace:
		a.palette.query += " "
	case tea.KeyRunes:
		a.palette.query += string(m.Runes)
		a.palette.search(a.reg)
	}
	return a, nil
}

func (a *App) renderPalette() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Commands") + "\n")
	b.WriteString("> " + a.palette.query + "\n")

	if len(a.palette.results) == 0 {
		b.WriteString(labelStyle.Render("  no matching commands") + "\n")
	}
	start := 0
	if a.palette.cursor >= paletteRows {
		start = a.palette.cursor - paletteRows + 1
	}
	end := start + paletteRows
	if end > len(a.palette.results) {
		end = len(a.palette.results)
	}
	for i := start; i < end; i++ {
		c := a.palette.results[i]
		name := c.Name
		if c.ArgHint != "" {
			name += " <" + c.ArgHint + ">"
		}
		line := fmt.Sprintf("  %-24s %s", name, c.Description)
		if i == a.palette.cursor {
			line = activeStyle.Render("▶" + line[1:])
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(a.helpLine(scopePalette))
	return panelStyle.Render(b.String())
}
