package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/histokit/slidepress/pipeline"
	"github.com/histokit/slidepress/types"
)

// TileMsg carries one pipeline progress event into the model.
type TileMsg pipeline.Event

// DoneMsg signals the run finished; the TUI renders the summary and quits.
type DoneMsg struct {
	Summary *types.RunSummary
	Err     error
}

// RunModel is a Bubble Tea model showing live encoding progress.
type RunModel struct {
	slide string
	total int

	bar     progress.Model
	done    int
	written int
	skipped int
	errored int

	summary  *types.RunSummary
	err      error
	finished bool
	quitting bool
	width    int
}

// NewRunModel creates a progress model for a run over total tiles.
func NewRunModel(slide string, total int) RunModel {
	return RunModel{
		slide: slide,
		total: total,
		bar:   progress.New(progress.WithDefaultGradient()),
	}
}

// Init implements tea.Model.
func (m RunModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-8, 60)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

	case TileMsg:
		m.done = msg.Done
		switch msg.Status {
		case types.TileWritten:
			m.written++
		case types.TileSkipped:
			m.skipped++
		case types.TileErrored:
			m.errored++
		}
		return m, nil

	case DoneMsg:
		m.finished = true
		m.summary = msg.Summary
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m RunModel) View() string {
	if m.quitting && !m.finished {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Encoding %s", m.slide)))
	b.WriteString("\n\n")

	frac := 0.0
	if m.total > 0 {
		frac = float64(m.done) / float64(m.total)
	}
	b.WriteString(m.bar.ViewAs(frac))
	b.WriteString(fmt.Sprintf("  %d/%d\n\n", m.done, m.total))

	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		LabelStyle.Render("written:"), SuccessStyle.Render(fmt.Sprintf("%d", m.written)),
		LabelStyle.Render("skipped:"), WarningStyle.Render(fmt.Sprintf("%d", m.skipped)),
		LabelStyle.Render("errored:"), ErrorStyle.Render(fmt.Sprintf("%d", m.errored))))

	if m.finished {
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("run failed: %v", m.err)))
			b.WriteString("\n")
		} else if m.summary != nil {
			b.WriteString("\n")
			b.WriteString(SuccessStyle.Render(
				fmt.Sprintf("run %s complete in %dms", m.summary.RunID, m.summary.DurationMs)))
			b.WriteString("\n")
		}
		return b.String()
	}

	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to abort"))
	return b.String()
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunProgram wraps the Bubble Tea program so callers can feed it events.
type RunProgram struct {
	p *tea.Program
}

// NewRunProgram starts a progress program. The returned Observer is safe to
// hand to the pipeline; it forwards events into the model.
func NewRunProgram(slide string, total int) (*RunProgram, pipeline.Observer) {
	p := tea.NewProgram(NewRunModel(slide, total))
	rp := &RunProgram{p: p}
	return rp, func(e pipeline.Event) {
		p.Send(TileMsg(e))
	}
}

// Wait blocks until the program exits.
func (rp *RunProgram) Wait() error {
	_, err := rp.p.Run()
	return err
}

// Finish delivers the terminal message and lets the view render the summary.
func (rp *RunProgram) Finish(summary *types.RunSummary, err error) {
	rp.p.Send(DoneMsg{Summary: summary, Err: err})
}
