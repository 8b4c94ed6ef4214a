package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Status is the state of one file in a batch parse.
type Status uint8

const (
	StatusQueued Status = iota
	StatusParsing
	StatusDone
	StatusFailed // parsed with error diagnostics
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusParsing:
		return "parsing"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "errors"
	case StatusAborted:
		return "aborted"
	default:
		return ""
	}
}

func (s Status) final() bool { return s >= StatusDone }

// Event reports a status change of File. Diags is set with a final status.
type Event struct {
	File   string
	Status Status
	Diags  int
}

type progressModel struct {
	title   string
	events  <-chan Event
	spinner spinner.Model
	prog    progress.Model
	items   []fileItem
	index   map[string]int
	width   int
	done    bool
}

type fileItem struct {
	path   string
	status Status
	diags  int
}

type eventMsg Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders batch parse
// progress until events is closed.
func NewProgressModel(title string, files []string, events <-chan Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]fileItem, 0, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		items = append(items, fileItem{path: file})
		index[file] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	finished := 0
	for _, it := range m.items {
		if it.status.final() {
			finished++
		}
	}
	header := fmt.Sprintf("%s (%d/%d)", m.title, finished, len(m.items))
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := max(m.width-statusWidth-4, 20)
	for _, item := range m.items {
		label := item.status.String()
		if item.status == StatusFailed {
			label = fmt.Sprintf("%d errors", item.diags)
		}
		b.WriteString("  ")
		b.WriteString(styleStatus(item.status).Render(fmt.Sprintf("%12s", label)))
		b.WriteString(" ")
		b.WriteString(truncate(item.path, nameWidth))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev Event) tea.Cmd {
	idx, ok := m.index[ev.File]
	if !ok {
		return nil
	}
	m.items[idx].status = ev.Status
	m.items[idx].diags = ev.Diags
	return m.prog.SetPercent(m.percent())
}

// percent: завершённые файлы целиком, начатые наполовину
func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, it := range m.items {
		switch {
		case it.status.final():
			total += 1
		case it.status == StatusParsing:
			total += 0.5
		}
	}
	return total / float64(len(m.items))
}

func styleStatus(status Status) lipgloss.Style {
	switch status {
	case StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case StatusFailed, StatusAborted:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case StatusParsing:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
