package console

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"crypto-herald/internal/pipeline"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshEvery = 5 * time.Second

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")).MarginBottom(1)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

type keyMap struct {
	Global  key.Binding
	News    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Global, k.News, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Global:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "global update")),
	News:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "news check")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

type cycleDoneMsg struct {
	label  string
	result pipeline.CycleResult
}

// Model is the console screen.
type Model struct {
	ctx      context.Context
	pipeline Pipeline
	tasks    TaskLister
	loc      *time.Location
	user     string

	table   table.Model
	spinner spinner.Model
	help    help.Model

	running string
	notice  string
	status  pipeline.Status
	width   int
	height  int
}

func NewModel(ctx context.Context, p Pipeline, tasks TaskLister, loc *time.Location) *Model {
	if loc == nil {
		loc = time.UTC
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Task", Width: 20},
			{Title: "Cadence", Width: 34},
			{Title: "State", Width: 8},
			{Title: "Next", Width: 11},
			{Title: "Runs", Width: 5},
			{Title: "Fail", Width: 5},
		}),
		table.WithFocused(true),
		table.WithHeight(6),
	)
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:      ctx,
		pipeline: p,
		tasks:    tasks,
		loc:      loc,
		table:    t,
		spinner:  sp,
		help:     help.New(),
	}
	m.refresh()
	return m
}

func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) refresh() {
	m.status = m.pipeline.Status()
	if m.tasks == nil {
		return
	}
	var rows []table.Row
	for _, t := range m.tasks.Tasks() {
		next := "-"
		if !t.Next.IsZero() {
			next = t.Next.In(m.loc).Format("02/01 15:04")
		}
		rows = append(rows, table.Row{t.Name, t.Cadence, string(t.State), next, fmt.Sprint(t.Runs), fmt.Sprint(t.Failures)})
	}
	m.table.SetRows(rows)
}

func (m *Model) trigger(label string, run func(ctx context.Context) pipeline.CycleResult) tea.Cmd {
	if m.running != "" {
		m.notice = m.running + " already running"
		return nil
	}
	m.running = label
	m.notice = ""
	ctx := m.ctx
	return func() tea.Msg {
		return cycleDoneMsg{label: label, result: run(ctx)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
	case tickMsg:
		m.refresh()
		return m, tick()
	case cycleDoneMsg:
		m.running = ""
		res := msg.result
		if len(res.Errors) > 0 {
			m.notice = errStyle.Render(fmt.Sprintf("%s: %d published, %d error(s): %s", msg.label, res.Published, len(res.Errors), strings.Join(res.Errors, "; ")))
		} else {
			m.notice = okStyle.Render(fmt.Sprintf("%s: %d published, %d skipped", msg.label, res.Published, res.Skipped))
		}
		m.refresh()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			m.refresh()
		case key.Matches(msg, keys.Global):
			return m, m.trigger("global update", func(ctx context.Context) pipeline.CycleResult {
				return m.pipeline.RunGlobalUpdate(ctx, pipeline.TriggerManual)
			})
		case key.Matches(msg, keys.News):
			return m, m.trigger("news check", m.pipeline.RunNewsCheck)
		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	header := "crypto-herald console"
	if m.user != "" {
		header += " · " + m.user
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")

	startup := errStyle.Render("pending")
	if m.status.StartupDone {
		startup = okStyle.Render("done")
	}
	fmt.Fprintf(&b, "persona %s · startup %s\n\n", m.status.Persona, startup)

	b.WriteString(boxStyle.Render(m.table.View()))
	b.WriteString("\n\n")

	cycles := append([]pipeline.CycleResult(nil), m.status.Cycles...)
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Finished.After(cycles[j].Finished) })
	var lines []string
	for _, r := range cycles {
		line := fmt.Sprintf("%s  %-22s %3d published %3d skipped", r.Finished.In(m.loc).Format("15:04:05"), r.Kind, r.Published, r.Skipped)
		if len(r.Errors) > 0 {
			line = errStyle.Render(line + fmt.Sprintf("  %d error(s)", len(r.Errors)))
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, dimStyle.Render("no cycle yet"))
	}
	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n\n")

	var pools []string
	for pool, ps := range m.status.Ledger {
		pools = append(pools, fmt.Sprintf("%s %d (%d evicted)", pool, ps.Size, ps.Evictions))
	}
	sort.Strings(pools)
	if len(pools) > 0 {
		b.WriteString(dimStyle.Render("ledger: " + strings.Join(pools, " · ")))
		b.WriteString("\n")
	}

	if m.running != "" {
		b.WriteString(m.spinner.View() + " running " + m.running + "...\n")
	} else if m.notice != "" {
		b.WriteString(m.notice + "\n")
	}
	b.WriteString("\n" + m.help.View(keys))
	return b.String()
}
