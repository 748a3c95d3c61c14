package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jayteealao/gitsvc/internal/git"
)

// View represents the current view.
type View int

const (
	ViewList View = iota
	ViewDetail
)

// Source supplies the commits and diffs the browser shows.
type Source interface {
	Commits(ctx context.Context) ([]git.CommitSummary, error)
	Diff(ctx context.Context, oldRef, newRef string) ([]git.FileDiff, error)
}

// CommitDetail is a commit and the files it changed.
type CommitDetail struct {
	Commit git.CommitSummary
	Files  []git.FileDiff
	Error  error
}

// Model is the Bubble Tea model of the commit browser.
type Model struct {
	ctx           context.Context
	cancel        context.CancelFunc
	source        Source
	title         string
	commits       []git.CommitSummary
	detail        *CommitDetail
	table         table.Model
	currentView   View
	width         int
	height        int
	refreshTicker time.Duration
	lastRefresh   time.Time
	err           error
	quitting      bool
}

// KeyMap defines the keybindings.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

var keys = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "details"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("esc", "back"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Messages
type tickMsg time.Time
type commitsMsg []git.CommitSummary
type detailMsg CommitDetail
type errMsg struct{ err error }

// NewModel creates a browser over source. A zero refresh interval disables
// periodic reloading.
func NewModel(ctx context.Context, source Source, title string, refreshInterval time.Duration) Model {
	ctx, cancel := context.WithCancel(ctx)

	columns := []table.Column{
		{Title: "COMMIT", Width: 9},
		{Title: "AUTHOR", Width: 18},
		{Title: "DATE", Width: 16},
		{Title: "MESSAGE", Width: 50},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("15")).
		Background(ColorPrimary).
		Bold(false)
	t.SetStyles(s)

	return Model{
		ctx:           ctx,
		cancel:        cancel,
		source:        source,
		title:         title,
		table:         t,
		currentView:   ViewList,
		refreshTicker: refreshInterval,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCommits(), m.tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.cancel()
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Refresh):
			return m, m.loadCommits()

		case key.Matches(msg, keys.Enter):
			if m.currentView == ViewList && len(m.commits) > 0 {
				c := m.commits[m.table.Cursor()]
				m.detail = &CommitDetail{Commit: c}
				m.currentView = ViewDetail
				return m, m.loadDetail(c)
			}
			return m, nil

		case key.Matches(msg, keys.Back):
			if m.currentView == ViewDetail {
				m.currentView = ViewList
				m.detail = nil
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width - 4)
		m.table.SetHeight(max(msg.Height-10, 3))

	case tickMsg:
		return m, tea.Batch(m.loadCommits(), m.tick())

	case commitsMsg:
		m.commits = msg
		m.lastRefresh = time.Now()
		m.err = nil
		m.updateTable()
		return m, nil

	case detailMsg:
		// Ignore a late result for a commit the user already left.
		if m.detail != nil && m.detail.Commit.Hash == msg.Commit.Hash {
			d := CommitDetail(msg)
			m.detail = &d
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	if m.currentView == ViewList {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	switch m.currentView {
	case ViewDetail:
		return m.detailView()
	default:
		return m.listView()
	}
}

func (m *Model) listView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title) + "\n\n")
	b.WriteString(m.table.View() + "\n")

	footer := "[↑↓] Navigate  [Enter] Details  [r] Refresh  [q] Quit"
	if !m.lastRefresh.IsZero() {
		footer += "  |  Last refresh: " + m.lastRefresh.Format("15:04:05")
	}
	b.WriteString(HelpStyle.Render(footer))
	return b.String()
}

func (m *Model) detailView() string {
	if m.detail == nil {
		return "No commit selected"
	}
	c := m.detail.Commit

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Commit "+c.ShortHash) + "\n\n")
	b.WriteString(LabelStyle.Render("Hash:") + HashStyle.Render(c.Hash) + "\n")
	b.WriteString(LabelStyle.Render("Author:") + ValueStyle.Render(fmt.Sprintf("%s <%s>", c.AuthorName, c.AuthorEmail)) + "\n")
	b.WriteString(LabelStyle.Render("Date:") + ValueStyle.Render(c.Time.Format("2006-01-02 15:04:05")) + "\n\n")
	for _, line := range strings.Split(c.Message, "\n") {
		b.WriteString("    " + line + "\n")
	}
	b.WriteString("\n")

	switch {
	case m.detail.Error != nil:
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Failed to load changes: %v", m.detail.Error)) + "\n")
	case m.detail.Files == nil:
		b.WriteString(StatusUntracked.Render("Loading changes...") + "\n")
	default:
		b.WriteString(FormatFileDiffs(m.detail.Files))
	}

	b.WriteString(HelpStyle.Render("[Esc] Back  [q] Quit"))
	return b.String()
}

// FormatFileDiffs renders one line per file with its status and line counts.
func FormatFileDiffs(files []git.FileDiff) string {
	if len(files) == 0 {
		return StatusUntracked.Render("No changes") + "\n"
	}
	var b strings.Builder
	for _, f := range files {
		style := GetStatusStyle(f.Status)
		path := f.Path
		if f.OldPath != "" {
			path = f.OldPath + " → " + f.Path
		}
		counts := "binary"
		if !f.Binary {
			counts = StatusAdded.Render(fmt.Sprintf("+%d", f.Additions)) + " " +
				StatusDeleted.Render(fmt.Sprintf("-%d", f.Deletions))
		}
		fmt.Fprintf(&b, "  %s %s %s\n", style.Render(GetStatusIcon(f.Status)), ValueStyle.Render(path), counts)
	}
	return b.String()
}

func (m *Model) updateTable() {
	rows := make([]table.Row, len(m.commits))
	for i, c := range m.commits {
		subject, _, _ := strings.Cut(c.Message, "\n")
		rows[i] = table.Row{
			c.ShortHash,
			c.AuthorName,
			c.Time.Format("2006-01-02 15:04"),
			subject,
		}
	}
	m.table.SetRows(rows)
}

func (m Model) tick() tea.Cmd {
	if m.refreshTicker <= 0 {
		return nil
	}
	return tea.Tick(m.refreshTicker, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) loadCommits() tea.Cmd {
	return func() tea.Msg {
		commits, err := m.source.Commits(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return commitsMsg(commits)
	}
}

// loadDetail diffs a commit against its first parent. A root commit is
// compared with nothing and lists no files.
func (m Model) loadDetail(c git.CommitSummary) tea.Cmd {
	return func() tea.Msg {
		d := CommitDetail{Commit: c, Files: []git.FileDiff{}}
		if len(c.Parents) == 0 {
			return detailMsg(d)
		}
		files, err := m.source.Diff(m.ctx, c.Parents[0], c.Hash)
		if err != nil {
			d.Error = err
		} else {
			d.Files = files
		}
		return detailMsg(d)
	}
}
