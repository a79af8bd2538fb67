// Package tui renders a table.Table in the terminal with bubbletea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cs2interlink/cs2-int/internal/table"
)

// Source is the table a Model drives. *inventory.ItemTable and
// *store.Table satisfy it.
type Source[R table.Row] interface {
	View() table.View[R, string]
	Footer() table.Footer
	SortState() (table.SortSpec, string)
	Sort(columns []string, headerClick bool)
	Scroll(scrollTop int) bool
	ScrollTop() int
	RowHeight() int
	ViewportRows() int
	VisibleLen() int
	VisibleAt(i int) (R, bool)
	Toggle(id string, shift bool) []string
	SelectFirst(n int) []string
	DeselectAll() []string
	SelectionLimit() int
	IsSelected(id string) bool

	Search(query string)
	Columns() []table.Column
	Title() string
	FooterLine() string
}

// Options configures the actions a Model offers beyond browsing.
type Options struct {
	// Proceed runs the footer action once it is ready. The returned message
	// is shown when it finishes.
	Proceed func(ctx context.Context) (string, error)
	// Cancel stops a running Proceed.
	Cancel func(ctx context.Context) error
	// Select replaces the default toggle on space, for single selection.
	Select func(id string)
	// SearchTeams enables a second search input on "t".
	SearchTeams func(query string)
	// Tabs and SetTab enable tab switching.
	Tabs   []string
	SetTab func(i int)
	// QuitOnDone exits after a successful Proceed.
	QuitOnDone bool
	// Filter applies a structured filter expression on "f". FilterPrompt
	// supplies the expression in effect and a hint shown under the input.
	Filter       func(expr string) error
	FilterPrompt func() (current, hint string)
}

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputTeams
	inputFilter
)

type progressMsg struct {
	message  string
	fraction float64
}

type doneMsg struct {
	message string
	err     error
}

// Model is the bubbletea model of one table screen.
type Model[R table.Row] struct {
	src  Source[R]
	opts Options
	ctx  context.Context
	keys keyMap

	cursor int
	width  int

	mode   inputMode
	search     textinput.Model
	teams      textinput.Model
	filter     textinput.Model
	filterHint string
	filterErr  error
	tab        int

	running  bool
	progress progressMsg
	updates  chan progressMsg
	status   string
	err      error
	quitting bool
}

// New creates a Model over src. ctx bounds Proceed.
func New[R table.Row](ctx context.Context, src Source[R], opts Options) *Model[R] {
	search := textinput.New()
	search.Prompt = "Search: "
	search.CharLimit = 100
	teams := textinput.New()
	teams.Prompt = "Teams: "
	teams.CharLimit = 100
	filter := textinput.New()
	filter.Prompt = "Filter: "
	filter.Placeholder = "type=AK-47, wear=FT, seed=0-100"
	filter.CharLimit = 300

	return &Model[R]{
		src:     src,
		opts:    opts,
		ctx:     ctx,
		keys:    defaultKeys(),
		search:  search,
		teams:   teams,
		filter:  filter,
		updates: make(chan progressMsg, 16),
	}
}

// Progress returns a callback feeding the progress line. It never blocks;
// updates are dropped while the model is behind.
func (m *Model[R]) Progress() func(message string, fraction float64) {
	return func(message string, fraction float64) {
		select {
		case m.updates <- progressMsg{message: message, fraction: fraction}:
		default:
		}
	}
}

// Err returns the error of the last Proceed.
func (m *Model[R]) Err() error { return m.err }

// Status returns the message of the last successful Proceed.
func (m *Model[R]) Status() string { return m.status }

func (m *Model[R]) Init() tea.Cmd {
	return m.waitForProgress()
}

func (m *Model[R]) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		select {
		case p := <-m.updates:
			return p
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model[R]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case progressMsg:
		m.progress = msg
		return m, m.waitForProgress()

	case doneMsg:
		m.running = false
		m.err = msg.err
		m.status = msg.message
		m.clampCursor()
		if msg.err == nil && m.opts.QuitOnDone {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			m.quitting = true
			return m, tea.Sequence(m.cancelCmd(), tea.Quit)
		}
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *Model[R]) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == inputFilter {
		return m.updateFilter(msg)
	}
	if key.Matches(msg, m.keys.Accept) || key.Matches(msg, m.keys.Dismiss) {
		m.mode = inputNone
		m.search.Blur()
		m.teams.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	if m.mode == inputTeams {
		before := m.teams.Value()
		m.teams, cmd = m.teams.Update(msg)
		if v := m.teams.Value(); v != before && m.opts.SearchTeams != nil {
			m.opts.SearchTeams(v)
			m.afterFilter()
		}
		return m, cmd
	}
	before := m.search.Value()
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.src.Search(v)
		m.afterFilter()
	}
	return m, cmd
}

// updateFilter edits the filter expression. It is applied on enter only;
// esc leaves the filter in effect unchanged.
func (m *Model[R]) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Dismiss):
		m.closeFilter()
		return m, nil
	case key.Matches(msg, m.keys.Accept):
		if err := m.opts.Filter(m.filter.Value()); err != nil {
			m.filterErr = err
			return m, nil
		}
		m.closeFilter()
		m.afterFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func (m *Model[R]) openFilter() tea.Cmd {
	current := ""
	if m.opts.FilterPrompt != nil {
		current, m.filterHint = m.opts.FilterPrompt()
	}
	m.filter.SetValue(current)
	m.filter.CursorEnd()
	m.filterErr = nil
	m.mode = inputFilter
	return m.filter.Focus()
}

func (m *Model[R]) closeFilter() {
	m.mode = inputNone
	m.filterErr = nil
	m.filter.Blur()
}

func (m *Model[R]) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := m.src.ViewportRows()
	switch {
	case key.Matches(msg, m.keys.Back):
		if m.running {
			return m, m.cancelCmd()
		}
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-page)
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(page)
	case key.Matches(msg, m.keys.Home):
		m.moveCursor(-m.src.VisibleLen())
	case key.Matches(msg, m.keys.End):
		m.moveCursor(m.src.VisibleLen())
	case key.Matches(msg, m.keys.Toggle):
		m.toggle(false)
	case key.Matches(msg, m.keys.Extend):
		m.toggle(true)
	case key.Matches(msg, m.keys.SelectFirst):
		if m.opts.Select == nil && !m.running {
			m.src.SelectFirst(m.src.SelectionLimit())
		}
	case key.Matches(msg, m.keys.DeselectAll):
		if !m.running {
			m.src.DeselectAll()
		}
	case key.Matches(msg, m.keys.Search):
		m.mode = inputSearch
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Teams):
		if m.opts.SearchTeams != nil {
			m.mode = inputTeams
			return m, m.teams.Focus()
		}
	case key.Matches(msg, m.keys.Filter):
		if m.opts.Filter != nil && !m.running {
			return m, m.openFilter()
		}
	case key.Matches(msg, m.keys.NextTab):
		m.switchTab(1)
	case key.Matches(msg, m.keys.PrevTab):
		m.switchTab(-1)
	case key.Matches(msg, m.keys.Proceed):
		return m, m.proceed()
	case key.Matches(msg, m.keys.Sort):
		m.sortColumn(msg.String())
	}
	return m, nil
}

func (m *Model[R]) toggle(shift bool) {
	if m.running {
		return
	}
	row, ok := m.src.VisibleAt(m.cursor)
	if !ok {
		return
	}
	if m.opts.Select != nil {
		m.opts.Select(row.RowID())
		return
	}
	m.src.Toggle(row.RowID(), shift)
}

func (m *Model[R]) sortColumn(k string) {
	i := int(k[0] - '1')
	cols := m.src.Columns()
	if i < 0 || i >= len(cols) || len(cols[i].Sort) == 0 {
		return
	}
	m.src.Sort(cols[i].Sort, true)
}

func (m *Model[R]) switchTab(delta int) {
	n := len(m.opts.Tabs)
	if n == 0 || m.opts.SetTab == nil || m.running {
		return
	}
	m.tab = (m.tab + delta + n) % n
	m.opts.SetTab(m.tab)
	m.search.SetValue("")
	m.teams.SetValue("")
	m.afterFilter()
}

func (m *Model[R]) proceed() tea.Cmd {
	if m.running || m.opts.Proceed == nil || m.src.Footer().Action != table.ActionReady {
		return nil
	}
	m.running = true
	m.err = nil
	m.status = ""
	m.progress = progressMsg{}
	ctx := m.ctx
	return func() tea.Msg {
		message, err := m.opts.Proceed(ctx)
		return doneMsg{message: message, err: err}
	}
}

func (m *Model[R]) cancelCmd() tea.Cmd {
	if !m.running || m.opts.Cancel == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		_ = m.opts.Cancel(ctx)
		return nil
	}
}

// afterFilter moves the cursor back to the top after the visible rows change.
func (m *Model[R]) afterFilter() {
	m.cursor = 0
	m.src.Scroll(0)
}

func (m *Model[R]) clampCursor() {
	n := m.src.VisibleLen()
	m.cursor = max(0, min(m.cursor, n-1))
	m.follow()
}

func (m *Model[R]) moveCursor(delta int) {
	n := m.src.VisibleLen()
	if n == 0 {
		return
	}
	m.cursor = max(0, min(m.cursor+delta, n-1))
	m.follow()
}

// follow scrolls so the cursor row is inside the viewport.
func (m *Model[R]) follow() {
	h := m.src.RowHeight()
	rows := m.src.ViewportRows()
	top := m.src.ScrollTop() / h
	switch {
	case m.cursor < top:
		m.src.Scroll(m.cursor * h)
	case m.cursor >= top+rows:
		m.src.Scroll((m.cursor - rows + 1) * h)
	}
}

func (m *Model[R]) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.src.Title()))
	b.WriteString("\n")
	if len(m.opts.Tabs) > 0 {
		b.WriteString(m.renderTabs())
		b.WriteString("\n")
	}

	cols := m.src.Columns()
	spec, lead := m.src.SortState()
	titles := table.HeaderIndicator(cols, lead, spec.Direction)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = pad(fmt.Sprintf("%d %s", i+1, titles[i]), c.Width)
	}
	b.WriteString(headerStyle.Render("    " + strings.Join(header, " ")))
	b.WriteString("\n")

	b.WriteString(m.renderRows())

	if m.mode == inputSearch {
		b.WriteString(m.search.View() + "\n")
	} else if m.search.Value() != "" {
		b.WriteString(dimStyle.Render("Search: "+m.search.Value()) + "\n")
	}
	if m.mode == inputTeams {
		b.WriteString(m.teams.View() + "\n")
	} else if m.teams.Value() != "" {
		b.WriteString(dimStyle.Render("Teams: "+m.teams.Value()) + "\n")
	}

	if m.mode == inputFilter {
		b.WriteString(m.filter.View() + "\n")
		if m.filterHint != "" {
			b.WriteString(dimStyle.Render(m.filterHint) + "\n")
		}
		if m.filterErr != nil {
			b.WriteString(errorStyle.Render(m.filterErr.Error()) + "\n")
		}
	}

	footer := m.src.FooterLine()
	if m.src.Footer().Action == table.ActionReady {
		b.WriteString(footerStyle.Render(footer))
	} else {
		b.WriteString(disabledStyle.Render(footer))
	}
	b.WriteString("\n")

	switch {
	case m.running:
		msg := m.progress.message
		if msg == "" {
			msg = "Working"
		}
		b.WriteString(fmt.Sprintf("%s %3.0f%%\n", msg, m.progress.fraction*100))
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}

	b.WriteString(dimStyle.Render(m.help()))
	return b.String()
}

func (m *Model[R]) renderTabs() string {
	parts := make([]string, len(m.opts.Tabs))
	for i, t := range m.opts.Tabs {
		if i == m.tab {
			parts[i] = activeTabStyle.Render(t)
		} else {
			parts[i] = tabStyle.Render(t)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model[R]) renderRows() string {
	view := m.src.View()
	rows := m.src.ViewportRows()
	if view.Empty {
		line := emptyStyle.Render("No items") + "\n"
		return line + strings.Repeat("\n", rows-1)
	}

	top := m.src.ScrollTop() / m.src.RowHeight()
	var b strings.Builder
	drawn := 0
	for i, v := range view.Views {
		idx := view.Start + i
		if idx < top || idx >= top+rows {
			continue
		}
		mark := "[ ]"
		if m.src.IsSelected(view.Rows[i].RowID()) {
			mark = "[x]"
		}
		line := mark + " " + v
		if idx == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
		drawn++
	}
	b.WriteString(strings.Repeat("\n", max(0, rows-drawn)))
	return b.String()
}

func (m *Model[R]) help() string {
	parts := []string{"↑/↓ move", "space select", "S range", "/ search"}
	if m.opts.SearchTeams != nil {
		parts = append(parts, "t teams")
	}
	if m.opts.Filter != nil {
		parts = append(parts, "f filter")
	}
	if len(m.opts.Tabs) > 0 {
		parts = append(parts, "tab switch")
	}
	if m.opts.Select == nil {
		parts = append(parts, "a select all", "d clear")
	}
	parts = append(parts, "1-9 sort", "enter proceed", "q quit")
	return strings.Join(parts, " · ")
}

func pad(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
