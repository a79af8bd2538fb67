package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cs2interlink/cs2-int/internal/table"
)

type testRow struct {
	id   int
	name string
}

func (r *testRow) RowID() string { return strconv.Itoa(r.id) }

func (r *testRow) Value(column string) table.Value {
	switch column {
	case "id":
		return table.Int(int64(r.id))
	case "name":
		return table.Str(r.name)
	}
	return table.Undefined
}

type testSource struct {
	*table.Table[*testRow, string]
	tokens []string
}

func (s *testSource) MaterializeRow(r *testRow) string { return r.name }
func (s *testSource) MatchesFilter(r *testRow) bool {
	return table.MatchTokens(table.NormalizeSearch(r.name), s.tokens)
}
func (s *testSource) RenderFooter(table.Footer) {}

func (s *testSource) Search(q string) {
	tokens := table.SearchTokens(q)
	s.Filter(func() { s.tokens = tokens })
}
func (s *testSource) Columns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 6, Sort: []string{"id"}},
		{Title: "Name", Width: 12, Sort: []string{"name"}},
	}
}
func (s *testSource) Title() string { return "Test" }
func (s *testSource) FooterLine() string {
	f := s.Footer()
	return fmt.Sprintf("%d of %d selected", f.Selected, f.Limit)
}

func newTestSource(n, limit int) *testSource {
	rows := make([]*testRow, n)
	for i := range rows {
		rows[i] = &testRow{id: i + 1, name: fmt.Sprintf("item %02d", i+1)}
	}
	s := &testSource{}
	s.Table = table.New[*testRow, string](rows, s, table.Options{
		ViewportRows:   3,
		RowHeight:      1,
		SelectionLimit: limit,
	})
	s.Show()
	return s
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(m *Model[*testRow], msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

func TestModelCursorScrollsViewport(t *testing.T) {
	src := newTestSource(10, 5)
	m := New[*testRow](context.Background(), src, Options{})

	press(m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 3 || src.ScrollTop() != 1 {
		t.Errorf("Expected cursor 3 and scrollTop 1, got %d and %d", m.cursor, src.ScrollTop())
	}
	press(m, tea.KeyMsg{Type: tea.KeyEnd})
	if m.cursor != 9 || src.ScrollTop() != 7 {
		t.Errorf("Expected cursor 9 and scrollTop 7, got %d and %d", m.cursor, src.ScrollTop())
	}
	press(m, runes("g"))
	if m.cursor != 0 || src.ScrollTop() != 0 {
		t.Errorf("Expected top, got cursor %d scrollTop %d", m.cursor, src.ScrollTop())
	}

	view := m.View()
	if !strings.Contains(view, "item 01") || strings.Contains(view, "item 04") {
		t.Errorf("Expected only the viewport rows rendered:\n%s", view)
	}
}

func TestModelSelection(t *testing.T) {
	src := newTestSource(10, 5)
	m := New[*testRow](context.Background(), src, Options{})

	press(m, tea.KeyMsg{Type: tea.KeySpace}, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown}, runes("S"))
	if got := src.Selected(); !slices.Equal(got, []string{"1", "2", "3"}) {
		t.Errorf("Expected range selection, got %v", got)
	}
	press(m, runes("d"))
	if len(src.Selected()) != 0 {
		t.Errorf("Expected deselect all, got %v", src.Selected())
	}
	press(m, runes("a"))
	if len(src.Selected()) != 5 {
		t.Errorf("Expected the first 5 selected, got %v", src.Selected())
	}
	if !strings.Contains(m.View(), "[x] item 01") {
		t.Error("Expected selected marker")
	}
}

func TestModelSortAndSearch(t *testing.T) {
	src := newTestSource(10, 5)
	m := New[*testRow](context.Background(), src, Options{})

	press(m, runes("1"), runes("1"))
	if first, _ := src.VisibleAt(0); first.id != 10 {
		t.Errorf("Expected descending id sort, got %d first", first.id)
	}
	if !strings.Contains(m.View(), "ID ▼") {
		t.Errorf("Expected sort indicator in header:\n%s", m.View())
	}

	press(m, runes("/"), runes("0"), runes("7"), tea.KeyMsg{Type: tea.KeyEnter})
	if src.VisibleLen() != 1 {
		t.Errorf("Expected one match, got %d", src.VisibleLen())
	}
	if m.mode != inputNone {
		t.Error("Expected enter to leave the search input")
	}

	press(m, runes("/"), tea.KeyMsg{Type: tea.KeyBackspace}, tea.KeyMsg{Type: tea.KeyBackspace}, runes("x"), tea.KeyMsg{Type: tea.KeyEsc})
	if !strings.Contains(m.View(), "No items") {
		t.Errorf("Expected empty placeholder:\n%s", m.View())
	}
}

func TestModelProceed(t *testing.T) {
	src := newTestSource(4, 2)
	calls := 0
	m := New[*testRow](context.Background(), src, Options{
		Proceed: func(ctx context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("boom")
			}
			return "Done", nil
		},
	})

	if cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatal("Expected proceed disabled with nothing selected")
	}

	press(m, tea.KeyMsg{Type: tea.KeySpace})
	cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || !m.running {
		t.Fatal("Expected proceed to start")
	}
	press(m, cmd())
	if m.running || m.Err() == nil || !strings.Contains(m.View(), "Error: boom") {
		t.Errorf("Expected error shown, got running=%v err=%v", m.running, m.Err())
	}

	cmd = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	press(m, cmd())
	if m.Status() != "Done" || m.Err() != nil {
		t.Errorf("Expected success status, got %q %v", m.Status(), m.Err())
	}
}

func TestModelSingleSelectAndTabs(t *testing.T) {
	src := newTestSource(4, 1)
	var selected []string
	var tabs []int
	m := New[*testRow](context.Background(), src, Options{
		Select: func(id string) { selected = append(selected, id) },
		Tabs:   []string{"One", "Two", "Three"},
		SetTab: func(i int) { tabs = append(tabs, i) },
	})

	press(m, tea.KeyMsg{Type: tea.KeySpace}, runes("a"))
	if !slices.Equal(selected, []string{"1"}) || len(src.Selected()) != 0 {
		t.Errorf("Expected select callback only, got %v / %v", selected, src.Selected())
	}
	press(m, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyShiftTab}, tea.KeyMsg{Type: tea.KeyShiftTab})
	if !slices.Equal(tabs, []int{1, 0, 2}) {
		t.Errorf("Unexpected tab sequence %v", tabs)
	}
}

func TestModelQuit(t *testing.T) {
	m := New[*testRow](context.Background(), newTestSource(1, 1), Options{})
	cmd := press(m, runes("q"))
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected QuitMsg")
	}
}

func TestModelFilterInput(t *testing.T) {
	src := newTestSource(6, 3)
	var applied []string
	prompts := 0
	m := New[*testRow](context.Background(), src, Options{
		Filter: func(expr string) error {
			applied = append(applied, expr)
			if strings.Contains(expr, "bad") {
				return errors.New("invalid filter: unknown key \"bad\"")
			}
			return nil
		},
		FilterPrompt: func() (string, string) {
			prompts++
			return "wear=FT", "wear FT/BS · float 0.15-0.7"
		},
	})

	press(m, tea.KeyMsg{Type: tea.KeyDown}, runes("f"))
	if m.mode != inputFilter || m.filter.Value() != "wear=FT" {
		t.Fatalf("Expected filter input prefilled, got mode %v value %q", m.mode, m.filter.Value())
	}
	if view := m.View(); !strings.Contains(view, "wear FT/BS") {
		t.Errorf("Expected choices hint:\n%s", view)
	}

	press(m, runes(", bad"), tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != inputFilter || !strings.Contains(m.View(), "unknown key") {
		t.Errorf("Expected input kept open with the error, mode %v", m.mode)
	}

	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != inputNone || strings.Contains(m.View(), "unknown key") {
		t.Error("Expected esc to close the input and clear the error")
	}

	press(m, runes("f"), runes(", seed=1-"), tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != inputNone || m.cursor != 0 {
		t.Errorf("Expected input closed and cursor reset, mode %v cursor %d", m.mode, m.cursor)
	}
	want := []string{"wear=FT, bad", "wear=FT, seed=1-"}
	if !slices.Equal(applied, want) || prompts != 2 {
		t.Errorf("Expected %v with 2 prompts, got %v with %d", want, applied, prompts)
	}
	if !strings.Contains(m.help(), "f filter") {
		t.Error("Expected filter key in help")
	}

	plain := New[*testRow](context.Background(), src, Options{})
	press(plain, runes("f"))
	if plain.mode != inputNone {
		t.Error("Expected f to do nothing without a filter")
	}
}
