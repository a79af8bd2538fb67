package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

type keyMap struct {
	Up, Down, PageUp, PageDown, Home, End key.Binding
	Toggle, Extend, SelectFirst           key.Binding
	DeselectAll                           key.Binding
	Search, Teams, Filter                 key.Binding
	NextTab, PrevTab                      key.Binding
	Sort                                  key.Binding
	Proceed, Accept, Dismiss              key.Binding
	Back, ForceQuit                       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k")),
		Down:        key.NewBinding(key.WithKeys("down", "j")),
		PageUp:      key.NewBinding(key.WithKeys("pgup", "ctrl+u")),
		PageDown:    key.NewBinding(key.WithKeys("pgdown", "ctrl+d")),
		Home:        key.NewBinding(key.WithKeys("home", "g")),
		End:         key.NewBinding(key.WithKeys("end", "G")),
		Toggle:      key.NewBinding(key.WithKeys(" ")),
		Extend:      key.NewBinding(key.WithKeys("S")),
		SelectFirst: key.NewBinding(key.WithKeys("a")),
		DeselectAll: key.NewBinding(key.WithKeys("d")),
		Search:      key.NewBinding(key.WithKeys("/")),
		Teams:       key.NewBinding(key.WithKeys("t")),
		Filter:      key.NewBinding(key.WithKeys("f")),
		NextTab:     key.NewBinding(key.WithKeys("tab")),
		PrevTab:     key.NewBinding(key.WithKeys("shift+tab")),
		Sort:        key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9")),
		Proceed:     key.NewBinding(key.WithKeys("enter")),
		Accept:      key.NewBinding(key.WithKeys("enter")),
		Dismiss:     key.NewBinding(key.WithKeys("esc")),
		Back:        key.NewBinding(key.WithKeys("esc", "q")),
		ForceQuit:   key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle    = lipgloss.NewStyle().Reverse(true)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	emptyStyle     = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	tabStyle       = lipgloss.NewStyle().Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
)
