package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Define states
type FormState int

const (
	StateSelecting FormState = iota
	StateFilling
)

// SubmitMsg is emitted when a filled form builds a valid payload.
type SubmitMsg struct {
	Def     ActionDef
	Payload []byte
}

// CommandFormModel handles command form UI
type CommandFormModel struct {
	Defs     []ActionDef
	State    FormState
	List     list.Model
	Inputs   []textinput.Model
	Focused  int
	Selected int
	Err      error
}

func NewCommandFormModel(defs []ActionDef, width, height int) CommandFormModel {
	items := make([]list.Item, len(defs))
	for i, d := range defs {
		items[i] = d
	}

	delegate := list.NewDefaultDelegate()
	l := list.New(items, delegate, width, height)
	l.Title = "Select Action"
	l.SetShowHelp(false)

	return CommandFormModel{
		Defs:  defs,
		State: StateSelecting,
		List:  l,
	}
}

func (m *CommandFormModel) initInputs() {
	def := m.Defs[m.Selected]
	m.Inputs = make([]textinput.Model, len(def.Fields))
	for i, field := range def.Fields {
		ti := textinput.New()
		ti.Placeholder = field.Type
		ti.CharLimit = 1024
		if i == 0 {
			ti.Focus()
		}
		m.Inputs[i] = ti
	}
	m.Focused = 0
	m.Err = nil
}

func (m CommandFormModel) Init() tea.Cmd {
	return nil
}

func (m CommandFormModel) Update(msg tea.Msg) (CommandFormModel, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	if m.State == StateSelecting {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "enter":
				if m.List.FilterState() == list.Filtering {
					break
				}
				m.Selected = m.List.Index()
				if m.Selected < 0 || m.Selected >= len(m.Defs) {
					return m, nil
				}
				m.State = StateFilling
				m.initInputs()
				return m, textinput.Blink
			}
		case tea.WindowSizeMsg:
			m.List.SetWidth(msg.Width)
			m.List.SetHeight(msg.Height)
		}
		m.List, cmd = m.List.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	// Filling form
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			m.State = StateSelecting
			return m, nil
		case "enter":
			switch m.Focused {
			case len(m.Inputs):
				return m, m.submit()
			case len(m.Inputs) + 1:
				m.State = StateSelecting
				return m, nil
			}
			m.move(1)
			return m, nil
		case "tab", "down":
			m.move(1)
			return m, nil
		case "shift+tab", "up":
			m.move(-1)
			return m, nil
		}
	}
	if m.Focused >= 0 && m.Focused < len(m.Inputs) {
		m.Inputs[m.Focused], cmd = m.Inputs[m.Focused].Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// move cycles focus over the inputs and the two buttons.
func (m *CommandFormModel) move(delta int) {
	n := len(m.Inputs) + 2
	m.Focused = ((m.Focused+delta)%n + n) % n
	for i := range m.Inputs {
		if i == m.Focused {
			m.Inputs[i].Focus()
		} else {
			m.Inputs[i].Blur()
		}
	}
}

// Values returns the current input texts in field order.
func (m CommandFormModel) Values() []string {
	out := make([]string, len(m.Inputs))
	for i, in := range m.Inputs {
		out[i] = in.Value()
	}
	return out
}

func (m CommandFormModel) submit() tea.Cmd {
	def := m.Defs[m.Selected]
	values := m.Values()
	return func() tea.Msg {
		payload, err := Build(def, values)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return SubmitMsg{Def: def, Payload: payload}
	}
}

func (m CommandFormModel) renderButton(text string, focused bool) string {
	if focused {
		return buttonFocusedStyle.Render(text)
	}
	return buttonStyle.Render(text)
}

func (m CommandFormModel) View() string {
	if m.State == StateSelecting {
		return m.List.View()
	}

	def := m.Defs[m.Selected]
	s := formTitleStyle.Render(fmt.Sprintf("Parameters: %s", def.Title())) + "\n\n"

	for i, field := range def.Fields {
		ls := labelStyle
		if i == m.Focused {
			ls = labelFocusedStyle
		}
		s += ls.Render(field.Name) + "\n"
		s += m.Inputs[i].View() + "\n\n"
	}
	if len(def.Fields) == 0 {
		s += blurredStyle.Render("This action takes no arguments.") + "\n\n"
	}

	submitBtn := m.renderButton("Submit", m.Focused == len(m.Inputs))
	backBtn := m.renderButton("Back", m.Focused == len(m.Inputs)+1)
	s += "\n" + lipgloss.JoinHorizontal(lipgloss.Top, submitBtn, lipgloss.NewStyle().MarginLeft(2).Render(backBtn))

	if m.Err != nil {
		s += "\n\n" + errorMessageStyle(m.Err.Error())
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(s)
}
