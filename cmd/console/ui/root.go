package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"azure-iot-serializer/network"
)

type sentMsg struct {
	ID    string
	Title string
	Err   error
}

type RootModel struct {
	Session  *Session
	Form     CommandFormModel
	Log      viewport.Model
	Lines    []string
	Pending  map[string]string // envelope id -> action title
	Quitting bool
	width    int
	height   int
}

func NewRootModel(s *Session, defs []ActionDef) RootModel {
	vp := viewport.New(50, 20)
	vp.Style = lipgloss.NewStyle().PaddingLeft(1)
	return RootModel{
		Session: s,
		Form:    NewCommandFormModel(defs, 50, 20),
		Log:     vp,
		Pending: map[string]string{},
	}
}

func (m RootModel) Init() tea.Cmd {
	return m.Session.WaitForMsg
}

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		half := msg.Width / 2
		m.Log.Width = msg.Width - half - 4
		m.Log.Height = msg.Height - 6
		m.Form, _ = m.Form.Update(tea.WindowSizeMsg{Width: half, Height: msg.Height - 4})
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Quitting = true
			m.Session.Close()
			return m, tea.Quit
		}

	case SubmitMsg:
		m.Form.State = StateSelecting
		return m, m.send(msg)

	case sentMsg:
		if msg.Err != nil {
			m.logf("%s: send failed: %v", msg.Title, msg.Err)
		} else {
			m.Pending[msg.ID] = msg.Title
			m.logf("%s: sent %s", msg.Title, shortID(msg.ID))
		}
		return m, nil

	case ErrMsg:
		m.Form.Err = msg.Err
		return m, nil

	case ReportMsg:
		title := m.Pending[msg.Report.ID]
		delete(m.Pending, msg.Report.ID)
		m.log(FormatReport(msg.Report, title))
		return m, m.Session.WaitForMsg

	case StateMsg:
		m.logf("state %s", msg.State)
		return m, m.Session.WaitForMsg

	case LinkErrMsg:
		m.log(errorMessageStyle(msg.Err.Error()))
		return m, m.Session.WaitForMsg
	}

	var cmd tea.Cmd
	m.Form, cmd = m.Form.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m RootModel) send(s SubmitMsg) tea.Cmd {
	sess := m.Session
	return func() tea.Msg {
		id, err := sess.Send(s.Def.Kind(), s.Payload)
		return sentMsg{ID: id, Title: s.Def.Title(), Err: err}
	}
}

func (m *RootModel) log(line string) {
	m.Lines = append(m.Lines, time.Now().Format("15:04:05")+" "+line)
	m.Log.SetContent(strings.Join(m.Lines, "\n"))
	m.Log.GotoBottom()
}

func (m *RootModel) logf(format string, args ...any) { m.log(fmt.Sprintf(format, args...)) }

// FormatReport renders one result line; title is the action sent under the
// report's id, if known.
func FormatReport(rep network.Report, title string) string {
	what := title
	if rep.Action != "" {
		what = rep.Action
		if rep.Path != "" {
			what = rep.Path + "/" + rep.Action
		}
	}
	if what == "" {
		what = string(rep.Kind)
	}
	res := rep.Result
	if res == "success" {
		res = successStyle.Render(res)
	} else {
		res = errorMessageStyle(res)
	}
	line := fmt.Sprintf("%s %s [%s] %s", what, shortID(rep.ID), rep.Source, res)
	if rep.Error != "" {
		line += ": " + rep.Error
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (m RootModel) View() string {
	if m.Quitting {
		return "Bye!\n"
	}
	header := titleStyle.Render(fmt.Sprintf("IoT Console - %s", m.Session.DeviceID))
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.Form.View(), panelStyle.Render(m.Log.View()))
	help := blurredStyle.Render("enter: select/submit  tab: next field  esc: back  ctrl+c: quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, help)
}
