// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
	"github.com/RoXxIV/multi-bat/pkg/master"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

// pollDoneMsg carries the result of one background poll cycle
type pollDoneMsg struct {
	summary master.PollSummary
}

// actionDoneMsg carries the result of a write issued from the UI
type actionDoneMsg struct {
	text   string
	err    error
	mosfet *mosfetCommand
}

type mosfetKey struct {
	id     int
	charge bool
}

// mosfetCommand is a MOSFET state written to a slave. It stands in for the
// stored state until a read newer than the write arrives.
type mosfetCommand struct {
	mosfetKey
	on bool
	at time.Time
}

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	m        *master.Master
	connInfo string
	interval time.Duration
	category bmsrtu.Category

	batteries table.Model

	polling     bool
	busy        bool
	lastPoll    time.Time
	lastSummary master.PollSummary

	events        []logEntry
	maxLogEntries int

	commanded map[mosfetKey]mosfetCommand

	now      func() time.Time
	width    int
	height   int
	quitting bool
}

var monitorColumns = []table.Column{
	{Title: "ID", Width: 3},
	{Title: "SOC", Width: 6},
	{Title: "Volts", Width: 6},
	{Title: "Current", Width: 17},
	{Title: "Cells", Width: 6},
	{Title: "Spread", Width: 7},
	{Title: "MOS", Width: 5},
	{Title: "CHG", Width: 4},
	{Title: "DSG", Width: 4},
	{Title: "Faults", Width: 6},
	{Title: "Age", Width: 8},
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(m *master.Master, connInfo string, interval time.Duration) *monitorModel {
	t := table.New(
		table.WithColumns(monitorColumns),
		table.WithFocused(true),
		table.WithHeight(m.Store().Len()+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12"))
	t.SetStyles(styles)

	model := &monitorModel{
		m:             m,
		connInfo:      connInfo,
		interval:      interval,
		category:      bmsrtu.Realtime,
		batteries:     t,
		maxLogEntries: 100,
		commanded:     make(map[mosfetKey]mosfetCommand),
		now:           time.Now,
		width:         100,
		height:        30,
	}
	model.refreshRows()
	return model
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.startPoll(), monitorTickCmd(m.interval))
}

func monitorTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		cmds = append(cmds, m.startPoll(), monitorTickCmd(m.interval))

	case pollDoneMsg:
		m.polling = false
		m.lastPoll = m.now()
		m.lastSummary = msg.summary
		m.refreshRows()
		if !msg.summary.OK() {
			var failed []string
			for _, r := range msg.summary.Failed() {
				failed = append(failed, fmt.Sprintf("%d:%s", r.ID, bmsrtu.ReasonOf(r.Err)))
			}
			m.addLogEntry(fmt.Sprintf("%s (%s)", msg.summary, strings.Join(failed, " ")), true)
		}

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s failed: %s", msg.text, bmsrtu.ReasonOf(msg.err)), true)
		} else {
			m.addLogEntry(msg.text, false)
		}
		if msg.mosfet != nil {
			m.commanded[msg.mosfet.mosfetKey] = *msg.mosfet
		}
		m.refreshRows()
	}

	var cmd tea.Cmd
	m.batteries, cmd = m.batteries.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKeyMsg runs the monitor key bindings. Keys it does not consume are
// passed on to the table for navigation.
func (m *monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return tea.Quit, true

	case "r":
		if m.polling {
			m.addLogEntry("Poll already running", false)
		}
		return m.startPoll(), true

	case "c":
		return m.toggleMosfet(true), true

	case "d":
		return m.toggleMosfet(false), true

	case "i":
		return m.showIdentifier(), true

	case "x":
		m.m.ResetStats()
		m.addLogEntry("Statistics reset", false)
		return nil, true
	}
	return nil, false
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// startPoll starts a poll cycle in the background unless one is running
func (m *monitorModel) startPoll() tea.Cmd {
	if m.polling {
		return nil
	}
	m.polling = true
	bm, category := m.m, m.category
	return func() tea.Msg {
		return pollDoneMsg{summary: bm.ReadAll(category)}
	}
}

// selectedID returns the slave id of the highlighted row
func (m *monitorModel) selectedID() int {
	return m.batteries.Cursor() + 1
}

// runAction runs a write in the background, one at a time
func (m *monitorModel) runAction(text string, action func() error) tea.Cmd {
	if m.busy {
		m.addLogEntry("Command already running", true)
		return nil
	}
	m.busy = true
	return func() tea.Msg {
		return actionDoneMsg{text: text, err: action()}
	}
}

// mosfetState returns the last known state of a MOSFET: the stored reading,
// or a successful write made after it
func (m *monitorModel) mosfetState(rec bmsrtu.Record, key mosfetKey) bool {
	on := rec.DischargeMosfet
	if key.charge {
		on = rec.ChargeMosfet
	}
	if c, ok := m.commanded[key]; ok && !rec.LastUpdate.After(c.at) {
		on = c.on
	}
	return on
}

// toggleMosfet flips a MOSFET of the selected slave, then reads the control
// state back so the table shows what the BMS applied
func (m *monitorModel) toggleMosfet(charge bool) tea.Cmd {
	id := m.selectedID()
	rec, ok := m.m.Store().Get(id)
	if !ok || !rec.Valid {
		m.addLogEntry(fmt.Sprintf("Slave %d: no data yet, MOSFET state unknown", id), true)
		return nil
	}
	if m.busy {
		m.addLogEntry("Command already running", true)
		return nil
	}

	key := mosfetKey{id: id, charge: charge}
	on := !m.mosfetState(rec, key)
	name, set, param := "discharge", m.m.SetDischargeMosfet, bmsrtu.ParamDischargeMosfet
	if charge {
		name, set, param = "charge", m.m.SetChargeMosfet, bmsrtu.ParamChargeMosfet
	}
	text := fmt.Sprintf("Slave %d: %s MOSFET %s", id, name, bmsrtu.FormatOnOff(on))

	bm := m.m
	m.busy = true
	return func() tea.Msg {
		if err := set(id, on); err != nil {
			return actionDoneMsg{text: text, err: err}
		}
		cmd := &mosfetCommand{mosfetKey: key, on: on, at: bm.Clock().Now()}

		bm.Clock().Sleep(bm.Config().InterPollDelay)
		if err := bm.ReadParam(id, param); err != nil {
			text += fmt.Sprintf(" (not read back: %s)", bmsrtu.ReasonOf(err))
		}
		return actionDoneMsg{text: text, mosfet: cmd}
	}
}

func (m *monitorModel) showIdentifier() tea.Cmd {
	id := m.selectedID()
	bm := m.m
	return m.runAction(fmt.Sprintf("Slave %d: display id", id),
		func() error { return bm.SendDisplayIdentifier(id, bmsrtu.DisplayIDShow) })
}

//////////////////////////////////////////////////////////////
// State
//////////////////////////////////////////////////////////////

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.events = append(m.events, logEntry{
		timestamp: m.now(),
		message:   message,
		isError:   isError,
	})
	if len(m.events) > m.maxLogEntries {
		m.events = m.events[len(m.events)-m.maxLogEntries:]
	}
}

// batteryRow renders one record as a table row
func batteryRow(r bmsrtu.Record, now time.Time) table.Row {
	if !r.Valid {
		return table.Row{fmt.Sprint(r.ID), "-", "-", "-", "-", "-", "-", "-", "-", "-", "never"}
	}

	spread := "-"
	if lo, hi, ok := r.CellSpread(); ok {
		spread = fmt.Sprintf("%dmV", hi-lo)
	}
	faults := "none"
	if r.HasFault() {
		faults = "FAULT"
	}
	return table.Row{
		fmt.Sprint(r.ID),
		fmt.Sprintf("%.3f", r.SOC),
		fmt.Sprintf("%.1f", r.TotalVoltage),
		bmsrtu.FormatCurrent(r.Current),
		fmt.Sprintf("%d/%d", r.ValidCellCount, r.CellCount),
		spread,
		fmt.Sprintf("%.0f", r.MosTemperature),
		bmsrtu.FormatOnOff(r.ChargeMosfet),
		bmsrtu.FormatOnOff(r.DischargeMosfet),
		faults,
		formatAge(r.Age(now)),
	}
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

func (m *monitorModel) refreshRows() {
	now := m.now()
	records := m.m.Store().Snapshot()
	rows := make([]table.Row, len(records))
	for i, r := range records {
		rows[i] = batteryRow(r, now)
	}
	m.batteries.SetRows(rows)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m *monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render("MULTIBAT MONITOR"))
	s.WriteString(" ")
	status := m.connInfo
	if m.polling {
		status += " " + warningStyle.Render("polling...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | r poll  c/d MOSFET  i show id  x reset  q quit", status)))
	s.WriteString("\n\n")

	// Battery table and detail pane
	tablePanel := boxStyle.Render(m.batteries.View())
	detail := "No battery selected"
	if rec, ok := m.m.Store().Get(m.selectedID()); ok {
		detail = strings.TrimRight(bmsrtu.FormatRecord(rec, m.now()), "\n")
	}
	detailPanel := boxStyle.Render(detail)
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tablePanel, " ", detailPanel))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, errorStyle, boxStyle))

	return s.String()
}

func (m *monitorModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	stats := m.m.Stats()

	var s strings.Builder
	s.WriteString(labelStyle.Render("Exchanges: "))
	s.WriteString(valueStyle.Render(fmt.Sprint(stats.Exchanges)))
	s.WriteString("  ")
	s.WriteString(labelStyle.Render("OK: "))
	s.WriteString(valueStyle.Render(fmt.Sprintf("%.1f%%", stats.SuccessRate()*100)))

	for _, r := range bmsrtu.Reasons() {
		if n := stats.Failures[r]; n > 0 {
			s.WriteString("  ")
			s.WriteString(errorStyle.Render(fmt.Sprintf("%s: %d", r, n)))
		}
	}

	if !m.lastPoll.IsZero() {
		s.WriteString("  ")
		s.WriteString(labelStyle.Render("Last poll: "))
		s.WriteString(valueStyle.Render(m.lastSummary.String()))
	}
	return boxStyle.Render(s.String())
}

func (m *monitorModel) renderEventLog(labelStyle, errorStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("Events"))

	// Fit what is left of the screen below the table
	visible := m.height - m.m.Store().Len() - 16
	if visible < 3 {
		visible = 3
	}
	start := len(m.events) - visible
	if start < 0 {
		start = 0
	}

	if len(m.events) == 0 {
		s.WriteString("\n(no events)")
	}
	for _, e := range m.events[start:] {
		line := fmt.Sprintf("%s %s", e.timestamp.Format("15:04:05"), e.message)
		if e.isError {
			line = errorStyle.Render(line)
		}
		s.WriteString("\n")
		s.WriteString(line)
	}
	return boxStyle.Render(s.String())
}
