package arg

import (
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"tabwarden/internal/ipc"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	timeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 2)
	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	idleStyle   = lipgloss.NewStyle().Faint(true)
	helpStyle   = lipgloss.NewStyle().Faint(true).MarginTop(1)
)

var countdownCmd = &cobra.Command{
	Use:   "countdown",
	Short: "Watch the soft-block countdown live",
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj, err := manager()
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()

		m := countdownModel{obj: obj}
		m.poll()
		if _, err := tea.NewProgram(m).Run(); err != nil {
			log.Fatal("Failed to run countdown view:", err)
		}
	},
}

type tickMsg time.Time

type countdownModel struct {
	obj       dbus.BusObject
	remaining int32
	timeout   int32
	paused    bool
	err       error
}

func (m *countdownModel) poll() {
	m.err = m.obj.Call(ipc.InterfaceName+".GetSoftBlockTime", 0).
		Store(&m.remaining, &m.timeout, &m.paused)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m countdownModel) Init() tea.Cmd {
	return tick()
}

func (m countdownModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		m.poll()
		return m, tick()
	}
	return m, nil
}

func (m countdownModel) View() string {
	s := titleStyle.Render("TabWarden soft block") + "\n\n"

	switch {
	case m.err != nil:
		s += idleStyle.Render(fmt.Sprintf("daemon unreachable: %v", m.err)) + "\n"
	case m.remaining <= 0:
		s += idleStyle.Render("no countdown running") + "\n"
	default:
		s += timeStyle.Render(fmt.Sprintf("%02d:%02d", m.remaining/60, m.remaining%60))
		if m.paused {
			s += pausedStyle.Render("  PAUSED")
		}
		s += "\n" + idleStyle.Render(fmt.Sprintf("timeout: %d min", m.timeout)) + "\n"
	}

	s += helpStyle.Render("q to quit")
	return s
}

func init() {
	rootCmd.AddCommand(countdownCmd)
}
