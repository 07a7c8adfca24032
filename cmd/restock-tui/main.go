package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/restock/pkg/client"
	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/engine/forecast"
)

// Config
const (
	pollRate       = 5 * time.Second
	fetchTimeout   = 2 * time.Second
	viewportHeight = 15
	paneWidth      = 100
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(paneWidth)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(paneWidth)

	nameStyle = lipgloss.NewStyle().Width(28).Bold(true)
	qtyStyle  = lipgloss.NewStyle().Width(14)
	dateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(14)

	criticalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	attentionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange
	fineStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green
)

type fetcher interface {
	Summarize(ctx context.Context) (engine.Summary, error)
	ShoppingList(ctx context.Context) ([]engine.ShoppingEntry, error)
	Alerts(ctx context.Context) ([]engine.Alert, error)
}

type tickMsg time.Time

type dataMsg struct {
	summary  engine.Summary
	shopping []engine.ShoppingEntry
	alerts   []engine.Alert
	err      error
}

type model struct {
	api      fetcher
	spinner  spinner.Model
	viewport viewport.Model
	summary  engine.Summary
	shopping []engine.ShoppingEntry
	alerts   []engine.Alert
	err      error
	ready    bool
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func initialModel(api fetcher) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:      api,
		spinner:  s,
		viewport: newViewport(paneWidth),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchData(m.api)
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.summary = msg.summary
			m.shopping = msg.shopping
			m.alerts = msg.alerts
			m.viewport.SetContent(renderShopping(m.shopping))
		}
		m.ready = true

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

func urgencyStyle(u forecast.Urgency) lipgloss.Style {
	switch u {
	case forecast.UrgencyCritical:
		return criticalStyle
	case forecast.UrgencyAttention:
		return attentionStyle
	default:
		return fineStyle
	}
}

func renderShopping(list []engine.ShoppingEntry) string {
	if len(list) == 0 {
		return subtleStyle.Render("Nothing to buy.")
	}

	var sb strings.Builder
	for _, e := range list {
		by := "-"
		if e.PurchaseBy != nil {
			by = e.PurchaseBy.Format("2006-01-02")
		}
		sb.WriteString(fmt.Sprintf("%s %s %s %s\n",
			nameStyle.Render(e.Name),
			qtyStyle.Render(fmt.Sprintf("buy %g %s", e.Suggested, e.Unit)),
			dateStyle.Render(by),
			urgencyStyle(e.Urgency).Render(string(e.Urgency)),
		))
	}
	return sb.String()
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	var top strings.Builder
	top.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Stock") + "\n\n")
	top.WriteString(fmt.Sprintf("%d items • %s • %s • %d need counting\n",
		m.summary.Total,
		attentionStyle.Render(fmt.Sprintf("%d low", m.summary.LowStock)),
		criticalStyle.Render(fmt.Sprintf("%d out", m.summary.Critical)),
		m.summary.NeedsCheck,
	))
	for _, a := range m.alerts {
		if a.NeedsQuantityCheck && !a.IsLowStock {
			top.WriteString(subtleStyle.Render(fmt.Sprintf("• count %s\n", a.Name)))
		}
	}
	topPane := paneStyle.Render(top.String())

	header := headerStyle.Render(fmt.Sprintf("%s Shopping List", m.spinner.View()))
	list := m.viewport.View()

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d to buy • %d alerts", len(m.shopping), len(m.alerts)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress r to refresh, q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, list, footer)
}

// Commands

func fetchData(api fetcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		summary, err := api.Summarize(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		shopping, err := api.ShoppingList(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		alerts, err := api.Alerts(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{summary: summary, shopping: shopping, alerts: alerts}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	endpoint := flag.String("endpoint", envOr("RESTOCK_ENDPOINT", client.DefaultEndpoint), "restock-d base URL")
	token := flag.String("token", os.Getenv("RESTOCK_API_TOKEN"), "API bearer token")
	flag.Parse()

	c := client.NewClient(*endpoint)
	c.SetToken(*token)

	p := tea.NewProgram(initialModel(c), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("restock-tui: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
