package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"promosweep/internal/model"
	"promosweep/internal/sweep"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const noSelectionNotice = "Please select at least one sender."

type viewState int

const (
	viewScanning viewState = iota
	viewSelect             // sender checklist
	viewConfirm            // yes/no before a bulk action
	viewRunning            // processing the selection one sender at a time
	viewDone               // summary of the last run
)

// Options configures the interactive session.
type Options struct {
	// MaxSenders caps how many aggregated senders are offered for selection.
	MaxSenders int
	Scan       sweep.AggregateOptions
}

type AppModel struct {
	// Core state
	provider sweep.Provider
	runner   *sweep.Runner
	opts     Options
	ctx      context.Context
	cancel   context.CancelFunc
	Err      error
	status   string
	notice   string

	// View state machine
	view    viewState
	senders *sweep.Senders
	action  model.Action
	queue   []string
	run     *sweep.Run
	results []model.Outcome

	// Sub-models
	list     list.Model
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model

	// Layout
	width, height int

	// Program reference for sending messages from goroutines
	program *tea.Program
}

// SetProgram stores a reference to the tea.Program so the scan can send
// progress messages back to the Update loop.
func (m *AppModel) SetProgram(p *tea.Program) {
	m.program = p
}

func NewAppModel(ctx context.Context, provider sweep.Provider, runner *sweep.Runner, opts Options) AppModel {
	ctx, cancel := context.WithCancel(ctx)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return AppModel{
		provider: provider,
		runner:   runner,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		status:   "Scanning promotions...",
		view:     viewScanning,
		list:     newSenderList(),
		keys:     defaultKeyMap,
		help:     help.New(),
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.scanCmd())
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4) // room for footer
		m.progress.Width = min(max(msg.Width-4, 10), 60)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanProgressMsg:
		m.status = fmt.Sprintf("Scanning promotions... %d messages (%d pages)", msg.Scanned, msg.Pages)
		if msg.Skipped > 0 {
			m.status += fmt.Sprintf(", %d skipped", msg.Skipped)
		}
		return m, nil

	case scanCompleteMsg:
		if msg.err != nil {
			m.Err = msg.err
			m.status = "Scan failed!"
			return m, tea.Quit
		}
		return m.showSenders(msg.result), nil

	case senderDoneMsg:
		return m.recordOutcome(msg.outcome)

	case noticeMsg:
		if string(msg) == m.notice {
			m.notice = ""
		}
		return m, nil
	}

	if m.view == viewSelect {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.cancel()
		return m, tea.Quit
	}

	switch m.view {
	case viewSelect:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.list.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			m.toggleCurrent()
			return m, nil
		case key.Matches(msg, m.keys.All):
			m.toggleAll()
			return m, nil
		case key.Matches(msg, m.keys.Unsubscribe):
			return m.confirm(model.ActionUnsubscribe)
		case key.Matches(msg, m.keys.Filter):
			return m.confirm(model.ActionFilter)
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case viewConfirm:
		switch {
		case key.Matches(msg, m.keys.Confirm):
			return m.startRun()
		case key.Matches(msg, m.keys.Cancel):
			m.view = viewSelect
			m.queue = nil
			return m, nil
		}

	case viewDone:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Back) && len(m.results) > 0:
			m.dropProcessed()
			m.view = viewSelect
			return m, nil
		}

	default:
		if key.Matches(msg, m.keys.Quit) && m.view == viewScanning {
			m.cancel()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *AppModel) showSenders(res *sweep.AggregateResult) *AppModel {
	m.senders = res.Senders
	m.status = ""
	top, err := sweep.SelectTop(res.Senders, m.opts.MaxSenders)
	if err != nil {
		m.view = viewDone
		m.status = fmt.Sprintf("No promotional senders found (%d messages scanned).", res.Scanned)
		return m
	}
	offered := make([]model.Sender, 0, len(top))
	for _, email := range top {
		s, _ := res.Senders.Get(email)
		offered = append(offered, s)
	}
	m.list.SetItems(sendersToItems(offered))
	m.list.Title = fmt.Sprintf("Select senders to process (%d of %d)", len(offered), res.Senders.Len())
	m.view = viewSelect
	return m
}

func (m *AppModel) toggleCurrent() {
	cur, ok := m.list.SelectedItem().(senderItem)
	if !ok {
		return
	}
	// Index() is relative to the filtered view; SetItem wants the full list.
	for i, it := range m.list.Items() {
		if it.(senderItem).Email == cur.Email {
			cur.checked = !cur.checked
			m.list.SetItem(i, cur)
			return
		}
	}
}

// toggleAll checks every sender, or clears them all when all are checked.
func (m *AppModel) toggleAll() {
	items := m.list.Items()
	all := true
	for _, it := range items {
		if !it.(senderItem).checked {
			all = false
			break
		}
	}
	for i, it := range items {
		si := it.(senderItem)
		si.checked = !all
		items[i] = si
	}
	m.list.SetItems(items)
}

// checked returns the checked addresses in list order.
func (m *AppModel) checked() []string {
	var emails []string
	for _, it := range m.list.Items() {
		if si := it.(senderItem); si.checked {
			emails = append(emails, si.Email)
		}
	}
	return emails
}

func (m *AppModel) confirm(action model.Action) (tea.Model, tea.Cmd) {
	selection, err := sweep.SelectAddresses(m.senders, m.checked())
	if err != nil {
		if errors.As(err, &sweep.EmptySelectionError{}) {
			return m, m.showNotice(noSelectionNotice)
		}
		return m, m.showNotice(err.Error())
	}
	m.action = action
	m.queue = selection
	m.view = viewConfirm
	return m, nil
}

func (m *AppModel) startRun() (tea.Model, tea.Cmd) {
	m.results = nil
	m.run = m.runner.Start(m.ctx, m.action, len(m.queue))
	m.view = viewRunning
	return m, m.processCmd(m.queue[0])
}

func (m *AppModel) recordOutcome(o model.Outcome) (tea.Model, tea.Cmd) {
	m.results = append(m.results, o)
	if len(m.results) < len(m.queue) && m.ctx.Err() == nil {
		return m, m.processCmd(m.queue[len(m.results)])
	}
	m.view = viewDone
	m.status = "Done."
	return m, nil
}

// dropProcessed removes successfully processed senders from the list and
// clears the remaining checkboxes.
func (m *AppModel) dropProcessed() {
	done := make(map[string]bool, len(m.results))
	for _, o := range m.results {
		if o.Status == model.StatusProcessed {
			done[o.Email] = true
		}
	}
	var items []list.Item
	for _, it := range m.list.Items() {
		si := it.(senderItem)
		if done[si.Email] {
			continue
		}
		si.checked = false
		items = append(items, si)
	}
	m.list.SetItems(items)
	m.queue = nil
	m.status = ""
}

func (m *AppModel) showNotice(text string) tea.Cmd {
	m.notice = text
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return noticeMsg(text)
	})
}

// Commands

func (m *AppModel) scanCmd() tea.Cmd {
	opts := m.opts.Scan
	return func() tea.Msg {
		opts.Progress = func(p sweep.AggregateProgress) {
			if m.program != nil {
				m.program.Send(scanProgressMsg(p))
			}
		}
		res, err := sweep.Aggregate(m.ctx, m.provider, opts)
		return scanCompleteMsg{result: res, err: err}
	}
}

// processCmd handles a single sender. The next one is started only after its
// outcome arrives in Update, so senders never overlap.
func (m *AppModel) processCmd(email string) tea.Cmd {
	run, ctx := m.run, m.ctx
	return func() tea.Msg {
		return senderDoneMsg{outcome: run.Process(ctx, email)}
	}
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	if m.Err != nil {
		return errorStyle.Render("Error: "+m.Err.Error()) + "\n"
	}

	var b strings.Builder
	switch m.view {
	case viewScanning:
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.status)
	case viewSelect:
		b.WriteString(m.list.View())
		b.WriteString("\n")
		b.WriteString(footerStyle.Render(m.help.View(m.keys)))
	case viewConfirm:
		b.WriteString(m.confirmView())
	case viewRunning:
		b.WriteString(m.runningView())
	case viewDone:
		b.WriteString(m.doneView())
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.notice))
	}
	return b.String()
}
