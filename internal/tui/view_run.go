package tui

import (
	"fmt"
	"strings"

	"promosweep/internal/model"

	"github.com/charmbracelet/bubbles/key"
)

func (m *AppModel) confirmView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Confirm"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Are you sure you want to %s the %d selected senders?\n\n", m.action.Description(), len(m.queue))
	for _, email := range m.queue {
		b.WriteString("  " + email + "\n")
	}
	b.WriteString(footerStyle.Render(m.help.ShortHelpView([]key.Binding{m.keys.Confirm, m.keys.Cancel})))
	return b.String()
}

func (m *AppModel) runningView() string {
	total := len(m.queue)
	current := min(len(m.results)+1, total)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Running: " + m.action.Description()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s Processing %d/%d: %s\n\n", m.spinner.View(), current, total, m.queue[current-1])
	b.WriteString(m.progress.ViewAs(float64(len(m.results)) / float64(total)))
	b.WriteString("\n\n")
	for _, o := range m.results {
		b.WriteString(outcomeLine(o))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *AppModel) doneView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.status))
	b.WriteString("\n")
	if len(m.results) > 0 {
		var failed, deleted, unsubscribed int
		for _, o := range m.results {
			b.WriteString(outcomeLine(o))
			b.WriteString("\n")
			if o.Status == model.StatusFailed {
				failed++
			}
			if o.Unsubscribed {
				unsubscribed++
			}
			deleted += o.Deleted
		}
		fmt.Fprintf(&b, "\nProcessed %d of %d senders: %d failed, %d unsubscribed, %d messages moved to trash.\n",
			len(m.results), len(m.queue), failed, unsubscribed, deleted)
		if len(m.results) < len(m.queue) {
			b.WriteString(noticeStyle.Render("Stopped before the whole selection was processed."))
			b.WriteString("\n")
		}
	}
	bindings := []key.Binding{m.keys.Quit}
	if len(m.results) > 0 {
		bindings = []key.Binding{m.keys.Back, m.keys.Quit}
	}
	b.WriteString(footerStyle.Render(m.help.ShortHelpView(bindings)))
	return b.String()
}

func outcomeLine(o model.Outcome) string {
	if o.Status == model.StatusFailed {
		return errorStyle.Render("✗ "+o.Email) + "  " + o.Err
	}
	detail := fmt.Sprintf("%d deleted", o.Deleted)
	if o.Action == model.ActionUnsubscribe {
		if o.Unsubscribed {
			detail = "unsubscribed, " + detail
		} else {
			detail = "no unsubscribe, " + detail
		}
	}
	return okStyle.Render("✓ "+o.Email) + "  " + detail
}
