package tui

import (
	"promosweep/internal/model"

	"github.com/charmbracelet/bubbles/list"
)

// senderItem wraps Sender with its checkbox state for the list display.
type senderItem struct {
	model.Sender
	checked bool
}

func (s senderItem) FilterValue() string { return s.Sender.FilterValue() }
func (s senderItem) Title() string {
	if s.checked {
		return checkedStyle.Render("[x]") + " " + s.Label()
	}
	return "[ ] " + s.Label()
}
func (s senderItem) Description() string { return "" }

func sendersToItems(senders []model.Sender) []list.Item {
	items := make([]list.Item, len(senders))
	for i, s := range senders {
		items[i] = senderItem{Sender: s}
	}
	return items
}

func newSenderList() list.Model {
	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	d.SetSpacing(0)
	l := list.New([]list.Item{}, d, 0, 0)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetKeys("q")
	return l
}
