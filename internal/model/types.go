package model

import (
	"fmt"
	"strings"
	"time"
)

// Message is the subset of a provider message we work with: its ID and headers.
type Message struct {
	ID       string
	ThreadID string
	Headers  []Header
}

type Header struct {
	Name  string
	Value string
}

// Header returns the first header with the given name (case-insensitive), or "".
func (m *Message) Header(name string) string {
	if m == nil {
		return ""
	}
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// MessageFormat selects how much of a message the provider returns.
type MessageFormat string

const (
	FormatMetadata MessageFormat = "metadata"
	FormatFull     MessageFormat = "full"
)

// MessagePage is one page of message IDs plus the continuation token for the
// next page (empty on the last page).
type MessagePage struct {
	IDs           []string
	NextPageToken string
}

// Sender aggregates messages by sender address.
type Sender struct {
	Email       string
	DisplayName string // first non-empty name seen, may be empty
	Count       int
}

// Label renders the sender the way listings show it: "name <address> (count)",
// or "address (count)" when no name is known.
func (s Sender) Label() string {
	if s.DisplayName != "" {
		return fmt.Sprintf("%s <%s> (%d)", s.DisplayName, s.Email, s.Count)
	}
	return fmt.Sprintf("%s (%d)", s.Email, s.Count)
}

func (s Sender) FilterValue() string { return s.DisplayName + " " + s.Email }

// FilterRule is a provider-side rule: mail matching From gets AddLabelIDs.
type FilterRule struct {
	From        string
	AddLabelIDs []string
}

// BatchModifyRequest applies the same label changes to many messages at once.
type BatchModifyRequest struct {
	IDs            []string
	AddLabelIDs    []string
	RemoveLabelIDs []string
}

// Action is the bulk action chosen for a selection.
type Action string

const (
	ActionUnsubscribe Action = "unsubscribe" // unsubscribe and delete
	ActionFilter      Action = "filter"      // filter and delete
)

// Description is the phrase used in confirmations and status lines.
func (a Action) Description() string {
	if a == ActionUnsubscribe {
		return "unsubscribe and delete"
	}
	return "filter and delete"
}

// Status is the per-address processing state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to one selected sender.
type Outcome struct {
	Email        string
	Action       Action
	Status       Status
	Unsubscribed bool
	Deleted      int
	Err          string
	ProcessedAt  time.Time
}
