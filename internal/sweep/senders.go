package sweep

import "promosweep/internal/model"

// Senders maps address -> sender and remembers the order in which addresses
// were first seen. Iteration (List) follows that order.
type Senders struct {
	order   []string
	byEmail map[string]*model.Sender
}

func NewSenders() *Senders {
	return &Senders{byEmail: make(map[string]*model.Sender)}
}

// Add counts one message from email. The first non-empty display name seen
// for an address sticks; later names never replace it.
func (s *Senders) Add(email, displayName string) {
	g, ok := s.byEmail[email]
	if !ok {
		g = &model.Sender{Email: email}
		s.byEmail[email] = g
		s.order = append(s.order, email)
	}
	g.Count++
	if g.DisplayName == "" && displayName != "" {
		g.DisplayName = displayName
	}
}

func (s *Senders) Get(email string) (model.Sender, bool) {
	g, ok := s.byEmail[email]
	if !ok {
		return model.Sender{}, false
	}
	return *g, true
}

func (s *Senders) Has(email string) bool {
	_, ok := s.byEmail[email]
	return ok
}

func (s *Senders) Len() int { return len(s.order) }

// List returns a snapshot in first-seen order.
func (s *Senders) List() []model.Sender {
	out := make([]model.Sender, 0, len(s.order))
	for _, email := range s.order {
		out = append(out, *s.byEmail[email])
	}
	return out
}

// Total is the sum of all message counts.
func (s *Senders) Total() int {
	n := 0
	for _, g := range s.byEmail {
		n += g.Count
	}
	return n
}
