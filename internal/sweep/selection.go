package sweep

import "fmt"

// EmptySelectionError means there is nothing to act on. It is a notice, not
// a failure.
type EmptySelectionError struct{}

func (EmptySelectionError) Error() string { return "no senders selected" }

// UnknownSenderError is returned when a selection names an address that the
// scan never saw.
type UnknownSenderError struct {
	Email string
}

func (e *UnknownSenderError) Error() string {
	return fmt.Sprintf("sender %q was not found in the scanned mail", e.Email)
}

// SelectTop returns the first n addresses in iteration order.
func SelectTop(s *Senders, n int) ([]string, error) {
	if n > s.Len() {
		n = s.Len()
	}
	if n <= 0 {
		return nil, EmptySelectionError{}
	}
	return append([]string(nil), s.order[:n]...), nil
}

// SelectAddresses validates an explicit choice, keeping the caller's order
// and dropping duplicates.
func SelectAddresses(s *Senders, emails []string) ([]string, error) {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if seen[e] {
			continue
		}
		if !s.Has(e) {
			return nil, &UnknownSenderError{Email: e}
		}
		seen[e] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, EmptySelectionError{}
	}
	return out, nil
}
