package util

import "strings"

// ParseFrom splits a From header value into address and display name.
// - "Name <user@example.com>" -> ("user@example.com", "Name")
// - `"Name" <user@example.com>` -> ("user@example.com", "Name")
// - "user@example.com" -> ("user@example.com", "")
// The address is the text strictly between the first '<' and the first '>';
// it is not lowercased or otherwise canonicalized. When the header has no
// "<...>" part the whole value is the address.
func ParseFrom(fromHeader string) (address, displayName string) {
	start := strings.IndexByte(fromHeader, '<')
	end := strings.IndexByte(fromHeader, '>')
	if start == -1 || end == -1 {
		return fromHeader, ""
	}
	if end > start {
		address = fromHeader[start+1 : end]
	}
	return address, unquote(strings.TrimSpace(fromHeader[:start]))
}

// unquote strips one layer of matching surrounding quotes.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first == last && (first == '"' || first == '\'') {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
