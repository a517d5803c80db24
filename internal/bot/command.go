package bot

import (
	"strings"
	"unicode"
)

// ParseCommand splits a message into a lowercase command name and its arguments.
// ok is false when the message does not start with prefix or names no command.
func ParseCommand(content, prefix string) (name, args string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}

	body := strings.TrimLeftFunc(content[len(prefix):], unicode.IsSpace)
	if body == "" {
		return "", "", false
	}

	end := strings.IndexFunc(body, unicode.IsSpace)
	if end < 0 {
		return strings.ToLower(body), "", true
	}

	return strings.ToLower(body[:end]), strings.TrimSpace(body[end:]), true
}
