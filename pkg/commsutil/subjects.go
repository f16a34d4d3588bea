package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectGateway       = "gateway.v1"
	SubjectResponseEvent = "gateway.invocation.response"
)

// BuildResponseSubject builds the granular response event subject for a provider operation.
// Characters that NATS treats as token separators or wildcards are replaced with '_'.
func BuildResponseSubject(base, client, method string) string {
	if base == "" {
		base = SubjectResponseEvent
	}
	return fmt.Sprintf("%s.%s.%s", base, sanitizeToken(client), sanitizeToken(method))
}

func sanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
