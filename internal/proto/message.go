// Package proto implements the newline-delimited text protocol spoken by chat clients.
package proto

import (
	"strconv"
	"strings"
	"unicode"
)

// Command names as they appear on the wire.
const (
	CommandRegister = "REGISTER"
	CommandLogin    = "LOGIN"
	CommandMessage  = "MESSAGE"
	CommandEdit     = "EDIT"
	CommandDelete   = "DELETE"
)

// Replies sent to the requesting connection only.
const (
	ReplySuccess = "SUCCESS"
	ReplyFailed  = "FAILED"
)

// DeletedText replaces the content of a deleted message.
const DeletedText = "[deleted]"

// Kind is the decoded request type.
type Kind int

const (
	// KindMalformed is any line that is not a well-formed known command.
	KindMalformed Kind = iota
	// KindRegister creates an account.
	KindRegister
	// KindLogin authenticates the connection.
	KindLogin
	// KindSend posts a new message.
	KindSend
	// KindEdit replaces the text of an existing message.
	KindEdit
	// KindDelete tombstones an existing message.
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindLogin:
		return "login"
	case KindSend:
		return "send"
	case KindEdit:
		return "edit"
	case KindDelete:
		return "delete"
	default:
		return "malformed"
	}
}

// Reason explains why a line decoded to KindMalformed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUnknownCommand
	ReasonMissingFields
	ReasonInvalidID
	// ReasonLineBreak marks a line that still carries CR or LF after the terminator
	// was stripped. Such a line would reach other clients as more than one line.
	ReasonLineBreak
)

// Request is one decoded client line.
type Request struct {
	Kind     Kind
	User     string // username for REGISTER/LOGIN, claimed author otherwise
	Password string
	Text     string
	ID       int64
	Reason   Reason
}

// Decode maps a raw protocol line to a Request. It never fails: anything it cannot
// make sense of comes back as KindMalformed with a Reason.
func Decode(line string) Request {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if strings.ContainsAny(line, "\r\n") {
		return malformed(ReasonLineBreak)
	}

	name, rest := nextField(line)
	switch name {
	case CommandRegister, CommandLogin:
		fields, ok := splitFields(rest, 2)
		if !ok {
			return malformed(ReasonMissingFields)
		}
		kind := KindLogin
		if name == CommandRegister {
			kind = KindRegister
		}
		return Request{Kind: kind, User: fields[0], Password: fields[1]}

	case CommandMessage:
		fields, ok := splitFields(rest, 2)
		if !ok {
			return malformed(ReasonMissingFields)
		}
		return Request{Kind: KindSend, User: fields[0], Text: fields[1]}

	case CommandEdit:
		fields, ok := splitFields(rest, 3)
		if !ok {
			return malformed(ReasonMissingFields)
		}
		id, ok := parseID(fields[1])
		if !ok {
			return malformed(ReasonInvalidID)
		}
		return Request{Kind: KindEdit, User: fields[0], ID: id, Text: fields[2]}

	case CommandDelete:
		fields, ok := splitFields(rest, 2)
		if !ok {
			return malformed(ReasonMissingFields)
		}
		// DELETE has no free-text field, so trailing junk after the id is rejected.
		id, ok := parseID(strings.TrimRightFunc(fields[1], unicode.IsSpace))
		if !ok {
			return malformed(ReasonInvalidID)
		}
		return Request{Kind: KindDelete, User: fields[0], ID: id}

	default:
		return malformed(ReasonUnknownCommand)
	}
}

func malformed(reason Reason) Request {
	return Request{Kind: KindMalformed, Reason: reason}
}

// splitFields splits s into exactly n fields. The first n-1 are whitespace-delimited
// tokens; the last one is the remainder of the line, kept verbatim.
func splitFields(s string, n int) ([]string, bool) {
	fields := make([]string, 0, n)
	rest := s
	for i := 0; i < n-1; i++ {
		var field string
		field, rest = nextField(rest)
		if field == "" {
			return nil, false
		}
		fields = append(fields, field)
	}

	// Only the delimiter run in front of the final field is dropped.
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if strings.TrimSpace(rest) == "" {
		return nil, false
	}
	fields = append(fields, rest)
	return fields, true
}

// nextField returns the first whitespace-delimited token of s and everything after it.
func nextField(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := strings.IndexFunc(s, unicode.IsSpace)
	if end < 0 {
		return s, ""
	}
	return s[:end], s[end:]
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
