package proto

import (
	"strconv"
	"strings"
)

// Error lines addressed to the requester only.
const (
	ErrLineMalformed       = "Error: Malformed command."
	ErrLineUnknownCommand  = "Error: Unknown command."
	ErrLineInvalidID       = "Error: Invalid message ID."
	ErrLineNotLoggedIn     = "Error: You must log in first."
	ErrLineAlreadyLoggedIn = "Error: Already logged in."
	ErrLineNotFound        = "Error: Message ID not found."
	ErrLineNotOwnerEdit    = "Error: You can only edit your own messages."
	ErrLineNotOwnerDelete  = "Error: You can only delete your own messages."
	ErrLineDeleted         = "Error: Message has been deleted."
	ErrLineRateLimited     = "Error: Rate limit exceeded."
	ErrLineInternal        = "Error: Internal server error."
)

// MalformedLine returns the error line for a malformed request.
func MalformedLine(reason Reason) string {
	switch reason {
	case ReasonUnknownCommand:
		return ErrLineUnknownCommand
	case ReasonInvalidID:
		return ErrLineInvalidID
	default:
		return ErrLineMalformed
	}
}

// MessageEvent is broadcast when a new message is posted.
func MessageEvent(author string, id int64, text string) string {
	var b strings.Builder
	b.Grow(len(author) + len(text) + 16)
	b.WriteString(author)
	b.WriteString(": [ID: ")
	b.WriteString(strconv.FormatInt(id, 10))
	b.WriteString("] ")
	b.WriteString(text)
	return b.String()
}

// EditedEvent is broadcast when a message is edited.
func EditedEvent(id int64, text string) string {
	return "Message ID [" + strconv.FormatInt(id, 10) + "] has been updated to: " + text
}

// DeletedEvent is broadcast when a message is deleted.
func DeletedEvent(id int64) string {
	return "Message ID [" + strconv.FormatInt(id, 10) + "] has been deleted."
}

// EncodeRegister, EncodeLogin, EncodeMessage, EncodeEdit and EncodeDelete build client lines.
// They are used by the bundled client and by tests.
func EncodeRegister(user, password string) string {
	return CommandRegister + " " + user + " " + password
}

func EncodeLogin(user, password string) string {
	return CommandLogin + " " + user + " " + password
}

func EncodeMessage(user, text string) string {
	return CommandMessage + " " + user + " " + text
}

func EncodeEdit(user string, id int64, text string) string {
	return CommandEdit + " " + user + " " + strconv.FormatInt(id, 10) + " " + text
}

func EncodeDelete(user string, id int64) string {
	return CommandDelete + " " + user + " " + strconv.FormatInt(id, 10)
}

// NoticeEvent is broadcast when an operator announces something.
func NoticeEvent(text string) string {
	return "Server: " + text
}
