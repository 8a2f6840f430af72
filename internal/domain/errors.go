package domain

import "errors"

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrMessageTooLong = errors.New("message too long")
	ErrAuthorMismatch = errors.New("author does not match authenticated identity")
	ErrNotAuthor      = errors.New("only the author may edit this message")
)

// Wire codes reported to the originating client.
const (
	CodeInvalidMessage = "invalid_message"
	CodeRateLimited    = "rate_limited"
	CodeMessageTooLong = "message_too_long"
	CodeAuthorMismatch = "author_mismatch"
	CodeNotAuthor      = "not_author"
	CodeInternal       = "internal_error"
)

// ErrorCode maps a policy error to the code sent on the wire.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		return CodeInvalidMessage
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrMessageTooLong):
		return CodeMessageTooLong
	case errors.Is(err, ErrAuthorMismatch):
		return CodeAuthorMismatch
	case errors.Is(err, ErrNotAuthor):
		return CodeNotAuthor
	default:
		return CodeInternal
	}
}
