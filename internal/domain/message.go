package domain

import (
	"time"
	"unicode/utf8"
)

const (
	DefaultMaxMessageLength = 500
	MaxAuthorLength         = 64
)

// ChatMessage Invariants:
// 1. Length: BodyLength(Body) <= the hub's max message length for every accepted message.
// 2. Identity: ID is assigned once at acceptance and never changes; edits keep it.
type ChatMessage struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}

// BodyLength counts characters, not bytes.
func BodyLength(body string) int {
	return utf8.RuneCountInString(body)
}

// PostRequest is the client's "post new message" payload.
type PostRequest struct {
	Author string `json:"author" validate:"required,max=64"`
	Body   string `json:"body" validate:"required"`
}

// EditRequest is the client's "edit message" payload.
type EditRequest struct {
	ID     string `json:"id" validate:"required"`
	Author string `json:"author" validate:"required,max=64"`
	Body   string `json:"body" validate:"required"`
}
