package history

import (
	"context"
	"errors"
	"sort"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
)

var (
	ErrUnknownBackend = errors.New("unknown history backend")
	ErrStoreClosed    = errors.New("history store closed")
)

// Reader is the replay side of the store consumed by the hub.
type Reader interface {
	// Recent returns up to limit messages, newest first.
	Recent(ctx context.Context, limit int) ([]domain.ChatMessage, error)
}

// Store is the durable, append-only chat log. Writes may fail independently
// of live delivery; callers never wait on them before broadcasting.
type Store interface {
	Reader
	// Append records a new message. Appending an id that already exists is a no-op.
	Append(ctx context.Context, msg domain.ChatMessage) error
	// Update replaces body and edited_at of an existing record. Unknown ids are ignored.
	Update(ctx context.Context, msg domain.ChatMessage) error
	Ping(ctx context.Context) error
	Close() error
}

// Chronological returns msgs ordered oldest first by CreatedAt, ties broken by ID.
// The input is left untouched.
func Chronological(msgs []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
