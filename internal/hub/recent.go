package hub

import "github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"

// recent holds the last accepted messages in acceptance order, edits applied
// in place. Not safe for concurrent use; the hub lock guards it.
type recent struct {
	msgs []domain.ChatMessage
	size int
}

func newRecent(size int) *recent {
	return &recent{msgs: make([]domain.ChatMessage, 0, size), size: size}
}

func (r *recent) add(msg domain.ChatMessage) {
	if r.size <= 0 {
		return
	}
	if r.index(msg.ID) >= 0 {
		return
	}
	if len(r.msgs) == r.size {
		copy(r.msgs, r.msgs[1:])
		r.msgs = r.msgs[:len(r.msgs)-1]
	}
	r.msgs = append(r.msgs, msg)
}

// update applies an edit and reports whether the id was held.
func (r *recent) update(msg domain.ChatMessage) bool {
	i := r.index(msg.ID)
	if i < 0 {
		return false
	}
	r.msgs[i].Body = msg.Body
	r.msgs[i].EditedAt = msg.EditedAt
	return true
}

func (r *recent) get(id string) (domain.ChatMessage, bool) {
	i := r.index(id)
	if i < 0 {
		return domain.ChatMessage{}, false
	}
	return r.msgs[i], true
}

func (r *recent) all() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (r *recent) index(id string) int {
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].ID == id {
			return i
		}
	}
	return -1
}
