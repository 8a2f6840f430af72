package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
)

const (
	FramePost = "post"
	FrameEdit = "edit"
)

// Frame is a client-to-hub message.
type Frame struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: frame is not valid JSON", domain.ErrInvalidMessage)
	}
	switch f.Type {
	case FramePost, FrameEdit:
		return f, nil
	case "":
		return Frame{}, fmt.Errorf("%w: frame type is required", domain.ErrInvalidMessage)
	default:
		return Frame{}, fmt.Errorf("%w: unknown frame type %q", domain.ErrInvalidMessage, f.Type)
	}
}

func (f Frame) post() domain.PostRequest {
	return domain.PostRequest{Author: f.Author, Body: f.Body}
}

func (f Frame) edit() domain.EditRequest {
	return domain.EditRequest{ID: f.ID, Author: f.Author, Body: f.Body}
}
