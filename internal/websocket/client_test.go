package websocket

import (
	"encoding/json"
	"testing"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
)

func TestClient_SendEncodesJSON(t *testing.T) {
	c := NewClient(nil, "127.0.0.1", 4)

	if !c.Send(domain.ErrorEvent(domain.ErrRateLimited)) {
		t.Fatal("Send should queue the frame")
	}

	var got domain.Event
	if err := json.Unmarshal(<-c.SendQueue, &got); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	if got.Type != domain.EventError || got.Error.Code != domain.CodeRateLimited {
		t.Errorf("unexpected frame %+v", got)
	}
}

func TestClient_OverflowClosesOnce(t *testing.T) {
	c := NewClient(nil, "127.0.0.1", 1)

	if !c.TrySend([]byte("a")) {
		t.Fatal("first frame should fit")
	}
	if c.TrySend([]byte("b")) {
		t.Error("second frame should overflow")
	}
	if c.TrySend([]byte("c")) {
		t.Error("third frame should overflow")
	}

	<-c.Done()
	if c.TrySend([]byte("d")) {
		t.Error("closed client must refuse frames")
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := NewClient(nil, "127.0.0.1", 1)
	c.Close()
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Error("done should be closed")
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{name: "Post", data: `{"type":"post","author":"a","body":"b"}`, want: FramePost},
		{name: "Edit", data: `{"type":"edit","id":"1","author":"a","body":"b"}`, want: FrameEdit},
		{name: "Not JSON", data: `hello`, wantErr: true},
		{name: "Missing type", data: `{"author":"a"}`, wantErr: true},
		{name: "Unknown type", data: `{"type":"delete","id":"1"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := decodeFrame([]byte(tt.data))
			if tt.wantErr {
				if domain.ErrorCode(err) != domain.CodeInvalidMessage {
					t.Errorf("expected invalid_message, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Type != tt.want {
				t.Errorf("Type = %s, want %s", f.Type, tt.want)
			}
		})
	}
}
