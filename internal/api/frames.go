package api

import "encoding/json"

// Realtime event names.
const (
	EventNewMessage = "newMessage"
	EventJoinChat   = "joinChat"
	EventLeaveChat  = "leaveChat"
	EventError      = "error"
)

// Frame is one websocket text frame in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessageEvent is the payload of a newMessage frame.
type NewMessageEvent struct {
	ChatID  string  `json:"chatId"`
	Message Message `json:"message"`
}

// ChatRef is the payload of joinChat and leaveChat frames.
type ChatRef struct {
	ChatID string `json:"chatId"`
}

// NewFrame marshals data into a frame for event.
func NewFrame(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}
