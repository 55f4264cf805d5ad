package domain

import (
	"bytes"
	"encoding/json"
)

// Push message types interpreted by the client.
const (
	// MessageTypeHPUpdate carries an HPUpdate payload.
	MessageTypeHPUpdate = "hp_update"
)

// PushMessage is the envelope of every frame sent on the live channel.
// Data is kept raw; only listeners that understand Type decode it.
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HPUpdate is the payload of an hp_update message.
// Absent fields are left untouched when merged into a snapshot.
type HPUpdate struct {
	CurrentHp *int `json:"currentHp,omitempty"`
	Hp        *int `json:"hp,omitempty"`
}

// ParsePushMessage decodes a raw frame into a PushMessage.
// Frames that are not a JSON object with a non-empty type are rejected.
func ParsePushMessage(frame []byte) (PushMessage, error) {
	var msg PushMessage
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return msg, ErrMalformedMessage.WithDetails("frame is not a JSON object")
	}
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return msg, ErrMalformedMessage.WithCause(err)
	}
	if msg.Type == "" {
		return msg, ErrMalformedMessage.WithDetails("missing type")
	}
	return msg, nil
}

// DecodeHPUpdate decodes the data of an hp_update message.
func (m PushMessage) DecodeHPUpdate() (HPUpdate, error) {
	var upd HPUpdate
	if m.Type != MessageTypeHPUpdate {
		return upd, ErrInvalidArgument.WithDetails("not an hp_update message: " + m.Type)
	}
	if len(m.Data) == 0 {
		return upd, ErrMalformedMessage.WithDetails("hp_update without data")
	}
	if err := json.Unmarshal(m.Data, &upd); err != nil {
		return upd, ErrMalformedMessage.WithCause(err)
	}
	if upd.CurrentHp == nil && upd.Hp == nil {
		return upd, ErrMalformedMessage.WithDetails("hp_update carries no hp fields")
	}
	return upd, nil
}
