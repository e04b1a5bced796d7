package tabsync

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/picasync/internal/shared"
)

// MessageKind tags state update messages on the wire.
const MessageKind = "PICASYNC_WINDOW_SYNC"

// Message carries a filtered projection of one store's state.
type Message struct {
	Kind      string                     `json:"type"`
	StoreID   string                     `json:"storeId"`
	State     map[string]json.RawMessage `json:"state"`
	Timestamp int64                      `json:"timestamp"`
	OriginID  string                     `json:"originId"`
}

// Validate checks the shape of an inbound message.
func (m Message) Validate() error {
	switch {
	case m.Kind != MessageKind:
		return fmt.Errorf("%w: unexpected type %q", shared.ErrMalformedMessage, m.Kind)
	case m.StoreID == "":
		return fmt.Errorf("%w: missing storeId", shared.ErrMalformedMessage)
	case m.OriginID == "":
		return fmt.Errorf("%w: missing originId", shared.ErrMalformedMessage)
	case m.State == nil:
		return fmt.Errorf("%w: missing state", shared.ErrMalformedMessage)
	}
	return nil
}

// Encode serializes m. The payload shares no memory with m.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sync message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses and validates a payload.
func DecodeMessage(payload []byte) (Message, error) {
	var m Message
	if len(bytes.TrimSpace(payload)) == 0 {
		return m, fmt.Errorf("%w: empty payload", shared.ErrMalformedMessage)
	}
	if err := json.Unmarshal(payload, &m); err != nil {
		return m, fmt.Errorf("%w: %v", shared.ErrMalformedMessage, err)
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}
