package transport

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// MessageType is the type of a WebSocket data message.
type MessageType int

const (
	// MessageText is a UTF-8 text message.
	MessageText MessageType = iota + 1
	// MessageBinary is a binary message.
	MessageBinary
)

func (m MessageType) String() string {
	switch m {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return fmt.Sprintf("MessageType(%d)", int(m))
	}
}

// Message is a single WebSocket data message.
type Message struct {
	Type MessageType
	Data []byte
}

func (m MessageType) wire() (websocket.MessageType, error) {
	switch m {
	case MessageText:
		return websocket.MessageText, nil
	case MessageBinary:
		return websocket.MessageBinary, nil
	default:
		return 0, fmt.Errorf("unsupported message type: %s", m)
	}
}

// SendMessage writes one WebSocket message, bounded by the write timeout.
func (t *Transport) SendMessage(msg Message) error {
	if t.ws == nil {
		return ErrNotWebSocket
	}
	typ, err := msg.Type.wire()
	if err != nil {
		return err
	}
	if err := t.ws.Write(context.Background(), typ, msg.Data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// ReadMessage reads the next WebSocket data message. The read timeout limits
// how long the peer may stay idle while the message is read.
func (t *Transport) ReadMessage() (Message, error) {
	if t.ws == nil {
		return Message{}, ErrNotWebSocket
	}

	typ, data, err := t.ws.Read(context.Background())
	if err != nil {
		return Message{}, fmt.Errorf("websocket read: %w", err)
	}

	msg := Message{Type: MessageBinary, Data: data}
	if typ == websocket.MessageText {
		msg.Type = MessageText
	}
	return msg, nil
}
