package protocol

import (
	"encoding/base64"

	"dominicbreuker/pollcat/pkg/engine"
	"dominicbreuker/pollcat/pkg/transport"
)

// encodeOutcome renders the result of a finished task. Receive tasks yield
// their data in base64, read-message tasks a tagged message, all others a
// label.
func encodeOutcome(out engine.Outcome) string {
	switch out.Kind {
	case engine.KindConnect:
		return LabelConnected
	case engine.KindSend, engine.KindSendMessage:
		return LabelSent
	case engine.KindRecvExact, engine.KindRecvUntil, engine.KindRecvEnd:
		return base64.StdEncoding.EncodeToString(out.Data)
	case engine.KindReadMessage:
		return encodeMessage(out.Message)
	default:
		return StatusOK
	}
}

func encodeMessage(msg *transport.Message) string {
	if msg == nil {
		return TagBinary
	}
	if msg.Type == transport.MessageText {
		return TagText + string(msg.Data)
	}
	return TagBinary + base64.StdEncoding.EncodeToString(msg.Data)
}
