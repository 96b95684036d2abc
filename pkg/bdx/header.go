package bdx

// The header layer is, per scope, opaque to the core: a transport or
// exchange above this package is free to use a richer payload header. What
// the core requires is the ability to reserve header bytes ahead of a
// payload on the way out and to strip them on the way in, so it ships a
// minimal two-byte header of its own (protocol identifier, message type)
// good enough to drive the codecs and the examples in cmd/bdxhost.

// ProtocolID identifies BDX in the opaque header prefix.
const ProtocolID uint8 = 0x13

// MessageType enumerates the nine BDX wire messages plus the host-level
// StatusReport type carried in the same header space.
type MessageType uint8

const (
	MessageTypeSendInit      MessageType = 0x01
	MessageTypeSendAccept    MessageType = 0x02
	MessageTypeReceiveInit   MessageType = 0x04
	MessageTypeReceiveAccept MessageType = 0x05
	MessageTypeBlockQuery    MessageType = 0x10
	MessageTypeBlock         MessageType = 0x11
	MessageTypeBlockEOF      MessageType = 0x12
	MessageTypeBlockAck      MessageType = 0x13
	MessageTypeBlockAckEOF   MessageType = 0x14
	MessageTypeStatusReport  MessageType = 0xFF
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeSendInit:
		return "SendInit"
	case MessageTypeSendAccept:
		return "SendAccept"
	case MessageTypeReceiveInit:
		return "ReceiveInit"
	case MessageTypeReceiveAccept:
		return "ReceiveAccept"
	case MessageTypeBlockQuery:
		return "BlockQuery"
	case MessageTypeBlock:
		return "Block"
	case MessageTypeBlockEOF:
		return "BlockEOF"
	case MessageTypeBlockAck:
		return "BlockAck"
	case MessageTypeBlockAckEOF:
		return "BlockAckEOF"
	case MessageTypeStatusReport:
		return "StatusReport"
	default:
		return "Unknown"
	}
}

const headerLen = 2

// AttachHeader prepends the two-byte protocol/message-type header ahead of
// payload and returns the combined buffer. It always allocates a new slice;
// payload is not retained.
func AttachHeader(msgType MessageType, payload []byte) []byte {
	out := make([]byte, headerLen+len(payload))
	out[0] = ProtocolID
	out[1] = byte(msgType)
	copy(out[headerLen:], payload)
	return out
}

// StripHeader validates and removes the header prefix, returning the
// message type and the remaining payload, which aliases buf.
func StripHeader(buf []byte) (MessageType, []byte, error) {
	if len(buf) < headerLen {
		return 0, nil, StatusBadMessageContents
	}
	if buf[0] != ProtocolID {
		return 0, nil, ErrUnsupportedProtocol
	}
	return MessageType(buf[1]), buf[headerLen:], nil
}
