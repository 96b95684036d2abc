package bdx

import "encoding/binary"

// This file holds the nine BDX message codecs. Every codec is a pure
// function: it neither logs nor allocates beyond what the caller supplies
// or what it must return, and decoders return slices that alias the input
// buffer — the caller must keep that buffer alive for as long as the
// decoded value is used.

// TransferInit is the common shape of SendInit and ReceiveInit; which one a
// given instance represents is a property of which message type it was
// decoded from, not of the struct itself.
type TransferInit struct {
	ProposedOptions    TransferControlFlags
	DefiniteLength     bool
	StartOffsetPresent bool
	WideRange          bool
	Version            uint8
	MaxBlockSize       uint16
	StartOffset        uint64
	MaxLength          uint64
	FileDesignator     []byte
	Metadata           []byte
}

// minTransferInitLen is version(1) + ctl-flags(1) + max_block_size(2) +
// start_offset(4) + max_length(4) + file_designator_len(2), the narrow-width
// floor with an empty file designator and no metadata.
const minTransferInitLen = 1 + 1 + 2 + 4 + 4 + 2

func widthFor(wideRange bool) int {
	if wideRange {
		return 8
	}
	return 4
}

func putUintWidth(buf []byte, v uint64, wide bool) {
	if wide {
		binary.LittleEndian.PutUint64(buf, v)
		return
	}
	binary.LittleEndian.PutUint32(buf, uint32(v))
}

func getUintWidth(buf []byte, wide bool) uint64 {
	if wide {
		return binary.LittleEndian.Uint64(buf)
	}
	return uint64(binary.LittleEndian.Uint32(buf))
}

// EncodeTransferInit encodes a SendInit or ReceiveInit payload (the two
// share an identical wire shape; the message type lives in the header).
func EncodeTransferInit(msg TransferInit) ([]byte, error) {
	width := widthFor(msg.WideRange)
	size := 1 + 1 + 2 + width + width + 2 + len(msg.FileDesignator) + len(msg.Metadata)
	buf := make([]byte, size)

	ctl := msg.ProposedOptions.WithRangeBits(msg.DefiniteLength, msg.StartOffsetPresent, msg.WideRange)
	buf[0] = msg.Version
	buf[1] = ctl.Raw()
	binary.LittleEndian.PutUint16(buf[2:4], msg.MaxBlockSize)
	off := 4
	putUintWidth(buf[off:off+width], msg.StartOffset, msg.WideRange)
	off += width
	length := msg.MaxLength
	if !msg.DefiniteLength {
		length = 0
	}
	putUintWidth(buf[off:off+width], length, msg.WideRange)
	off += width
	if len(msg.FileDesignator) > 0xFFFF {
		return nil, ErrInvalidArgument
	}
	binary.LittleEndian.PutUint16(buf[off:off+2], uint16(len(msg.FileDesignator)))
	off += 2
	off += copy(buf[off:], msg.FileDesignator)
	copy(buf[off:], msg.Metadata)
	return buf, nil
}

// DecodeTransferInit parses a SendInit or ReceiveInit payload. The returned
// FileDesignator and Metadata slices alias buf.
func DecodeTransferInit(buf []byte) (TransferInit, error) {
	var msg TransferInit
	if len(buf) < minTransferInitLen {
		return msg, StatusBadMessageContents
	}
	version := buf[0]
	ctlRaw := buf[1]
	if ctlRaw&initReservedMask != 0 {
		return msg, StatusBadMessageContents
	}
	ctl := transferControlFlagsFromRaw(ctlRaw)
	wideRange := ctl.wideRange()
	width := widthFor(wideRange)

	fixedLen := 1 + 1 + 2 + width + width + 2
	if len(buf) < fixedLen {
		return msg, StatusBadMessageContents
	}

	maxBlockSize := binary.LittleEndian.Uint16(buf[2:4])
	off := 4
	startOffset := getUintWidth(buf[off:off+width], wideRange)
	off += width
	maxLength := getUintWidth(buf[off:off+width], wideRange)
	off += width
	fdLen := int(binary.LittleEndian.Uint16(buf[off : off+2]))
	off += 2
	if len(buf) < off+fdLen {
		return msg, StatusBadMessageContents
	}
	fileDesignator := buf[off : off+fdLen]
	off += fdLen
	metadata := buf[off:]

	msg = TransferInit{
		ProposedOptions:    transferControlFlagsFromRaw(ctl.DriveBits()),
		DefiniteLength:     ctl.definiteLength(),
		StartOffsetPresent: ctl.startOffsetPresent(),
		WideRange:          wideRange,
		Version:            version,
		MaxBlockSize:       maxBlockSize,
		StartOffset:        startOffset,
		MaxLength:          maxLength,
		FileDesignator:     fileDesignator,
		Metadata:           metadata,
	}
	return msg, nil
}

// SendAcceptMsg is the payload of a SendAccept message: no offset/length
// fields, since the sending side of a SendInit-initiated transfer already
// knows them.
type SendAcceptMsg struct {
	Mode         ControlMode
	Version      uint8
	MaxBlockSize uint16
	Metadata     []byte
}

const minSendAcceptLen = 1 + 1 + 2

func EncodeSendAccept(msg SendAcceptMsg) []byte {
	buf := make([]byte, minSendAcceptLen+len(msg.Metadata))
	buf[0] = uint8(msg.Mode)
	buf[1] = msg.Version
	binary.LittleEndian.PutUint16(buf[2:4], msg.MaxBlockSize)
	copy(buf[4:], msg.Metadata)
	return buf
}

func DecodeSendAccept(buf []byte) (SendAcceptMsg, error) {
	var msg SendAcceptMsg
	if len(buf) < minSendAcceptLen {
		return msg, StatusBadMessageContents
	}
	if buf[0]&^acceptValidMask != 0 {
		return msg, StatusBadMessageContents
	}
	msg.Mode = ControlMode(buf[0])
	msg.Version = buf[1]
	msg.MaxBlockSize = binary.LittleEndian.Uint16(buf[2:4])
	msg.Metadata = buf[4:]
	return msg, nil
}

// ReceiveAcceptMsg is the payload of a ReceiveAccept message. Its
// start_offset/length field width is not self-describing on the wire (there
// is no WideRange bit in an Accept's ctl-flags byte); callers supply the
// width negotiated during the initiating TransferInit.
type ReceiveAcceptMsg struct {
	Mode         ControlMode
	Version      uint8
	MaxBlockSize uint16
	StartOffset  uint64
	Length       uint64
	Metadata     []byte
}

func EncodeReceiveAccept(msg ReceiveAcceptMsg, wideRange bool) []byte {
	width := widthFor(wideRange)
	buf := make([]byte, 1+1+2+width+width+len(msg.Metadata))
	buf[0] = uint8(msg.Mode)
	buf[1] = msg.Version
	binary.LittleEndian.PutUint16(buf[2:4], msg.MaxBlockSize)
	off := 4
	putUintWidth(buf[off:off+width], msg.StartOffset, wideRange)
	off += width
	putUintWidth(buf[off:off+width], msg.Length, wideRange)
	off += width
	copy(buf[off:], msg.Metadata)
	return buf
}

func DecodeReceiveAccept(buf []byte, wideRange bool) (ReceiveAcceptMsg, error) {
	var msg ReceiveAcceptMsg
	width := widthFor(wideRange)
	fixedLen := 1 + 1 + 2 + width + width
	if len(buf) < fixedLen {
		return msg, StatusBadMessageContents
	}
	if buf[0]&^acceptValidMask != 0 {
		return msg, StatusBadMessageContents
	}
	msg.Mode = ControlMode(buf[0])
	msg.Version = buf[1]
	msg.MaxBlockSize = binary.LittleEndian.Uint16(buf[2:4])
	off := 4
	msg.StartOffset = getUintWidth(buf[off:off+width], wideRange)
	off += width
	msg.Length = getUintWidth(buf[off:off+width], wideRange)
	off += width
	msg.Metadata = buf[off:]
	return msg, nil
}

// CounterMsg is the shared payload shape of BlockQuery, BlockAck and
// BlockAckEOF: a single 32-bit counter, nothing else.
type CounterMsg struct {
	BlockCounter uint32
}

const counterMsgLen = 4

func EncodeCounterMsg(msg CounterMsg) []byte {
	buf := make([]byte, counterMsgLen)
	binary.LittleEndian.PutUint32(buf, msg.BlockCounter)
	return buf
}

func DecodeCounterMsg(buf []byte) (CounterMsg, error) {
	var msg CounterMsg
	if len(buf) < counterMsgLen {
		return msg, StatusBadMessageContents
	}
	msg.BlockCounter = binary.LittleEndian.Uint32(buf[:counterMsgLen])
	return msg, nil
}

// BlockDataMsg is the shared payload shape of Block and BlockEOF: a counter
// followed by the raw block data (which may be empty for BlockEOF).
type BlockDataMsg struct {
	BlockCounter uint32
	Data         []byte
}

func EncodeBlockDataMsg(msg BlockDataMsg) []byte {
	buf := make([]byte, counterMsgLen+len(msg.Data))
	binary.LittleEndian.PutUint32(buf[:counterMsgLen], msg.BlockCounter)
	copy(buf[counterMsgLen:], msg.Data)
	return buf
}

func DecodeBlockDataMsg(buf []byte) (BlockDataMsg, error) {
	var msg BlockDataMsg
	if len(buf) < counterMsgLen {
		return msg, StatusBadMessageContents
	}
	msg.BlockCounter = binary.LittleEndian.Uint32(buf[:counterMsgLen])
	msg.Data = buf[counterMsgLen:]
	return msg, nil
}
