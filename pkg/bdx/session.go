package bdx

import log "github.com/sirupsen/logrus"

// ProtocolVersion is the BDX protocol version this package implements. The
// effective version of a transfer is min(ProtocolVersion, peer's version);
// no behavior currently diverges by version.
const ProtocolVersion uint8 = 0

// Role identifies which end of a transfer this session drives.
type Role uint8

const (
	RoleSender Role = iota + 1
	RoleReceiver
)

func (r Role) String() string {
	switch r {
	case RoleSender:
		return "Sender"
	case RoleReceiver:
		return "Receiver"
	default:
		return "Unknown"
	}
}

// State is the session's position in its lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateAwaitingInit
	StateAwaitingAccept
	StateNegotiateParams
	StateInProgress
	StateAwaitingEOFAck
	StateReceivedEOF
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingInit:
		return "AwaitingInit"
	case StateAwaitingAccept:
		return "AwaitingAccept"
	case StateNegotiateParams:
		return "NegotiateParams"
	case StateInProgress:
		return "InProgress"
	case StateAwaitingEOFAck:
		return "AwaitingEOFAck"
	case StateReceivedEOF:
		return "ReceivedEOF"
	case StateDone:
		return "Done"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Session drives one end of a BDX exchange. It owns no socket, no timer and
// no file: callers feed it inbound buffers and a clock reading, and poll it
// for outbound buffers and events. A Session is not safe for concurrent use;
// every entry point must be called from the same logical context.
type Session struct {
	role  Role
	state State

	supportedOpts TransferControlFlags
	controlMode   ControlMode
	version       uint8
	wideRange     bool

	maxSupportedBlockSize uint16
	negotiatedBlockSize   uint16

	startOffset       uint64
	transferLength    uint64
	definiteLength    bool
	numBytesProcessed uint64

	nextBlockNum uint32
	lastBlockNum uint32
	nextQueryNum uint32
	lastQueryNum uint32

	awaitingResponse bool
	timeoutMs        uint32
	timeoutStartMs   uint64

	// requestData is the last TransferInit received, kept alive past the
	// draining of the InitReceived event because AcceptTransfer needs it
	// to validate the chosen mode and block size against what was
	// actually proposed.
	requestData InitData

	pendingEvent Event

	lastErrorDetail string

	log *log.Entry
}

// NewSession constructs an idle session ready for StartTransfer or
// WaitForTransfer.
func NewSession() *Session {
	return &Session{log: log.WithField("component", "bdx")}
}

func isPassiveSide(role Role, mode ControlMode) bool {
	switch mode {
	case ControlModeSenderDrive:
		return role == RoleReceiver
	case ControlModeReceiverDrive:
		return role == RoleSender
	default:
		return false
	}
}

func minUint8(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}

func minUint16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func (s *Session) stageOutbound(msgType MessageType, payload []byte) {
	s.pendingEvent = newMsgToSendEvent(AttachHeader(msgType, payload))
}

// fail stages an InternalError event carrying status and moves the session
// to Error. detail is kept for diagnostics only, never sent on the wire,
// mirroring the teacher's errorExtraInfo pattern.
func (s *Session) fail(status StatusCode, detail string) {
	s.state = StateError
	s.awaitingResponse = false
	s.lastErrorDetail = detail
	s.pendingEvent = newInternalErrorEvent(status)
	s.log.Warnf("[%s][%s] protocol error -> Error: %s (%s)", s.role, s.state, status, detail)
}

func (s *Session) hasPendingOutput() bool {
	return s.pendingEvent.Type != EventNone
}

// StartTransfer begins a transfer with this side as initiator: a Sender
// stages SendInit, a Receiver stages ReceiveInit. Requires Idle.
func (s *Session) StartTransfer(role Role, init InitData, timeoutMs uint32, now uint64) error {
	if s.state != StateIdle {
		return ErrIncorrectState
	}
	if role != RoleSender && role != RoleReceiver {
		return ErrInvalidArgument
	}
	if len(init.FileDesignator) == 0 {
		return ErrInvalidArgument
	}
	wideRange := init.StartOffset > 0xFFFFFFFF || init.Length > 0xFFFFFFFF

	payload, err := EncodeTransferInit(TransferInit{
		ProposedOptions:    init.ProposedOptions,
		DefiniteLength:     init.DefiniteLength,
		StartOffsetPresent: init.StartOffset != 0,
		WideRange:          wideRange,
		Version:            ProtocolVersion,
		MaxBlockSize:       init.MaxBlockSize,
		StartOffset:        init.StartOffset,
		MaxLength:          init.Length,
		FileDesignator:     init.FileDesignator,
		Metadata:           init.Metadata,
	})
	if err != nil {
		return err
	}

	msgType := MessageTypeReceiveInit
	if role == RoleSender {
		msgType = MessageTypeSendInit
	}

	s.role = role
	s.supportedOpts = init.ProposedOptions
	s.maxSupportedBlockSize = init.MaxBlockSize
	s.startOffset = init.StartOffset
	s.transferLength = init.Length
	s.definiteLength = init.DefiniteLength
	s.wideRange = wideRange
	s.timeoutMs = timeoutMs
	s.timeoutStartMs = now
	s.awaitingResponse = true
	s.state = StateAwaitingAccept
	s.stageOutbound(msgType, payload)
	s.log.Debugf("[%s][TX] %s | block_size=%d offset=%d length=%d", role, msgType, init.MaxBlockSize, init.StartOffset, init.Length)
	return nil
}

// WaitForTransfer puts this side in AwaitingInit, ready to receive the
// peer's TransferInit. Requires Idle.
func (s *Session) WaitForTransfer(role Role, supportedOpts TransferControlFlags, maxBlockSize uint16, timeoutMs uint32) error {
	if s.state != StateIdle {
		return ErrIncorrectState
	}
	if role != RoleSender && role != RoleReceiver {
		return ErrInvalidArgument
	}
	s.role = role
	s.supportedOpts = supportedOpts
	s.maxSupportedBlockSize = maxBlockSize
	s.timeoutMs = timeoutMs
	s.state = StateAwaitingInit
	return nil
}

// AcceptTransfer answers a received TransferInit (NegotiateParams state),
// staging SendAccept or ReceiveAccept depending on role.
func (s *Session) AcceptTransfer(accept AcceptData) error {
	if s.hasPendingOutput() {
		return ErrPendingOutputNotDrained
	}
	if s.state != StateNegotiateParams {
		return ErrIncorrectState
	}
	if !s.requestData.ProposedOptions.Has(accept.Mode) {
		return ErrInvalidArgument
	}
	if accept.MaxBlockSize > s.requestData.MaxBlockSize {
		return ErrInvalidArgument
	}
	if accept.Mode == ControlModeAsync {
		return ErrAsyncNotImplemented
	}

	s.controlMode = accept.Mode
	s.negotiatedBlockSize = accept.MaxBlockSize
	s.startOffset = accept.StartOffset
	s.transferLength = accept.Length

	var payload []byte
	var msgType MessageType
	if s.role == RoleReceiver {
		// We received SendInit; reply with SendAccept. It carries no
		// offset/length, the peer already declared them.
		msgType = MessageTypeSendAccept
		payload = EncodeSendAccept(SendAcceptMsg{
			Mode:         accept.Mode,
			Version:      s.version,
			MaxBlockSize: accept.MaxBlockSize,
			Metadata:     accept.Metadata,
		})
	} else {
		msgType = MessageTypeReceiveAccept
		payload = EncodeReceiveAccept(ReceiveAcceptMsg{
			Mode:         accept.Mode,
			Version:      s.version,
			MaxBlockSize: accept.MaxBlockSize,
			StartOffset:  accept.StartOffset,
			Length:       accept.Length,
			Metadata:     accept.Metadata,
		}, s.wideRange)
	}

	s.stageOutbound(msgType, payload)
	s.awaitingResponse = isPassiveSide(s.role, accept.Mode)
	s.state = StateInProgress
	s.log.Debugf("[%s][TX] %s | mode=%s block_size=%d", s.role, msgType, accept.Mode, accept.MaxBlockSize)
	return nil
}

// PrepareBlockQuery stages a BlockQuery. Receiver only, InProgress, not
// already awaiting a response.
func (s *Session) PrepareBlockQuery() error {
	if s.hasPendingOutput() {
		return ErrPendingOutputNotDrained
	}
	if s.role != RoleReceiver {
		return ErrIncorrectRole
	}
	if s.state != StateInProgress {
		return ErrIncorrectState
	}
	if s.awaitingResponse {
		return ErrAwaitingResponse
	}
	counter := s.nextQueryNum
	s.stageOutbound(MessageTypeBlockQuery, EncodeCounterMsg(CounterMsg{BlockCounter: counter}))
	s.lastQueryNum = counter
	s.nextQueryNum = counter + 1
	s.awaitingResponse = true
	return nil
}

// PrepareBlock stages a Block or, when isEOF, a BlockEOF. Sender only,
// InProgress, not already awaiting a response. data may be empty only when
// isEOF is true.
func (s *Session) PrepareBlock(data []byte, isEOF bool) error {
	if s.hasPendingOutput() {
		return ErrPendingOutputNotDrained
	}
	if s.role != RoleSender {
		return ErrIncorrectRole
	}
	if s.state != StateInProgress {
		return ErrIncorrectState
	}
	if s.awaitingResponse {
		return ErrAwaitingResponse
	}
	if len(data) > int(s.negotiatedBlockSize) {
		return ErrInvalidArgument
	}
	if len(data) == 0 && !isEOF {
		return ErrInvalidArgument
	}

	counter := s.nextBlockNum
	msgType := MessageTypeBlock
	if isEOF {
		msgType = MessageTypeBlockEOF
	}
	s.stageOutbound(msgType, EncodeBlockDataMsg(BlockDataMsg{BlockCounter: counter, Data: data}))
	s.lastBlockNum = counter
	s.nextBlockNum = counter + 1
	s.numBytesProcessed += uint64(len(data))
	s.awaitingResponse = true
	if isEOF {
		s.state = StateAwaitingEOFAck
	}
	return nil
}

// PrepareBlockAck stages a BlockAck (InProgress) or a BlockAckEOF
// (ReceivedEOF, which also completes the transfer). Receiver only.
func (s *Session) PrepareBlockAck() error {
	if s.hasPendingOutput() {
		return ErrPendingOutputNotDrained
	}
	if s.role != RoleReceiver {
		return ErrIncorrectRole
	}
	switch s.state {
	case StateInProgress:
		counter := s.lastBlockNum
		s.stageOutbound(MessageTypeBlockAck, EncodeCounterMsg(CounterMsg{BlockCounter: counter}))
		if s.controlMode == ControlModeSenderDrive {
			// Under sender drive the ack doubles as an implicit query:
			// it tells the sender we are ready for the next block.
			s.awaitingResponse = true
			s.lastQueryNum = counter + 1
		}
		return nil
	case StateReceivedEOF:
		counter := s.lastBlockNum
		s.stageOutbound(MessageTypeBlockAckEOF, EncodeCounterMsg(CounterMsg{BlockCounter: counter}))
		s.state = StateDone
		s.awaitingResponse = false
		return nil
	default:
		return ErrIncorrectState
	}
}

// HandleMessageReceived decodes the header of buf, refuses anything not
// carrying the BDX protocol identifier, dispatches the payload by message
// type, and on success resets the timeout window to now. Protocol-level
// validation failures do not return an error: they stage an InternalError
// event and move the session to Error, to be observed through PollOutput.
func (s *Session) HandleMessageReceived(buf []byte, now uint64) error {
	if s.hasPendingOutput() {
		return ErrIncorrectState
	}
	msgType, payload, err := StripHeader(buf)
	if err != nil {
		if err == ErrUnsupportedProtocol {
			return err
		}
		s.fail(StatusBadMessageContents, "malformed header")
		return nil
	}

	var ok bool
	switch msgType {
	case MessageTypeSendInit:
		ok = s.handleTransferInit(true, payload)
	case MessageTypeReceiveInit:
		ok = s.handleTransferInit(false, payload)
	case MessageTypeSendAccept:
		ok = s.handleAccept(true, payload)
	case MessageTypeReceiveAccept:
		ok = s.handleAccept(false, payload)
	case MessageTypeBlockQuery:
		ok = s.handleBlockQuery(payload)
	case MessageTypeBlock:
		ok = s.handleBlock(payload, false)
	case MessageTypeBlockEOF:
		ok = s.handleBlock(payload, true)
	case MessageTypeBlockAck:
		ok = s.handleBlockAck(payload, false)
	case MessageTypeBlockAckEOF:
		ok = s.handleBlockAck(payload, true)
	case MessageTypeStatusReport:
		s.handleStatusReport(buf)
		return nil
	default:
		s.fail(StatusBadMessageContents, "unrecognized message type")
		return nil
	}
	if ok {
		s.timeoutStartMs = now
	}
	return nil
}

func (s *Session) handleTransferInit(isSendInit bool, payload []byte) bool {
	expectedRole := RoleReceiver
	if !isSendInit {
		expectedRole = RoleSender
	}
	if s.role != expectedRole || s.state != StateAwaitingInit {
		s.fail(StatusServerBadState, "TransferInit received in wrong role/state")
		return false
	}
	msg, err := DecodeTransferInit(payload)
	if err != nil {
		s.fail(StatusBadMessageContents, "TransferInit failed to parse")
		return false
	}
	mode, resolved, rerr := Resolve(msg.ProposedOptions, s.supportedOpts)
	if rerr != nil {
		s.fail(StatusTransferMethodNotSupported, "no common drive mode")
		return false
	}
	if resolved {
		if mode == ControlModeAsync {
			s.fail(StatusTransferMethodNotSupported, "resolved to unimplemented async mode")
			return false
		}
		s.controlMode = mode
	}

	s.version = minUint8(ProtocolVersion, msg.Version)
	s.negotiatedBlockSize = minUint16(s.maxSupportedBlockSize, msg.MaxBlockSize)
	s.startOffset = msg.StartOffset
	s.transferLength = msg.MaxLength
	s.definiteLength = msg.DefiniteLength
	s.wideRange = msg.WideRange

	s.requestData = InitData{
		ProposedOptions: msg.ProposedOptions,
		DefiniteLength:  msg.DefiniteLength,
		MaxBlockSize:    msg.MaxBlockSize,
		StartOffset:     msg.StartOffset,
		Length:          msg.MaxLength,
		FileDesignator:  msg.FileDesignator,
		Metadata:        msg.Metadata,
	}
	s.pendingEvent = newInitReceivedEvent(s.requestData, payload)
	s.state = StateNegotiateParams
	s.log.Debugf("[%s][RX] TransferInit | proposed=x%02x block_size=%d", s.role, msg.ProposedOptions.DriveBits(), msg.MaxBlockSize)
	return true
}

func (s *Session) handleAccept(isSendAccept bool, payload []byte) bool {
	expectedRole := RoleSender
	if !isSendAccept {
		expectedRole = RoleReceiver
	}
	if s.role != expectedRole || s.state != StateAwaitingAccept {
		s.fail(StatusServerBadState, "Accept received in wrong role/state")
		return false
	}

	var mode ControlMode
	var maxBlockSize uint16
	var version uint8
	var startOffset, length uint64
	var metadata []byte

	if isSendAccept {
		msg, err := DecodeSendAccept(payload)
		if err != nil {
			s.fail(StatusBadMessageContents, "SendAccept failed to parse")
			return false
		}
		m, verr := Verify(NewTransferControlFlags(msg.Mode), s.supportedOpts)
		if verr != nil {
			s.fail(StatusBadMessageContents, "SendAccept failed verification")
			return false
		}
		mode, maxBlockSize, version, metadata = m, msg.MaxBlockSize, msg.Version, msg.Metadata
		// SendAccept carries no offset/length; it answers a SendInit we
		// issued ourselves, so echo what we already hold.
		startOffset, length = s.startOffset, s.transferLength
	} else {
		msg, err := DecodeReceiveAccept(payload, s.wideRange)
		if err != nil {
			s.fail(StatusBadMessageContents, "ReceiveAccept failed to parse")
			return false
		}
		m, verr := Verify(NewTransferControlFlags(msg.Mode), s.supportedOpts)
		if verr != nil {
			s.fail(StatusBadMessageContents, "ReceiveAccept failed verification")
			return false
		}
		mode, maxBlockSize, version, metadata = m, msg.MaxBlockSize, msg.Version, msg.Metadata
		startOffset, length = msg.StartOffset, msg.Length
	}

	if mode == ControlModeAsync {
		s.fail(StatusTransferMethodNotSupported, "accept resolved to unimplemented async mode")
		return false
	}

	s.controlMode = mode
	s.negotiatedBlockSize = maxBlockSize
	s.startOffset = startOffset
	s.transferLength = length
	s.version = minUint8(ProtocolVersion, version)

	s.pendingEvent = newAcceptReceivedEvent(AcceptData{
		Mode:         mode,
		MaxBlockSize: maxBlockSize,
		StartOffset:  startOffset,
		Length:       length,
		Metadata:     metadata,
	}, payload)
	s.awaitingResponse = isPassiveSide(s.role, mode)
	s.state = StateInProgress
	return true
}

func (s *Session) handleBlockQuery(payload []byte) bool {
	if s.role != RoleSender || s.state != StateInProgress || !s.awaitingResponse {
		s.fail(StatusServerBadState, "BlockQuery received in wrong role/state")
		return false
	}
	msg, err := DecodeCounterMsg(payload)
	if err != nil {
		s.fail(StatusBadMessageContents, "BlockQuery failed to parse")
		return false
	}
	if msg.BlockCounter != s.nextBlockNum {
		s.fail(StatusBadBlockCounter, "BlockQuery counter mismatch")
		return false
	}
	s.awaitingResponse = false
	s.pendingEvent = newQueryReceivedEvent()
	return true
}

func (s *Session) handleBlock(payload []byte, isEOF bool) bool {
	if s.role != RoleReceiver || s.state != StateInProgress || !s.awaitingResponse {
		s.fail(StatusServerBadState, "Block received in wrong role/state")
		return false
	}
	msg, err := DecodeBlockDataMsg(payload)
	if err != nil {
		s.fail(StatusBadMessageContents, "Block failed to parse")
		return false
	}
	if msg.BlockCounter != s.lastQueryNum {
		s.fail(StatusBadBlockCounter, "Block counter mismatch")
		return false
	}
	length := len(msg.Data)
	if length > int(s.negotiatedBlockSize) {
		s.fail(StatusBadMessageContents, "block exceeds negotiated size")
		return false
	}
	if length == 0 && !isEOF {
		s.fail(StatusBadMessageContents, "empty block outside of EOF")
		return false
	}
	if !isEOF && s.definiteLength && s.numBytesProcessed+uint64(length) > s.transferLength {
		s.fail(StatusLengthMismatch, "block would exceed declared transfer length")
		return false
	}

	s.lastBlockNum = msg.BlockCounter
	s.numBytesProcessed += uint64(length)
	s.awaitingResponse = false
	s.pendingEvent = newBlockReceivedEvent(BlockEventData{Data: msg.Data, IsEOF: isEOF}, payload)
	if isEOF {
		s.state = StateReceivedEOF
	}
	return true
}

func (s *Session) handleBlockAck(payload []byte, isEOF bool) bool {
	if s.role != RoleSender {
		s.fail(StatusServerBadState, "BlockAck received by non-sender")
		return false
	}
	if isEOF {
		if s.state != StateAwaitingEOFAck || !s.awaitingResponse {
			s.fail(StatusServerBadState, "BlockAckEOF received in wrong state")
			return false
		}
	} else if s.state != StateInProgress || !s.awaitingResponse {
		s.fail(StatusServerBadState, "BlockAck received in wrong state")
		return false
	}

	msg, err := DecodeCounterMsg(payload)
	if err != nil {
		s.fail(StatusBadMessageContents, "BlockAck failed to parse")
		return false
	}
	if msg.BlockCounter != s.lastBlockNum {
		s.fail(StatusBadBlockCounter, "BlockAck counter mismatch")
		return false
	}

	if isEOF {
		s.state = StateDone
		s.awaitingResponse = false
		s.pendingEvent = newAckEOFReceivedEvent()
		return true
	}
	// Under ReceiverDrive a BlockQuery must still follow, so keep waiting.
	// Under SenderDrive this ack is the passive side's readiness signal and
	// does not by itself demand another reply.
	s.awaitingResponse = s.controlMode == ControlModeReceiverDrive
	s.pendingEvent = newAckReceivedEvent()
	return true
}

func (s *Session) handleStatusReport(rawBuf []byte) {
	// Parsing the peer's StatusReport body is out of scope; the raw buffer
	// is exposed as-is and the session terminates.
	s.state = StateError
	s.awaitingResponse = false
	s.pendingEvent = newStatusReceivedEvent(StatusUnknown, rawBuf)
	s.log.Warnf("[%s] received peer StatusReport, entering Error", s.role)
}

// AbortTransfer moves the session directly to Error. Staging an outbound
// StatusReport for the peer is not implemented: its wire content is not
// defined by this package.
func (s *Session) AbortTransfer(status StatusCode) error {
	if s.state == StateIdle || s.state == StateDone || s.state == StateError {
		return ErrIncorrectState
	}
	s.state = StateError
	s.awaitingResponse = false
	s.pendingEvent = newInternalErrorEvent(status)
	s.log.Warnf("[%s] aborted: %s", s.role, status)
	return nil
}

// PollOutput returns and clears the single staged item, or detects a timeout
// if none is staged and the session has been awaiting a response for too
// long, or EventNone otherwise.
func (s *Session) PollOutput(now uint64) Event {
	if s.hasPendingOutput() {
		ev := s.pendingEvent
		s.pendingEvent = eventNone()
		if ev.Type == EventMsgToSend {
			s.timeoutStartMs = now
		}
		return ev
	}
	if s.awaitingResponse && s.timeoutMs > 0 && now >= s.timeoutStartMs+uint64(s.timeoutMs) {
		s.state = StateError
		s.awaitingResponse = false
		s.log.Warnf("[%s] timed out after %dms", s.role, s.timeoutMs)
		return newTransferTimeoutEvent()
	}
	return eventNone()
}

// Reset returns the session to Idle with all counters, flags and buffers
// cleared. The resulting session behaves identically to a freshly
// constructed one.
func (s *Session) Reset() {
	logger := s.log
	*s = Session{}
	s.log = logger
	s.state = StateIdle
}

// State reports the session's current lifecycle position.
func (s *Session) State() State { return s.state }

// Role reports which side of the transfer this session drives.
func (s *Session) Role() Role { return s.role }

// ControlMode reports the resolved drive mode, or ControlModeNotSpecified
// before negotiation completes.
func (s *Session) ControlMode() ControlMode { return s.controlMode }

// BytesProcessed reports how many bytes have been sent or received so far.
func (s *Session) BytesProcessed() uint64 { return s.numBytesProcessed }

// NegotiatedBlockSize reports the block size agreed during AcceptTransfer or
// the handling of a peer's Accept, or 0 before that point.
func (s *Session) NegotiatedBlockSize() uint16 { return s.negotiatedBlockSize }
