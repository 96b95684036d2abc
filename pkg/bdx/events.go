package bdx

// EventType tags the single value PollOutput can return at a time, in place
// of the mutable-struct-plus-discriminator pattern the protocol this models
// was originally built around.
type EventType uint8

const (
	EventNone EventType = iota
	EventMsgToSend
	EventInitReceived
	EventAcceptReceived
	EventQueryReceived
	EventBlockReceived
	EventAckReceived
	EventAckEOFReceived
	EventStatusReceived
	EventInternalError
	EventTransferTimeout
)

func (t EventType) String() string {
	switch t {
	case EventNone:
		return "None"
	case EventMsgToSend:
		return "MsgToSend"
	case EventInitReceived:
		return "InitReceived"
	case EventAcceptReceived:
		return "AcceptReceived"
	case EventQueryReceived:
		return "QueryReceived"
	case EventBlockReceived:
		return "BlockReceived"
	case EventAckReceived:
		return "AckReceived"
	case EventAckEOFReceived:
		return "AckEOFReceived"
	case EventStatusReceived:
		return "StatusReceived"
	case EventInternalError:
		return "InternalError"
	case EventTransferTimeout:
		return "TransferTimeout"
	default:
		return "Unknown"
	}
}

// InitData is the request_data payload of an InitReceived event: the
// proposed parameters of a peer's SendInit or ReceiveInit, decoded but not
// yet acted upon.
type InitData struct {
	ProposedOptions TransferControlFlags
	DefiniteLength  bool
	MaxBlockSize    uint16
	StartOffset     uint64
	Length          uint64
	FileDesignator  []byte
	Metadata        []byte
}

// AcceptData is the accept_data payload of an AcceptReceived event, and also
// the shape a host passes into AcceptTransfer to answer an InitReceived.
type AcceptData struct {
	Mode         ControlMode
	MaxBlockSize uint16
	StartOffset  uint64
	Length       uint64
	Metadata     []byte
}

// BlockEventData is the block_event_data payload of a BlockReceived event.
type BlockEventData struct {
	Data  []byte
	IsEOF bool
}

// StatusData is the status_data payload of a StatusReceived or InternalError
// event.
type StatusData struct {
	Error StatusCode
}

// Event is the single value PollOutput returns. Only the fields relevant to
// Type are meaningful; Message transfers ownership of any buffer still
// pinned by the session to the caller.
type Event struct {
	Type       EventType
	Message    []byte
	Init       InitData
	Accept     AcceptData
	Block      BlockEventData
	Status     StatusData
}

func eventNone() Event {
	return Event{Type: EventNone}
}

func newMsgToSendEvent(buf []byte) Event {
	return Event{Type: EventMsgToSend, Message: buf}
}

func newInitReceivedEvent(data InitData, buf []byte) Event {
	return Event{Type: EventInitReceived, Init: data, Message: buf}
}

func newAcceptReceivedEvent(data AcceptData, buf []byte) Event {
	return Event{Type: EventAcceptReceived, Accept: data, Message: buf}
}

func newQueryReceivedEvent() Event {
	return Event{Type: EventQueryReceived}
}

func newBlockReceivedEvent(data BlockEventData, buf []byte) Event {
	return Event{Type: EventBlockReceived, Block: data, Message: buf}
}

func newAckReceivedEvent() Event {
	return Event{Type: EventAckReceived}
}

func newAckEOFReceivedEvent() Event {
	return Event{Type: EventAckEOFReceived}
}

func newStatusReceivedEvent(status StatusCode, buf []byte) Event {
	return Event{Type: EventStatusReceived, Status: StatusData{Error: status}, Message: buf}
}

func newInternalErrorEvent(status StatusCode) Event {
	return Event{Type: EventInternalError, Status: StatusData{Error: status}}
}

func newTransferTimeoutEvent() Event {
	return Event{Type: EventTransferTimeout}
}
