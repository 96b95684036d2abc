package bdx

import "errors"

// Operational errors: returned to the caller of a host-initiated entry point
// when a precondition fails. Session state is left unchanged. Modeled on the
// teacher's package-scope sentinel errors (see root errors.go).
var (
	// ErrIncorrectState is returned when an operation is invoked while the
	// session is in a state that does not permit it, including the
	// lock-step violation of calling HandleMessageReceived before the
	// previous pending output has been drained.
	ErrIncorrectState = errors.New("bdx: operation not valid in current session state")

	// ErrIncorrectRole is returned when an operation is invoked by the
	// side (sender/receiver) that does not own it.
	ErrIncorrectRole = errors.New("bdx: operation not valid for this session's role")

	// ErrPendingOutputNotDrained is returned when a host-initiated call
	// requires an empty pending_output slot and one is already staged.
	ErrPendingOutputNotDrained = errors.New("bdx: pending output must be polled before this operation")

	// ErrAwaitingResponse is returned by Prepare* calls made while the
	// session is still waiting on a peer reply.
	ErrAwaitingResponse = errors.New("bdx: cannot prepare output while awaiting a response")

	// ErrNotAwaitingResponse names a call made outside the window in which
	// a response is awaited. No Session entry point returns it.
	ErrNotAwaitingResponse = errors.New("bdx: session is not awaiting a response")

	// ErrInvalidArgument covers null/zero-length/oversized arguments to a
	// host-initiated call (oversized block data, empty file designator,
	// chosen mode absent from the proposed set, and similar).
	ErrInvalidArgument = errors.New("bdx: invalid argument")

	// ErrNoOutputPending names the case of nothing being staged. No Session
	// entry point returns it: PollOutput reports that case with an EventNone
	// event instead.
	ErrNoOutputPending = errors.New("bdx: no output pending")

	// ErrUnsupportedProtocol is returned when an inbound buffer does not
	// carry the BDX protocol identifier in its header.
	ErrUnsupportedProtocol = errors.New("bdx: message does not carry the bdx protocol identifier")

	// ErrAsyncNotImplemented is returned by AcceptTransfer when the chosen
	// drive mode is Async, which this package recognizes during
	// negotiation but does not implement. An inbound Init or Accept that
	// resolves to Async is not reported through this error: it stages an
	// InternalError event with StatusTransferMethodNotSupported.
	ErrAsyncNotImplemented = errors.New("bdx: async drive mode is not implemented")
)
