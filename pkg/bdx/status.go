package bdx

import "fmt"

// StatusCode is a BDX protocol status, used both to surface an internal
// protocol error and as the (currently unparsed) body of a peer StatusReport.
// Values are pinned to the wire values of the protocol this package
// implements; they must not be renumbered.
type StatusCode uint32

const (
	StatusOverflow                   StatusCode = 0x0011
	StatusLengthTooLarge             StatusCode = 0x0012
	StatusLengthTooShort             StatusCode = 0x0013
	StatusLengthMismatch             StatusCode = 0x0014
	StatusLengthRequired             StatusCode = 0x0015
	StatusBadMessageContents         StatusCode = 0x0016
	StatusBadBlockCounter            StatusCode = 0x0017
	StatusTransferFailedUnknownError StatusCode = 0x001F
	StatusServerBadState             StatusCode = 0x0020
	StatusFailureToSend              StatusCode = 0x0021
	StatusTransferMethodNotSupported StatusCode = 0x0050
	StatusFileDesignatorUnknown      StatusCode = 0x0051
	StatusStartOffsetNotSupported    StatusCode = 0x0052
	StatusVersionNotSupported        StatusCode = 0x0053
	StatusUnknown                    StatusCode = 0x005F
)

// statusDescriptionMap mirrors the teacher's AbortCodeDescriptionMap: a
// lookup table kept separate from the constant declarations so new codes can
// be added without touching Description.
var statusDescriptionMap = map[StatusCode]string{
	StatusOverflow:                   "received data overflowed an internal buffer",
	StatusLengthTooLarge:             "declared length exceeds what the receiver can accept",
	StatusLengthTooShort:             "declared length is shorter than the minimum allowed",
	StatusLengthMismatch:             "declared length does not match data actually transferred",
	StatusLengthRequired:             "a definite length was required but none was given",
	StatusBadMessageContents:         "message failed to parse or contained invalid field values",
	StatusBadBlockCounter:            "block or query counter did not match the expected value",
	StatusTransferFailedUnknownError: "transfer failed for an unspecified reason",
	StatusServerBadState:             "message received while the session was in an incompatible state",
	StatusFailureToSend:              "the host failed to deliver a staged message",
	StatusTransferMethodNotSupported: "no proposed drive mode is supported by this side",
	StatusFileDesignatorUnknown:      "the file designator is not recognized",
	StatusStartOffsetNotSupported:    "a nonzero start offset was proposed but is not supported",
	StatusVersionNotSupported:        "the proposed protocol version is not supported",
	StatusUnknown:                    "unspecified status",
}

// Description returns a human-readable explanation of the status code, or
// "unrecognized status code" if it is not one of the defined constants.
func (s StatusCode) Description() string {
	if desc, ok := statusDescriptionMap[s]; ok {
		return desc
	}
	return "unrecognized status code"
}

// Error implements the error interface so a StatusCode can be returned or
// wrapped directly wherever Go idiom expects an error value.
func (s StatusCode) Error() string {
	return fmt.Sprintf("bdx status 0x%04x: %s", uint32(s), s.Description())
}
