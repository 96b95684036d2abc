package bdx

// Resolve implements the responder side of drive-mode negotiation: given the
// options an initiator proposed and the options this side supports, it
// picks the single agreed drive mode, in Async > ReceiverDrive > SenderDrive
// priority.
//
// At least one synchronous mode (SenderDrive or ReceiverDrive) must be
// proposed; Async alone is not a valid proposal. If the intersection of
// proposed and supported options is empty, negotiation fails outright. If
// the intersection has more than one bit set, resolved is false and the
// caller (AcceptTransfer) must supply the chosen mode explicitly.
func Resolve(proposed, supported TransferControlFlags) (mode ControlMode, resolved bool, err error) {
	if !proposed.Has(ControlModeSenderDrive) && !proposed.Has(ControlModeReceiverDrive) {
		return ControlModeNotSpecified, false, StatusTransferMethodNotSupported
	}
	common := proposed.Intersect(supported)
	if common.DriveBits() == 0 {
		return ControlModeNotSpecified, false, StatusTransferMethodNotSupported
	}
	if m, ok := common.SingleMode(); ok {
		return m, true, nil
	}
	return ControlModeNotSpecified, false, nil
}

// Verify implements the initiator side: the Accept's ctl-flags must carry
// exactly one drive mode, and it must be among our own supported options.
func Verify(accepted, supported TransferControlFlags) (ControlMode, error) {
	mode, ok := accepted.SingleMode()
	if !ok {
		return ControlModeNotSpecified, StatusBadMessageContents
	}
	if !supported.Has(mode) {
		return ControlModeNotSpecified, StatusBadMessageContents
	}
	return mode, nil
}
