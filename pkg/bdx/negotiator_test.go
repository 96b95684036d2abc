package bdx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveEmptyProposalFails(t *testing.T) {
	_, resolved, err := Resolve(NewTransferControlFlags(), NewTransferControlFlags(ControlModeSenderDrive))
	assert.False(t, resolved)
	assert.Equal(t, StatusTransferMethodNotSupported, err)
}

func TestResolveNoCommonModeFails(t *testing.T) {
	proposed := NewTransferControlFlags(ControlModeSenderDrive)
	supported := NewTransferControlFlags(ControlModeReceiverDrive)
	_, resolved, err := Resolve(proposed, supported)
	assert.False(t, resolved)
	assert.Equal(t, StatusTransferMethodNotSupported, err)
}

func TestResolveAsyncPriorityWithSingleCommonBit(t *testing.T) {
	proposed := NewTransferControlFlags(ControlModeAsync, ControlModeSenderDrive)
	supported := NewTransferControlFlags(ControlModeSenderDrive)
	mode, resolved, err := Resolve(proposed, supported)
	assert.NoError(t, err)
	assert.True(t, resolved)
	assert.Equal(t, ControlModeSenderDrive, mode)
}

func TestResolveMultipleCommonBitsUnresolved(t *testing.T) {
	proposed := NewTransferControlFlags(ControlModeSenderDrive, ControlModeReceiverDrive)
	supported := NewTransferControlFlags(ControlModeSenderDrive, ControlModeReceiverDrive)
	mode, resolved, err := Resolve(proposed, supported)
	assert.NoError(t, err)
	assert.False(t, resolved)
	assert.Equal(t, ControlModeNotSpecified, mode)
}

func TestResolvePicksOnlyCommonBit(t *testing.T) {
	proposed := NewTransferControlFlags(ControlModeSenderDrive, ControlModeReceiverDrive)
	supported := NewTransferControlFlags(ControlModeReceiverDrive)
	mode, resolved, err := Resolve(proposed, supported)
	assert.NoError(t, err)
	assert.True(t, resolved)
	assert.Equal(t, ControlModeReceiverDrive, mode)
}

func TestVerifyRequiresExactlyOneMode(t *testing.T) {
	accepted := transferControlFlagsFromRaw(uint8(ControlModeSenderDrive) | uint8(ControlModeReceiverDrive))
	_, err := Verify(accepted, NewTransferControlFlags(ControlModeSenderDrive, ControlModeReceiverDrive))
	assert.Equal(t, StatusBadMessageContents, err)
}

func TestVerifyRejectsModeNotSupported(t *testing.T) {
	accepted := NewTransferControlFlags(ControlModeReceiverDrive)
	_, err := Verify(accepted, NewTransferControlFlags(ControlModeSenderDrive))
	assert.Equal(t, StatusBadMessageContents, err)
}

func TestVerifyAccepts(t *testing.T) {
	accepted := NewTransferControlFlags(ControlModeSenderDrive)
	mode, err := Verify(accepted, NewTransferControlFlags(ControlModeSenderDrive, ControlModeReceiverDrive))
	assert.NoError(t, err)
	assert.Equal(t, ControlModeSenderDrive, mode)
}
