package bdx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferInitRoundTrip(t *testing.T) {
	cases := []TransferInit{
		{
			ProposedOptions: NewTransferControlFlags(ControlModeSenderDrive),
			Version:         0,
			MaxBlockSize:    0,
			StartOffset:     0,
			MaxLength:       0,
			FileDesignator:  []byte{},
			Metadata:        []byte{},
		},
		{
			ProposedOptions:    NewTransferControlFlags(ControlModeSenderDrive, ControlModeReceiverDrive),
			DefiniteLength:     true,
			StartOffsetPresent: true,
			WideRange:          false,
			Version:            0,
			MaxBlockSize:       1024,
			StartOffset:        0xFFFFFFFF,
			MaxLength:          0xFFFFFFFF,
			FileDesignator:     []byte("file.bin"),
			Metadata:           []byte{0xAA, 0xBB, 0xCC},
		},
		{
			ProposedOptions:    NewTransferControlFlags(ControlModeAsync),
			DefiniteLength:     true,
			StartOffsetPresent: true,
			WideRange:          true,
			Version:            0,
			MaxBlockSize:       0xFFFF,
			StartOffset:        0x1_0000_0000,
			MaxLength:          0x2_0000_0000,
			FileDesignator:     []byte{},
			Metadata:           []byte{},
		},
	}

	for i, want := range cases {
		payload, err := EncodeTransferInit(want)
		require.NoError(t, err, "case %d", i)
		got, err := DecodeTransferInit(payload)
		require.NoError(t, err, "case %d", i)
		assert.Equal(t, want.ProposedOptions.DriveBits(), got.ProposedOptions.DriveBits(), "case %d", i)
		assert.Equal(t, want.DefiniteLength, got.DefiniteLength, "case %d", i)
		assert.Equal(t, want.StartOffsetPresent, got.StartOffsetPresent, "case %d", i)
		assert.Equal(t, want.WideRange, got.WideRange, "case %d", i)
		assert.Equal(t, want.Version, got.Version, "case %d", i)
		assert.Equal(t, want.MaxBlockSize, got.MaxBlockSize, "case %d", i)
		assert.Equal(t, want.StartOffset, got.StartOffset, "case %d", i)
		if want.DefiniteLength {
			assert.Equal(t, want.MaxLength, got.MaxLength, "case %d", i)
		} else {
			assert.Equal(t, uint64(0), got.MaxLength, "case %d", i)
		}
		assert.Equal(t, want.FileDesignator, got.FileDesignator, "case %d", i)
		assert.Equal(t, want.Metadata, got.Metadata, "case %d", i)
	}
}

func TestTransferInitRejectsTruncated(t *testing.T) {
	full, err := EncodeTransferInit(TransferInit{
		ProposedOptions: NewTransferControlFlags(ControlModeSenderDrive),
		MaxBlockSize:    64,
		FileDesignator:  []byte("abc"),
	})
	require.NoError(t, err)
	_, err = DecodeTransferInit(full[:len(full)-1])
	assert.Equal(t, StatusBadMessageContents, err)
}

func TestTransferInitRejectsReservedBits(t *testing.T) {
	full, err := EncodeTransferInit(TransferInit{
		ProposedOptions: NewTransferControlFlags(ControlModeSenderDrive),
		MaxBlockSize:    64,
		FileDesignator:  []byte("abc"),
	})
	require.NoError(t, err)
	full[1] |= 0x08 // reserved bit
	_, err = DecodeTransferInit(full)
	assert.Equal(t, StatusBadMessageContents, err)
}

func TestSendAcceptRoundTrip(t *testing.T) {
	want := SendAcceptMsg{
		Mode:         ControlModeSenderDrive,
		Version:      0,
		MaxBlockSize: 2048,
		Metadata:     []byte("hello"),
	}
	got, err := DecodeSendAccept(EncodeSendAccept(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSendAcceptDecodeLeavesMultipleModesToVerify(t *testing.T) {
	buf := EncodeSendAccept(SendAcceptMsg{Mode: ControlModeSenderDrive, MaxBlockSize: 1})
	buf[0] = uint8(ControlModeSenderDrive) | uint8(ControlModeReceiverDrive)
	_, err := DecodeSendAccept(buf)
	assert.NoError(t, err) // decode itself does not enforce "exactly one"; Verify does
}

func TestSendAcceptRejectsReservedBits(t *testing.T) {
	buf := EncodeSendAccept(SendAcceptMsg{Mode: ControlModeSenderDrive, MaxBlockSize: 1})
	buf[0] |= 0x01
	_, err := DecodeSendAccept(buf)
	assert.Equal(t, StatusBadMessageContents, err)
}

func TestReceiveAcceptRoundTripBothWidths(t *testing.T) {
	for _, wide := range []bool{false, true} {
		want := ReceiveAcceptMsg{
			Mode:         ControlModeReceiverDrive,
			Version:      0,
			MaxBlockSize: 512,
			StartOffset:  100,
			Length:       9999,
			Metadata:     []byte{1, 2, 3},
		}
		got, err := DecodeReceiveAccept(EncodeReceiveAccept(want, wide), wide)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCounterMsgRoundTrip(t *testing.T) {
	for _, c := range []uint32{0, 1, 0xFFFFFFFF} {
		got, err := DecodeCounterMsg(EncodeCounterMsg(CounterMsg{BlockCounter: c}))
		require.NoError(t, err)
		assert.Equal(t, c, got.BlockCounter)
	}
}

func TestBlockDataMsgRoundTrip(t *testing.T) {
	want := BlockDataMsg{BlockCounter: 42, Data: []byte("some block payload")}
	got, err := DecodeBlockDataMsg(EncodeBlockDataMsg(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBlockDataMsgEmptyData(t *testing.T) {
	want := BlockDataMsg{BlockCounter: 7, Data: nil}
	got, err := DecodeBlockDataMsg(EncodeBlockDataMsg(want))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.BlockCounter)
	assert.Empty(t, got.Data)
}

func TestHeaderRoundTrip(t *testing.T) {
	framed := AttachHeader(MessageTypeBlock, []byte{1, 2, 3})
	msgType, payload, err := StripHeader(framed)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeBlock, msgType)
	assert.Equal(t, []byte{1, 2, 3}, payload)
}

func TestHeaderRejectsOtherProtocol(t *testing.T) {
	framed := AttachHeader(MessageTypeBlock, []byte{1})
	framed[0] = 0x00
	_, _, err := StripHeader(framed)
	assert.Equal(t, ErrUnsupportedProtocol, err)
}
