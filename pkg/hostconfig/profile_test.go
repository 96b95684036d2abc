package hostconfig

import (
	"testing"

	"github.com/samsamfire/bdxsession/pkg/bdx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIni = `
[firmware-push]
supported_options = SenderDrive, ReceiverDrive
max_block_size = 1024
timeout_ms = 10000

[log-pull]
supported_options = ReceiverDrive
max_block_size = 512
timeout_ms = 5000
`

func TestLoadProfilesFromBytes(t *testing.T) {
	profiles, err := LoadProfilesFromBytes([]byte(sampleIni))
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	push := profiles["firmware-push"]
	assert.Equal(t, uint16(1024), push.MaxBlockSize)
	assert.Equal(t, uint32(10000), push.TimeoutMs)
	assert.True(t, push.SupportedOptions.Has(bdx.ControlModeSenderDrive))
	assert.True(t, push.SupportedOptions.Has(bdx.ControlModeReceiverDrive))

	pull := profiles["log-pull"]
	assert.Equal(t, uint16(512), pull.MaxBlockSize)
	assert.False(t, pull.SupportedOptions.Has(bdx.ControlModeSenderDrive))
}

func TestLoadProfilesRejectsUnknownDriveMode(t *testing.T) {
	_, err := LoadProfilesFromBytes([]byte("[bad]\nsupported_options = teleport\nmax_block_size = 1\ntimeout_ms = 1\n"))
	assert.Error(t, err)
}

func TestLoadProfilesRejectsEmptyOptions(t *testing.T) {
	_, err := LoadProfilesFromBytes([]byte("[bad]\nsupported_options =\nmax_block_size = 1\ntimeout_ms = 1\n"))
	assert.Error(t, err)
}
