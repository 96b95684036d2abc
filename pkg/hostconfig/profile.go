// Package hostconfig loads named transfer profiles from an ini file: reusable
// bundles of supported drive modes, block size and timeout that a host picks
// by name instead of hardcoding literals at each StartTransfer/WaitForTransfer
// call site.
package hostconfig

import (
	"fmt"
	"strings"

	"github.com/samsamfire/bdxsession/pkg/bdx"
	"gopkg.in/ini.v1"
)

// Profile bundles the parameters a host needs to start or wait for a
// transfer: which drive modes it is willing to negotiate, the largest block
// it will send or accept, and how long it will wait for a peer reply before
// timing out.
type Profile struct {
	Name            string
	SupportedOptions bdx.TransferControlFlags
	MaxBlockSize    uint16
	TimeoutMs       uint32
}

// LoadProfiles reads every non-default section of an ini file as a named
// Profile. Each section must set supported_options (a comma-separated list
// of senderdrive/receiverdrive/async), max_block_size, and timeout_ms.
func LoadProfiles(path string) (map[string]Profile, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("hostconfig: %w", err)
	}
	return profilesFromFile(cfg)
}

// LoadProfilesFromBytes is the same as LoadProfiles but reads an in-memory
// ini document, mainly useful for tests.
func LoadProfilesFromBytes(data []byte) (map[string]Profile, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("hostconfig: %w", err)
	}
	return profilesFromFile(cfg)
}

func profilesFromFile(cfg *ini.File) (map[string]Profile, error) {
	profiles := make(map[string]Profile)
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		opts, err := parseDriveModes(section.Key("supported_options").String())
		if err != nil {
			return nil, fmt.Errorf("hostconfig: profile %q: %w", section.Name(), err)
		}
		maxBlockSize, err := section.Key("max_block_size").Uint()
		if err != nil {
			return nil, fmt.Errorf("hostconfig: profile %q: max_block_size: %w", section.Name(), err)
		}
		timeoutMs, err := section.Key("timeout_ms").Uint()
		if err != nil {
			return nil, fmt.Errorf("hostconfig: profile %q: timeout_ms: %w", section.Name(), err)
		}
		profiles[section.Name()] = Profile{
			Name:             section.Name(),
			SupportedOptions: opts,
			MaxBlockSize:     uint16(maxBlockSize),
			TimeoutMs:        uint32(timeoutMs),
		}
	}
	return profiles, nil
}

func parseDriveModes(csv string) (bdx.TransferControlFlags, error) {
	var modes []bdx.ControlMode
	for _, name := range strings.Split(csv, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		switch name {
		case "senderdrive":
			modes = append(modes, bdx.ControlModeSenderDrive)
		case "receiverdrive":
			modes = append(modes, bdx.ControlModeReceiverDrive)
		case "async":
			modes = append(modes, bdx.ControlModeAsync)
		default:
			return bdx.TransferControlFlags{}, fmt.Errorf("unknown drive mode %q", name)
		}
	}
	if len(modes) == 0 {
		return bdx.TransferControlFlags{}, fmt.Errorf("supported_options must list at least one drive mode")
	}
	return bdx.NewTransferControlFlags(modes...), nil
}
