// Command bdxhost is a minimal host integration for pkg/bdx: it drives two
// Sessions, one Sender and one Receiver, over an in-memory duplex byte
// exchange with a real timer loop, exercising a full transfer end to end.
// It stands in for the transport, file I/O and timer source that pkg/bdx
// itself deliberately does not own.
package main

import (
	"bytes"
	"flag"
	"time"

	"github.com/samsamfire/bdxsession/pkg/bdx"
	"github.com/samsamfire/bdxsession/pkg/hostconfig"
	log "github.com/sirupsen/logrus"
)

// clock hands out host-supplied monotonic millisecond readings, the only
// notion of time pkg/bdx is ever given.
type clock struct {
	start time.Time
}

func newClock() *clock { return &clock{start: time.Now()} }

func (c *clock) now() uint64 { return uint64(time.Since(c.start).Milliseconds()) }

func main() {
	profilePath := flag.String("profile", "", "path to an ini file of transfer profiles")
	profileName := flag.String("profile-name", "default", "profile name to load from -profile")
	payloadSize := flag.Int("size", 4096, "bytes of demo payload to transfer")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	profile := hostconfig.Profile{
		Name:             "default",
		SupportedOptions: bdx.NewTransferControlFlags(bdx.ControlModeSenderDrive, bdx.ControlModeReceiverDrive),
		MaxBlockSize:     256,
		TimeoutMs:        5000,
	}
	if *profilePath != "" {
		profiles, err := hostconfig.LoadProfiles(*profilePath)
		if err != nil {
			log.Fatalf("load profiles: %v", err)
		}
		p, ok := profiles[*profileName]
		if !ok {
			log.Fatalf("profile %q not found in %s", *profileName, *profilePath)
		}
		profile = p
	}

	payload := make([]byte, *payloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	sender := bdx.NewSession()
	receiver := bdx.NewSession()
	clk := newClock()

	if err := sender.StartTransfer(bdx.RoleSender, bdx.InitData{
		ProposedOptions: profile.SupportedOptions,
		DefiniteLength:  true,
		MaxBlockSize:    profile.MaxBlockSize,
		Length:          uint64(len(payload)),
		FileDesignator:  []byte("demo.bin"),
	}, profile.TimeoutMs, clk.now()); err != nil {
		log.Fatalf("start transfer: %v", err)
	}
	if err := receiver.WaitForTransfer(bdx.RoleReceiver, profile.SupportedOptions, profile.MaxBlockSize, profile.TimeoutMs); err != nil {
		log.Fatalf("wait for transfer: %v", err)
	}

	received := runDemoTransfer(sender, receiver, payload, clk)

	if !bytes.Equal(received, payload) {
		log.Fatalf("transfer finished but received payload does not match what was sent (%d vs %d bytes)",
			len(received), len(payload))
	}
	log.Infof("transfer complete: %d bytes, mode=%s", len(received), sender.ControlMode())
}

// runDemoTransfer pumps both sessions until one reaches Done, delivering
// staged outbound messages to the other side and reacting to staged events
// on whichever side produced them.
func runDemoTransfer(sender, receiver *bdx.Session, payload []byte, clk *clock) []byte {
	received := make([]byte, 0, len(payload))
	sendOffset := 0

	for sender.State() != bdx.StateDone || receiver.State() != bdx.StateDone {
		now := clk.now()
		progressed := step(sender, receiver, payload, &sendOffset, &received, now)
		progressed = step(receiver, sender, payload, &sendOffset, &received, now) || progressed

		if sender.State() == bdx.StateError || receiver.State() == bdx.StateError {
			log.Fatalf("transfer aborted: sender=%s receiver=%s", sender.State(), receiver.State())
		}
		if !progressed {
			time.Sleep(time.Millisecond)
		}
	}
	return received
}

// step polls self for a single staged item and acts on it: a message is
// delivered to peer, an event is reacted to locally. Reports whether
// anything was staged.
func step(self, peer *bdx.Session, payload []byte, sendOffset *int, received *[]byte, now uint64) bool {
	ev := self.PollOutput(now)
	switch ev.Type {
	case bdx.EventNone:
		return false
	case bdx.EventMsgToSend:
		msgType, _, _ := bdx.StripHeader(ev.Message)
		if err := peer.HandleMessageReceived(ev.Message, now); err != nil {
			log.Fatalf("deliver message: %v", err)
		}
		if msgType == bdx.MessageTypeBlockAck && self.Role() == bdx.RoleReceiver &&
			self.ControlMode() == bdx.ControlModeReceiverDrive && self.State() == bdx.StateInProgress {
			// Under receiver drive the ack does not double as a query;
			// the receiver must issue the next one itself.
			if err := self.PrepareBlockQuery(); err != nil {
				log.Fatalf("prepare block query: %v", err)
			}
		}
		if msgType == bdx.MessageTypeSendAccept || msgType == bdx.MessageTypeReceiveAccept {
			// The accept is out of the pending slot, so the active side
			// can now stage its first query or block.
			kickoffIfActive(self, payload, sendOffset)
		}
	case bdx.EventInternalError:
		log.Warnf("[%s] internal error: %s", self.Role(), ev.Status.Error)
	case bdx.EventTransferTimeout:
		log.Warnf("[%s] timed out waiting for a reply", self.Role())
	default:
		reactToEvent(self, ev, payload, sendOffset, received)
	}
	return true
}

func reactToEvent(self *bdx.Session, ev bdx.Event, payload []byte, sendOffset *int, received *[]byte) {
	switch ev.Type {
	case bdx.EventInitReceived:
		mode, ok := ev.Init.ProposedOptions.SingleMode()
		if !ok {
			mode = bdx.ControlModeSenderDrive
			if ev.Init.ProposedOptions.Has(bdx.ControlModeReceiverDrive) {
				mode = bdx.ControlModeReceiverDrive
			}
		}
		if err := self.AcceptTransfer(bdx.AcceptData{
			Mode:         mode,
			MaxBlockSize: ev.Init.MaxBlockSize,
			StartOffset:  ev.Init.StartOffset,
			Length:       ev.Init.Length,
		}); err != nil {
			log.Fatalf("accept transfer: %v", err)
		}
	case bdx.EventAcceptReceived:
		kickoffIfActive(self, payload, sendOffset)
	case bdx.EventQueryReceived:
		sendNextBlock(self, payload, sendOffset)
	case bdx.EventBlockReceived:
		*received = append(*received, ev.Block.Data...)
		if err := self.PrepareBlockAck(); err != nil {
			log.Fatalf("prepare block ack: %v", err)
		}
	case bdx.EventAckReceived:
		if self.Role() == bdx.RoleSender && self.ControlMode() == bdx.ControlModeSenderDrive {
			sendNextBlock(self, payload, sendOffset)
		}
	case bdx.EventStatusReceived:
		log.Warnf("[%s] peer reported status 0x%04x", self.Role(), uint32(ev.Status.Error))
	}
}

// kickoffIfActive starts the streaming phase on whichever side is active
// under the negotiated drive mode: the sender under SenderDrive, the
// receiver under ReceiverDrive.
func kickoffIfActive(self *bdx.Session, payload []byte, sendOffset *int) {
	switch {
	case self.Role() == bdx.RoleSender && self.ControlMode() == bdx.ControlModeSenderDrive:
		sendNextBlock(self, payload, sendOffset)
	case self.Role() == bdx.RoleReceiver && self.ControlMode() == bdx.ControlModeReceiverDrive:
		if err := self.PrepareBlockQuery(); err != nil {
			log.Fatalf("prepare block query: %v", err)
		}
	}
}

func sendNextBlock(self *bdx.Session, payload []byte, sendOffset *int) {
	maxBlock := int(self.NegotiatedBlockSize())
	if maxBlock == 0 {
		maxBlock = len(payload)
	}
	remaining := len(payload) - *sendOffset
	n := remaining
	isEOF := true
	if remaining > maxBlock {
		n = maxBlock
		isEOF = false
	}
	chunk := payload[*sendOffset : *sendOffset+n]
	*sendOffset += n
	if err := self.PrepareBlock(chunk, isEOF); err != nil {
		log.Fatalf("prepare block: %v", err)
	}
}
