// Package bdx implements the core state machine of a Bulk Data Transfer
// (BDX) session: parameter negotiation, block streaming, acknowledgement
// and termination for one end of an exchange, either sender or receiver,
// initiator or responder.
//
// The package is sans-I/O: Session owns no socket, no timer and no file. It
// consumes inbound protocol datagrams plus a monotonic clock reading and
// produces outbound datagrams and user-visible events through PollOutput.
// A host integration drives it by feeding HandleMessageReceived and polling
// PollOutput in a loop; see cmd/bdxhost for a minimal example.
package bdx
