// Package transport provides the message-oriented duplex channels the
// Remootio protocol runs over.
//
// A Transport carries whole messages: every Send is delivered to the peer as
// exactly one Receive. Two implementations are provided:
//   - WebSocket: one text frame per message, used against real devices
//   - Pipe: an in-memory pair built on pion's test bridge, used by tests
//     and the device simulator
//
// Both implementations read in a single background goroutine per
// connection, so Receive honours context cancellation and deadlines even
// though the underlying reads block.
package transport
