// Package device implements a simulated Remootio device.
//
// The Simulator speaks the device side of the protocol: it answers AUTH with
// an encrypted challenge, then authenticates, decrypts and executes
// QUERY, TRIGGER, OPEN and CLOSE commands against a simulated door. It runs
// over any transport.Transport, or as an HTTP handler that upgrades requests
// to WebSocket connections.
//
// Faults can be injected to exercise client error paths.
package device
