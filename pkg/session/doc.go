// Package session holds the key material and per-connection session state of
// the Remootio protocol.
//
// KeyMaterial carries the two long-term device keys:
//   - SecretKey decrypts the handshake challenge
//   - AuthKey authenticates every frame in both directions
//
// State is created once per successful handshake. It owns the session key
// issued by the device and the ActionCounter that tags outgoing commands.
// A State is bound to one transport connection and must be discarded when
// that connection ends or any exchange on it fails.
package session
