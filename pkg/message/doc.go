// Package message implements the Remootio frame layer.
//
// Every message on the wire is a single compact JSON object. Authenticated
// messages are ENCRYPTED envelopes:
//
//	{"type":"ENCRYPTED","data":{"iv":"<b64>","payload":"<b64>"},"mac":"<b64>"}
//
// where payload is the AES-CBC ciphertext of the PKCS#7-padded plaintext JSON
// and mac is HMAC-SHA256 over the compact JSON of the data object. The MAC is
// computed after encryption and must be verified before decryption; OpenFrame
// performs both steps in that order.
//
// The package also provides ActionCounter, the per-session action id
// sequencer that tags outgoing commands.
package message
