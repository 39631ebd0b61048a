// Package securechannel implements the session handshake.
//
// The client sends an unencrypted AUTH request. The device answers with an
// ENCRYPTED challenge whose payload is encrypted with the API secret key and
// authenticated with the API auth key. The challenge carries a fresh session
// key and the initial action id:
//
//	-> {"type":"AUTH"}
//	<- {"type":"ENCRYPTED","data":{"iv":..,"payload":..},"mac":..}
//	   payload: {"challenge":{"sessionKey":"<base64>","initialActionId":N}}
//
// A challenge that fails MAC verification is fatal; no decryption is
// attempted and no session is created.
//
// Negotiator is the state machine. Negotiate drives it over a
// transport.Transport with a bounded wait.
package securechannel
