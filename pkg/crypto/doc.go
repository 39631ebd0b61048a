// Package crypto provides the cryptographic primitives used by the Remootio
// frame codec: AES-CBC with PKCS#7 padding, HMAC-SHA256 and random IVs.
//
// All functions are thin, allocation-explicit wrappers around the standard
// library primitives so the frame layer can stay free of cipher plumbing.
package crypto
