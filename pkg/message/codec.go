package message

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/backkem/remootio/pkg/crypto"
)

// EncryptFrame serializes v to canonical JSON, encrypts it with AES-CBC under
// encKey using a fresh random IV, and authenticates the result with
// HMAC-SHA256 under macKey.
//
// encKey must be 16, 24 or 32 bytes.
func EncryptFrame(v any, encKey, macKey []byte) (*Frame, error) {
	return encryptFrame(rand.Reader, v, encKey, macKey)
}

func encryptFrame(r io.Reader, v any, encKey, macKey []byte) (*Frame, error) {
	if !crypto.ValidKeySize(len(encKey)) {
		return nil, fmt.Errorf("%w: encryption key is %d bytes", ErrInvalidKeyLength, len(encKey))
	}
	if len(macKey) == 0 {
		return nil, fmt.Errorf("%w: empty MAC key", ErrInvalidKeyLength)
	}

	plaintext, err := CanonicalJSON(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plaintext: %w", err)
	}

	iv, err := crypto.ReadIV(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext, err := crypto.AESCBCEncrypt(encKey, iv, plaintext)
	if err != nil {
		return nil, err
	}

	f := &Frame{
		IV:      base64.StdEncoding.EncodeToString(iv),
		Payload: base64.StdEncoding.EncodeToString(ciphertext),
	}
	mac, err := ComputeMAC(f.Data(), macKey)
	if err != nil {
		return nil, err
	}
	f.MAC = base64.StdEncoding.EncodeToString(mac)
	return f, nil
}

// ComputeMAC returns HMAC-SHA256 over the canonical JSON of data.
func ComputeMAC(data FrameData, macKey []byte) ([]byte, error) {
	encoded, err := CanonicalJSON(data)
	if err != nil {
		return nil, err
	}
	return crypto.HMACSHA256(macKey, encoded), nil
}

// VerifyMAC recomputes the frame MAC under macKey and compares it with the
// received MAC in constant time. It returns ErrMACMismatch on any mismatch,
// including an undecodable MAC field.
func VerifyMAC(f *Frame, macKey []byte) error {
	if len(macKey) == 0 {
		return fmt.Errorf("%w: empty MAC key", ErrInvalidKeyLength)
	}
	received, err := base64.StdEncoding.DecodeString(f.MAC)
	if err != nil || len(received) != crypto.HMACSize {
		return ErrMACMismatch
	}
	expected, err := ComputeMAC(f.Data(), macKey)
	if err != nil {
		return err
	}
	if !crypto.HMACEqual(expected, received) {
		return ErrMACMismatch
	}
	return nil
}

// DecryptFrame decrypts the frame payload with key and unmarshals the
// plaintext JSON into out. out may be nil to only validate the plaintext.
//
// DecryptFrame does not authenticate the frame. Received frames must pass
// VerifyMAC first; use OpenFrame.
func DecryptFrame(f *Frame, key []byte, out any) error {
	if !crypto.ValidKeySize(len(key)) {
		return fmt.Errorf("%w: decryption key is %d bytes", ErrInvalidKeyLength, len(key))
	}

	iv, err := base64.StdEncoding.DecodeString(f.IV)
	if err != nil {
		return fmt.Errorf("%w: iv: %v", ErrMalformedFrame, err)
	}
	if len(iv) != crypto.IVSize {
		return fmt.Errorf("%w: iv is %d bytes", ErrMalformedFrame, len(iv))
	}
	ciphertext, err := base64.StdEncoding.DecodeString(f.Payload)
	if err != nil {
		return fmt.Errorf("%w: payload: %v", ErrMalformedFrame, err)
	}

	plaintext, err := crypto.AESCBCDecrypt(key, iv, ciphertext)
	switch {
	case errors.Is(err, crypto.ErrInvalidPadding):
		return ErrPadding
	case errors.Is(err, crypto.ErrInvalidCiphertextSize):
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	case err != nil:
		return err
	}

	if out == nil {
		if !json.Valid(plaintext) {
			return ErrMalformedPlaintext
		}
		return nil
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPlaintext, err)
	}
	return nil
}

// OpenFrame authenticates a received frame with macKey and, only if the MAC
// is valid, decrypts it with decKey into out.
func OpenFrame(f *Frame, macKey, decKey []byte, out any) error {
	if err := VerifyMAC(f, macKey); err != nil {
		return err
	}
	return DecryptFrame(f, decKey, out)
}
