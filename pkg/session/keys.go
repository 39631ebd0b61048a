package session

import (
	"encoding/hex"
	"fmt"

	"github.com/backkem/remootio/pkg/crypto"
)

// KeySize is the long-term key size issued by the device (AES-128).
const KeySize = 16

// KeyMaterial holds the long-term device keys. It is immutable after parsing.
type KeyMaterial struct {
	secretKey []byte
	authKey   []byte
}

// ParseKeyMaterial decodes the hex forms of the API secret key and API auth
// key. Each must decode to a valid AES key length.
func ParseKeyMaterial(secretKeyHex, authKeyHex string) (*KeyMaterial, error) {
	secret, err := parseKey("secret", secretKeyHex)
	if err != nil {
		return nil, err
	}
	auth, err := parseKey("auth", authKeyHex)
	if err != nil {
		return nil, err
	}
	return &KeyMaterial{secretKey: secret, authKey: auth}, nil
}

// NewKeyMaterial builds key material from raw keys. The slices are copied.
func NewKeyMaterial(secretKey, authKey []byte) (*KeyMaterial, error) {
	if !crypto.ValidKeySize(len(secretKey)) {
		return nil, fmt.Errorf("%w: secret key is %d bytes", ErrInvalidKeyLength, len(secretKey))
	}
	if !crypto.ValidKeySize(len(authKey)) {
		return nil, fmt.Errorf("%w: auth key is %d bytes", ErrInvalidKeyLength, len(authKey))
	}
	return &KeyMaterial{
		secretKey: append([]byte(nil), secretKey...),
		authKey:   append([]byte(nil), authKey...),
	}, nil
}

func parseKey(name, s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s key: %v", ErrInvalidKeyEncoding, name, err)
	}
	if !crypto.ValidKeySize(len(key)) {
		return nil, fmt.Errorf("%w: %s key is %d bytes", ErrInvalidKeyLength, name, len(key))
	}
	return key, nil
}

// SecretKey returns the key that decrypts the handshake challenge.
func (k *KeyMaterial) SecretKey() []byte {
	return k.secretKey
}

// AuthKey returns the MAC key used for every frame.
func (k *KeyMaterial) AuthKey() []byte {
	return k.authKey
}

// String never prints key bytes.
func (k *KeyMaterial) String() string {
	return fmt.Sprintf("KeyMaterial{secret: %d bytes, auth: %d bytes}", len(k.secretKey), len(k.authKey))
}
