package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// AES-CBC constants.
const (
	// BlockSize is the AES block size in bytes. It is also the IV size and
	// the PKCS#7 padding boundary.
	BlockSize = aes.BlockSize

	// IVSize is the CBC initialization vector size in bytes.
	IVSize = aes.BlockSize
)

// Errors for AES-CBC operations.
var (
	ErrInvalidKeySize        = errors.New("aescbc: invalid key size, must be 16, 24 or 32 bytes")
	ErrInvalidIVSize         = errors.New("aescbc: invalid IV size, must be 16 bytes")
	ErrInvalidCiphertextSize = errors.New("aescbc: ciphertext is not a positive multiple of the block size")
	ErrInvalidPadding        = errors.New("aescbc: invalid PKCS#7 padding")
)

// ValidKeySize reports whether n is an AES-128, AES-192 or AES-256 key length.
func ValidKeySize(n int) bool {
	return n == 16 || n == 24 || n == 32
}

// RandomIV returns a fresh IV read from crypto/rand.
func RandomIV() ([]byte, error) {
	return ReadIV(rand.Reader)
}

// ReadIV reads an IV from r. Tests use it with deterministic readers.
func ReadIV(r io.Reader) ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(r, iv); err != nil {
		return nil, err
	}
	return iv, nil
}

// PKCS7Pad appends PKCS#7 padding to data. The result is always longer than
// data: a full block of padding is added when len(data) is already aligned.
func PKCS7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// PKCS7Unpad strips and validates PKCS#7 padding.
//
// It fails when the pad byte is 0, exceeds blockSize or the length, or when
// any of the padding bytes disagree with the pad byte.
func PKCS7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}

// AESCBCEncrypt pads plaintext with PKCS#7 and encrypts it with AES-CBC.
//
// Parameters:
//   - key: 16, 24 or 32-byte AES key
//   - iv: 16-byte initialization vector, never reused under the same key
//   - plaintext: data to encrypt (any length)
//
// Returns ciphertext whose length is the padded plaintext length.
func AESCBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}

	padded := PKCS7Pad(plaintext, BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// AESCBCDecrypt decrypts AES-CBC ciphertext and strips PKCS#7 padding.
//
// Returns ErrInvalidPadding if the decrypted padding is malformed.
func AESCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, ErrInvalidCiphertextSize
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)
	return PKCS7Unpad(padded, BlockSize)
}

func newBlock(key, iv []byte) (cipher.Block, error) {
	if !ValidKeySize(len(key)) {
		return nil, ErrInvalidKeySize
	}
	if len(iv) != IVSize {
		return nil, ErrInvalidIVSize
	}
	return aes.NewCipher(key)
}
