package message

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"

	"github.com/backkem/remootio/pkg/crypto"
)

var (
	testEncKey, _ = hex.DecodeString("00112233445566778899aabbccddeeff")
	testMACKey, _ = hex.DecodeString("ffeeddccbbaa99887766554433221100")
)

func TestEncryptDecryptFrame_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
		out  any
	}{
		{
			name: "command",
			in:   Command{Action: Action{Type: CommandQuery, ID: 101}},
			out:  &Command{},
		},
		{
			name: "nested map",
			in:   map[string]any{"response": map[string]any{"state": "open", "success": true}},
			out:  &map[string]any{},
		},
		{
			name: "exactly one block of plaintext",
			in:   "0123456789abcd", // 16 bytes once quoted
			out:  new(string),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := EncryptFrame(tc.in, testEncKey, testMACKey)
			if err != nil {
				t.Fatalf("EncryptFrame() error = %v", err)
			}
			if err := OpenFrame(f, testMACKey, testEncKey, tc.out); err != nil {
				t.Fatalf("OpenFrame() error = %v", err)
			}

			want, _ := CanonicalJSON(tc.in)
			got, _ := CanonicalJSON(reflect.ValueOf(tc.out).Elem().Interface())
			if !bytes.Equal(got, want) {
				t.Errorf("round trip = %s, want %s", got, want)
			}
		})
	}
}

func TestEncryptFrame_PaddedLength(t *testing.T) {
	for _, s := range []string{"", "a", "0123456789abc", "0123456789abcd", "0123456789abcdefghijklmnopqrstu"} {
		plaintext, _ := CanonicalJSON(s)
		f, err := EncryptFrame(s, testEncKey, testMACKey)
		if err != nil {
			t.Fatalf("EncryptFrame(%q) error = %v", s, err)
		}
		ct, _ := base64.StdEncoding.DecodeString(f.Payload)
		want := (len(plaintext)/16 + 1) * 16
		if len(ct) != want {
			t.Errorf("plaintext len %d: ciphertext len = %d, want %d", len(plaintext), len(ct), want)
		}
	}
}

func TestEncryptFrame_FreshIV(t *testing.T) {
	cmd := Command{Action: Action{Type: CommandTrigger, ID: 7}}
	a, err := EncryptFrame(cmd, testEncKey, testMACKey)
	if err != nil {
		t.Fatalf("EncryptFrame() error = %v", err)
	}
	b, err := EncryptFrame(cmd, testEncKey, testMACKey)
	if err != nil {
		t.Fatalf("EncryptFrame() error = %v", err)
	}
	if a.IV == b.IV {
		t.Error("two frames share an IV")
	}
	if a.Payload == b.Payload {
		t.Error("two frames share a ciphertext")
	}
}

func TestEncryptFrame_MACCoversEncodedData(t *testing.T) {
	zeroIV := bytes.NewReader(make([]byte, crypto.IVSize))
	f, err := encryptFrame(zeroIV, Command{Action: Action{Type: CommandQuery, ID: 1}}, testEncKey, testMACKey)
	if err != nil {
		t.Fatalf("encryptFrame() error = %v", err)
	}
	if f.IV != "AAAAAAAAAAAAAAAAAAAAAA==" {
		t.Fatalf("IV = %q", f.IV)
	}

	covered := `{"iv":"AAAAAAAAAAAAAAAAAAAAAA==","payload":"` + f.Payload + `"}`
	want := base64.StdEncoding.EncodeToString(crypto.HMACSHA256(testMACKey, []byte(covered)))
	if f.MAC != want {
		t.Errorf("MAC = %s, want %s", f.MAC, want)
	}
}

func TestEncryptFrame_InvalidKeyLength(t *testing.T) {
	tests := []struct {
		name   string
		encKey []byte
		macKey []byte
	}{
		{"short encryption key", make([]byte, 15), testMACKey},
		{"long encryption key", make([]byte, 33), testMACKey},
		{"empty MAC key", testEncKey, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EncryptFrame("x", tc.encKey, tc.macKey)
			if !errors.Is(err, ErrInvalidKeyLength) {
				t.Errorf("EncryptFrame() error = %v, want %v", err, ErrInvalidKeyLength)
			}
		})
	}
}

func flipBase64Bit(t *testing.T, s string, byteIdx int, bit uint) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	raw[byteIdx%len(raw)] ^= 1 << bit
	return base64.StdEncoding.EncodeToString(raw)
}

func TestVerifyMAC_TamperDetection(t *testing.T) {
	f, err := EncryptFrame(Command{Action: Action{Type: CommandOpen, ID: 42}}, testEncKey, testMACKey)
	if err != nil {
		t.Fatalf("EncryptFrame() error = %v", err)
	}
	if err := VerifyMAC(f, testMACKey); err != nil {
		t.Fatalf("VerifyMAC() on untouched frame = %v", err)
	}

	for byteIdx := 0; byteIdx < 32; byteIdx++ {
		for bit := uint(0); bit < 8; bit++ {
			iv := *f
			iv.IV = flipBase64Bit(t, f.IV, byteIdx, bit)
			if err := VerifyMAC(&iv, testMACKey); !errors.Is(err, ErrMACMismatch) {
				t.Fatalf("iv byte %d bit %d: VerifyMAC() = %v", byteIdx, bit, err)
			}

			payload := *f
			payload.Payload = flipBase64Bit(t, f.Payload, byteIdx, bit)
			if err := VerifyMAC(&payload, testMACKey); !errors.Is(err, ErrMACMismatch) {
				t.Fatalf("payload byte %d bit %d: VerifyMAC() = %v", byteIdx, bit, err)
			}

			mac := *f
			mac.MAC = flipBase64Bit(t, f.MAC, byteIdx, bit)
			if err := VerifyMAC(&mac, testMACKey); !errors.Is(err, ErrMACMismatch) {
				t.Fatalf("mac byte %d bit %d: VerifyMAC() = %v", byteIdx, bit, err)
			}
		}
	}
}

func TestVerifyMAC_WrongKeyAndGarbage(t *testing.T) {
	f, err := EncryptFrame("hello", testEncKey, testMACKey)
	if err != nil {
		t.Fatalf("EncryptFrame() error = %v", err)
	}

	if err := VerifyMAC(f, testEncKey); !errors.Is(err, ErrMACMismatch) {
		t.Errorf("VerifyMAC(wrong key) = %v, want %v", err, ErrMACMismatch)
	}

	garbage := *f
	garbage.MAC = "not base64!"
	if err := VerifyMAC(&garbage, testMACKey); !errors.Is(err, ErrMACMismatch) {
		t.Errorf("VerifyMAC(garbage) = %v, want %v", err, ErrMACMismatch)
	}

	short := *f
	short.MAC = base64.StdEncoding.EncodeToString([]byte("short"))
	if err := VerifyMAC(&short, testMACKey); !errors.Is(err, ErrMACMismatch) {
		t.Errorf("VerifyMAC(short) = %v, want %v", err, ErrMACMismatch)
	}
}

func TestOpenFrame_DoesNotDecryptOnMACFailure(t *testing.T) {
	f, err := EncryptFrame(Response{Response: &ResponseBody{State: "open"}}, testEncKey, testMACKey)
	if err != nil {
		t.Fatalf("EncryptFrame() error = %v", err)
	}
	f.MAC = flipBase64Bit(t, f.MAC, 0, 0)

	var out Response
	if err := OpenFrame(f, testMACKey, testEncKey, &out); !errors.Is(err, ErrMACMismatch) {
		t.Fatalf("OpenFrame() error = %v, want %v", err, ErrMACMismatch)
	}
	if out.Response != nil {
		t.Error("OpenFrame() populated output despite MAC failure")
	}
}

// sealRaw encrypts raw bytes without the JSON or padding step so tests can
// exercise malformed plaintext and padding.
func sealRaw(t *testing.T, key, padded []byte) *Frame {
	t.Helper()
	iv := make([]byte, crypto.IVSize)
	// Encrypt then drop the trailing full padding block that AESCBCEncrypt
	// adds for block-aligned input; CBC makes the prefix independent of it.
	ct, err := crypto.AESCBCEncrypt(key, iv, padded)
	if err != nil {
		t.Fatalf("AESCBCEncrypt() error = %v", err)
	}
	return &Frame{
		IV:      base64.StdEncoding.EncodeToString(iv),
		Payload: base64.StdEncoding.EncodeToString(ct[:len(padded)]),
	}
}

func TestDecryptFrame_Errors(t *testing.T) {
	badPad := append([]byte(`{"a":1}`), bytes.Repeat([]byte{0x00}, 9)...)
	tooLongPad := append([]byte(`{"a":1}`), bytes.Repeat([]byte{0x11}, 9)...)
	notJSON := append([]byte(`not json`), bytes.Repeat([]byte{0x08}, 8)...)

	tests := []struct {
		name    string
		frame   *Frame
		key     []byte
		wantErr error
	}{
		{"zero pad byte", sealRaw(t, testEncKey, badPad), testEncKey, ErrPadding},
		{"pad byte above 16", sealRaw(t, testEncKey, tooLongPad), testEncKey, ErrPadding},
		{"plaintext not json", sealRaw(t, testEncKey, notJSON), testEncKey, ErrMalformedPlaintext},
		{"bad iv base64", &Frame{IV: "!!", Payload: "AAAA"}, testEncKey, ErrMalformedFrame},
		{"short iv", &Frame{IV: "AAAA", Payload: "AAAAAAAAAAAAAAAAAAAAAA=="}, testEncKey, ErrMalformedFrame},
		{"unaligned payload", &Frame{IV: "AAAAAAAAAAAAAAAAAAAAAA==", Payload: "AAAA"}, testEncKey, ErrMalformedFrame},
		{"bad key length", &Frame{IV: "AAAAAAAAAAAAAAAAAAAAAA==", Payload: "AAAA"}, make([]byte, 10), ErrInvalidKeyLength},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out map[string]any
			if err := DecryptFrame(tc.frame, tc.key, &out); !errors.Is(err, tc.wantErr) {
				t.Errorf("DecryptFrame() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDecryptFrame_NilOutValidates(t *testing.T) {
	f, err := EncryptFrame(map[string]int{"a": 1}, testEncKey, testMACKey)
	if err != nil {
		t.Fatalf("EncryptFrame() error = %v", err)
	}
	if err := DecryptFrame(f, testEncKey, nil); err != nil {
		t.Errorf("DecryptFrame(nil out) = %v", err)
	}
}
