package internal

import (
	"encoding/base64"
	"testing"
)

// FuzzDecodeRefreshToken feeds arbitrary strings to the decoder.
// Invalid input must error, never panic.
func FuzzDecodeRefreshToken(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("!!!not-base64!!!")
	f.Add("aGVsbG8=")
	if token, err := NewRefreshToken(); err == nil {
		f.Add(token)
	}

	f.Fuzz(func(t *testing.T, input string) {
		raw, err := DecodeRefreshToken(input)
		if err != nil {
			return
		}
		if len(raw) != refreshTokenRawSize {
			t.Fatalf("decoded %d bytes", len(raw))
		}
		if base64.RawURLEncoding.EncodeToString(raw) != input {
			t.Fatal("decode is not canonical")
		}
	})
}
