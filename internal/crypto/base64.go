package crypto

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"
	"unicode"
)

// ToBase64 encodes bytes to standard base64 with padding (RFC 4648 §4).
// All binary envelope fields use this encoding.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromBase64 decodes standard base64 (with padding) to bytes.
func FromBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// DecodeBase64 decodes base64 leniently: embedded whitespace is ignored and
// standard or URL-safe alphabets, padded or not, are accepted.
func DecodeBase64(s string) ([]byte, error) {
	s = StripWhitespace(s)

	// Try standard base64 with padding first
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}

	// Try standard base64 without padding
	data, err = base64.RawStdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}

	// Try URL-safe with padding
	data, err = base64.URLEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}

	return base64.RawURLEncoding.DecodeString(s)
}

// StripWhitespace removes every Unicode whitespace rune from s.
func StripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// EncodeBase64To streams data to w as standard base64. Large file payloads
// go through here in fixed-size chunks instead of one intermediate string.
func EncodeBase64To(w io.Writer, data []byte) error {
	enc := base64.NewEncoder(base64.StdEncoding, w)
	const chunk = 48 * 1024 // multiple of 3 keeps chunks padding-free
	for len(data) > 0 {
		n := min(chunk, len(data))
		if _, err := enc.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return enc.Close()
}

// DecodeBase64From decodes standard base64 from s into a buffer sized up
// front from the encoded length. Truncated input is an error.
func DecodeBase64From(s string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(base64.StdEncoding.DecodedLen(len(s)))
	if _, err := buf.ReadFrom(base64.NewDecoder(base64.StdEncoding, strings.NewReader(s))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
