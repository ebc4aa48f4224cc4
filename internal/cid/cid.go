// Package cid computes and validates content identifiers.
//
// A CID is the base64url (unpadded) encoding of a 6-byte big-endian content
// length followed by either the content itself, when it is at most EmbedLimit
// bytes long, or its SHA-512 digest. Small content therefore round-trips
// through the identifier with no storage lookup.
package cid

import (
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	// EmbedLimit is the largest content length embedded directly in a CID.
	EmbedLimit = 64

	// MaxContentLength is the largest length the 6-byte prefix can declare.
	MaxContentLength = 1<<48 - 1

	lengthPrefixBytes = 6
	prefixChars       = 8 // base64url of 6 bytes
	digestBytes       = sha512.Size

	// MinLength and MaxLength bound the length of a CID string.
	MinLength = prefixChars
	MaxLength = prefixChars + 86
)

var (
	// ErrInvalidFormat is returned when a string is not a well-formed CID.
	ErrInvalidFormat = errors.New("invalid content identifier")

	// ErrContentTooLarge is returned when content exceeds the addressable size.
	ErrContentTooLarge = errors.New("content too large")

	encoding = base64.RawURLEncoding.Strict()
)

// CID is an immutable, validated content identifier. The zero value is not a
// valid CID. CIDs are comparable with ==.
type CID struct {
	value   string
	length  uint64
	payload string
}

// Identify computes the CID of b. It is deterministic.
func Identify(b []byte) (CID, error) {
	if uint64(len(b)) > MaxContentLength {
		return CID{}, fmt.Errorf("%w: %d bytes", ErrContentTooLarge, len(b))
	}

	var payload []byte
	if len(b) <= EmbedLimit {
		payload = b
	} else {
		sum := sha512.Sum512(b)
		payload = sum[:]
	}

	prefix := encodeLength(uint64(len(b)))
	return CID{
		value:   prefix + encoding.EncodeToString(payload),
		length:  uint64(len(b)),
		payload: string(payload),
	}, nil
}

// IdentifyLimited is Identify with an additional caller-supplied size cap.
func IdentifyLimited(b []byte, maxBytes int64) (CID, error) {
	if maxBytes > 0 && int64(len(b)) > maxBytes {
		return CID{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrContentTooLarge, len(b), maxBytes)
	}
	return Identify(b)
}

// MustIdentify is Identify for content known to be within limits.
func MustIdentify(b []byte) CID {
	c, err := Identify(b)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse validates s and returns the CID it encodes. A leading "/" is ignored.
func Parse(s string) (CID, error) {
	s = strings.TrimLeft(s, "/")
	length, ok := structure(s)
	if !ok {
		return CID{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	payload, err := encoding.DecodeString(s[prefixChars:])
	if err != nil {
		return CID{}, fmt.Errorf("%w: %q: %v", ErrInvalidFormat, s, err)
	}
	if length <= EmbedLimit && uint64(len(payload)) != length {
		return CID{}, fmt.Errorf("%w: %q: embedded content length mismatch", ErrInvalidFormat, s)
	}
	if length > EmbedLimit && len(payload) != digestBytes {
		return CID{}, fmt.Errorf("%w: %q: digest length mismatch", ErrInvalidFormat, s)
	}

	return CID{value: s, length: length, payload: string(payload)}, nil
}

// LooksLike reports whether s is structurally a CID: the right alphabet, a
// plausible length, and a payload size consistent with the declared content
// length. It does not decode the payload.
func LooksLike(s string) bool {
	_, ok := structure(strings.TrimLeft(s, "/"))
	return ok
}

// structure checks everything but payload decoding and returns the declared length.
func structure(s string) (uint64, bool) {
	if len(s) < MinLength || len(s) > MaxLength {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if !isAlphabet(s[i]) {
			return 0, false
		}
	}

	raw, err := encoding.DecodeString(s[:prefixChars])
	if err != nil || len(raw) != lengthPrefixBytes {
		return 0, false
	}
	var length uint64
	for _, b := range raw {
		length = length<<8 | uint64(b)
	}

	expected := encoding.EncodedLen(digestBytes)
	if length <= EmbedLimit {
		expected = encoding.EncodedLen(int(length))
	}
	if len(s)-prefixChars != expected {
		return 0, false
	}
	return length, true
}

func isAlphabet(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}

func encodeLength(n uint64) string {
	var raw [lengthPrefixBytes]byte
	for i := lengthPrefixBytes - 1; i >= 0; i-- {
		raw[i] = byte(n)
		n >>= 8
	}
	return encoding.EncodeToString(raw[:])
}

// Value returns the normalized CID string.
func (c CID) Value() string { return c.value }

// String implements fmt.Stringer.
func (c CID) String() string { return c.value }

// Path returns the CID as an absolute request path.
func (c CID) Path() string { return "/" + c.value }

// Length returns the declared length of the original content.
func (c CID) Length() uint64 { return c.length }

// IsZero reports whether c is the zero value.
func (c CID) IsZero() bool { return c.value == "" }

// IsLiteral reports whether the content is embedded in the CID. It is derived
// from the length field alone.
func (c CID) IsLiteral() bool { return c.value != "" && c.length <= EmbedLimit }

// Literal returns the embedded content of a literal CID.
func (c CID) Literal() ([]byte, bool) {
	if !c.IsLiteral() {
		return nil, false
	}
	return []byte(c.payload), true
}

// Digest returns the SHA-512 digest carried by a hashed CID.
func (c CID) Digest() ([]byte, bool) {
	if c.value == "" || c.IsLiteral() {
		return nil, false
	}
	return []byte(c.payload), true
}

// Payload returns the embedded content or the digest.
func (c CID) Payload() []byte { return []byte(c.payload) }

// Matches reports whether b is the content c identifies.
func (c CID) Matches(b []byte) bool {
	other, err := Identify(b)
	return err == nil && other == c
}

// Normalize strips leading separators and a trailing filename suffix from a
// path segment so that it can be tested as a CID.
func Normalize(segment string) string {
	s := strings.TrimLeft(segment, "/")
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	return s
}
