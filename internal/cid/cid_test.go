package cid

import (
	"bytes"
	"crypto/sha512"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify_LiteralRoundTrip(t *testing.T) {
	for n := 0; n <= EmbedLimit; n++ {
		content := bytes.Repeat([]byte{'x'}, n)
		c, err := Identify(content)
		require.NoError(t, err)

		assert.True(t, c.IsLiteral(), "length %d should embed", n)
		got, ok := c.Literal()
		require.True(t, ok)
		assert.Equal(t, content, got)
		assert.Equal(t, uint64(n), c.Length())
	}
}

func TestIdentify_HashedAboveLimit(t *testing.T) {
	content := []byte(strings.Repeat("a", EmbedLimit+1))
	c, err := Identify(content)
	require.NoError(t, err)

	assert.False(t, c.IsLiteral())
	lit, ok := c.Literal()
	assert.False(t, ok)
	assert.Nil(t, lit)

	digest, ok := c.Digest()
	require.True(t, ok)
	sum := sha512.Sum512(content)
	assert.Equal(t, sum[:], digest)
	assert.Len(t, c.Value(), MaxLength)
}

func TestIdentify_Deterministic(t *testing.T) {
	inputs := [][]byte{nil, []byte("hello"), bytes.Repeat([]byte("0123456789"), 100)}
	for _, in := range inputs {
		a, err := Identify(in)
		require.NoError(t, err)
		b, err := Identify(append([]byte(nil), in...))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}

	a := MustIdentify([]byte("hello"))
	b := MustIdentify([]byte("hellp"))
	assert.NotEqual(t, a, b)
}

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{"", "hello", strings.Repeat("z", 64), strings.Repeat("z", 65), strings.Repeat("long", 1000)}
	for _, in := range inputs {
		c := MustIdentify([]byte(in))
		parsed, err := Parse(c.Value())
		require.NoError(t, err, "content %q", in)
		assert.Equal(t, c, parsed)

		withSlash, err := Parse(c.Path())
		require.NoError(t, err)
		assert.Equal(t, c, withSlash)
	}
}

func TestParse_Invalid(t *testing.T) {
	valid := MustIdentify([]byte("hello")).Value()

	cases := map[string]string{
		"empty":          "",
		"too short":      "AAAA",
		"bad alphabet":   valid[:len(valid)-1] + "+",
		"plain word":     "username",
		"truncated":      valid[:len(valid)-1],
		"extra char":     valid + "A",
		"too long":       strings.Repeat("A", MaxLength+1),
		"hashed short":   MustIdentify([]byte(strings.Repeat("q", 100))).Value()[:90],
		"non canonical":  "AAAAAAABaB",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFormat))
		})
	}
}

func TestLooksLike(t *testing.T) {
	assert.True(t, LooksLike(MustIdentify([]byte("hi")).Value()))
	assert.True(t, LooksLike(MustIdentify([]byte(strings.Repeat("x", 500))).Value()))
	assert.False(t, LooksLike("hello"))
	assert.False(t, LooksLike("echo"))
	assert.False(t, LooksLike("username1"))
	assert.False(t, LooksLike("has.dot.in.it"))
}

func TestIdentifyLimited(t *testing.T) {
	_, err := IdentifyLimited([]byte("0123456789"), 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContentTooLarge))

	c, err := IdentifyLimited([]byte("0123"), 5)
	require.NoError(t, err)
	assert.True(t, c.Matches([]byte("0123")))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "AAAAAAAFaGVsbG8", Normalize("/AAAAAAAFaGVsbG8.txt"))
	assert.Equal(t, "AAAAAAAFaGVsbG8", Normalize("AAAAAAAFaGVsbG8"))
}

func TestZeroValue(t *testing.T) {
	var c CID
	assert.True(t, c.IsZero())
	assert.False(t, c.IsLiteral())
	_, ok := c.Digest()
	assert.False(t, ok)
}
