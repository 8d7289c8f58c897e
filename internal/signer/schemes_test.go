package signer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allSchemes = []Scheme{SchemeEd25519, SchemeSr25519, SchemeEcdsa}

func TestSignVerifyRoundTrip(t *testing.T) {
	v := NewSchemeVerifier()
	msg := []byte(`{"params": {"awesomeness": 80}}`)

	for _, scheme := range allSchemes {
		kp, err := GenerateKeypair(scheme)
		require.NoError(t, err, "scheme %d", scheme)

		sig, err := kp.Sign(msg)
		require.NoError(t, err, "scheme %d", scheme)

		assert.True(t, v.Verify(kp.Public, scheme, msg, sig), "scheme %d must verify its own signature", scheme)
	}
}

func TestVerifyRejectsMutatedBody(t *testing.T) {
	v := NewSchemeVerifier()
	msg := []byte(`{"params": {"awesomeness": 80}}`)

	for _, scheme := range allSchemes {
		kp, err := GenerateKeypair(scheme)
		require.NoError(t, err)
		sig, err := kp.Sign(msg)
		require.NoError(t, err)

		mutated := bytes.Clone(msg)
		mutated[len(mutated)/2] ^= 0x01
		assert.False(t, v.Verify(kp.Public, scheme, mutated, sig), "scheme %d accepted a mutated body", scheme)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	v := NewSchemeVerifier()
	msg := []byte("payload")

	for _, scheme := range allSchemes {
		kp, err := GenerateKeypair(scheme)
		require.NoError(t, err)
		other, err := GenerateKeypair(scheme)
		require.NoError(t, err)

		sig, err := kp.Sign(msg)
		require.NoError(t, err)

		assert.False(t, v.Verify(other.Public, scheme, msg, sig))
	}
}

func TestVerifyUnknownScheme(t *testing.T) {
	v := NewSchemeVerifier()
	kp, err := GenerateKeypair(SchemeEd25519)
	require.NoError(t, err)
	sig, err := kp.Sign([]byte("x"))
	require.NoError(t, err)

	assert.False(t, v.Verify(kp.Public, Scheme(99), []byte("x"), sig))
}

func TestVerifyMalformedInputs(t *testing.T) {
	v := NewSchemeVerifier()

	// Truncated keys and signatures must verify false, never panic.
	for _, scheme := range allSchemes {
		assert.False(t, v.Verify([]byte{0x01}, scheme, []byte("msg"), []byte{0x02}))
		assert.False(t, v.Verify(nil, scheme, []byte("msg"), nil))
	}
}

func TestKeypairFromSeedIsDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, SeedSize)

	for _, scheme := range allSchemes {
		a, err := NewKeypairFromSeed(scheme, seed)
		require.NoError(t, err)
		b, err := NewKeypairFromSeed(scheme, seed)
		require.NoError(t, err)
		assert.Equal(t, a.Public, b.Public, "scheme %d", scheme)
	}

	_, err := NewKeypairFromSeed(SchemeEd25519, []byte{0x01})
	assert.Error(t, err)
}
