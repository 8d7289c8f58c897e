// Package signer implements the signature schemes accepted by the module
// server and the verification capability consulted by the admission
// pipeline. Scheme numbering follows the substrate keypair convention.
package signer

import (
	"crypto/ed25519"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// Scheme selects the cryptographic signature algorithm for a request.
type Scheme int

const (
	SchemeEd25519 Scheme = iota
	SchemeSr25519
	SchemeEcdsa
)

// signingContext is the sr25519 domain separator used by substrate keys.
var signingContext = []byte("substrate")

// Verifier authenticates a message against a public key and signature.
type Verifier interface {
	Verify(pubKey []byte, scheme Scheme, msg, sig []byte) bool
}

// SchemeVerifier is the default Verifier covering ed25519, sr25519 and
// secp256k1 ECDSA. Unknown schemes and malformed keys or signatures verify
// as false; verification never panics on attacker-controlled input.
type SchemeVerifier struct{}

// NewSchemeVerifier returns the default verification capability.
func NewSchemeVerifier() *SchemeVerifier {
	return &SchemeVerifier{}
}

// Verify reports whether sig is a valid signature over msg by the holder of
// pubKey under the given scheme.
func (v *SchemeVerifier) Verify(pubKey []byte, scheme Scheme, msg, sig []byte) bool {
	switch scheme {
	case SchemeEd25519:
		return verifyEd25519(pubKey, msg, sig)
	case SchemeSr25519:
		return verifySr25519(pubKey, msg, sig)
	case SchemeEcdsa:
		return verifyEcdsa(pubKey, msg, sig)
	default:
		return false
	}
}

func verifyEd25519(pubKey, msg, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig)
}

func verifySr25519(pubKey, msg, sig []byte) bool {
	if len(pubKey) != 32 || len(sig) != 64 {
		return false
	}
	var pubBytes [32]byte
	copy(pubBytes[:], pubKey)
	pub := &schnorrkel.PublicKey{}
	if err := pub.Decode(pubBytes); err != nil {
		return false
	}

	var sigBytes [64]byte
	copy(sigBytes[:], sig)
	signature := &schnorrkel.Signature{}
	if err := signature.Decode(sigBytes); err != nil {
		return false
	}

	transcript := schnorrkel.NewSigningContext(signingContext, msg)
	ok, err := pub.Verify(signature, transcript)
	return err == nil && ok
}

// verifyEcdsa checks a secp256k1 signature over the blake2b-256 digest of
// the message. A trailing recovery byte on a 65-byte signature is ignored.
func verifyEcdsa(pubKey, msg, sig []byte) bool {
	if len(pubKey) != 33 && len(pubKey) != 65 {
		return false
	}
	if len(sig) == 65 {
		sig = sig[:64]
	}
	if len(sig) != 64 {
		return false
	}
	digest := blake2b.Sum256(msg)
	return ethcrypto.VerifySignature(pubKey, digest[:], sig)
}
