package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// SeedSize is the raw seed length accepted by NewKeypairFromSeed for every
// scheme.
const SeedSize = 32

// Keypair is a signing identity. The server holds one as its own identity;
// clients hold one to sign request bodies.
type Keypair struct {
	Scheme  Scheme
	Public  []byte
	Private []byte
}

// GenerateKeypair creates a fresh random keypair for the given scheme.
func GenerateKeypair(scheme Scheme) (*Keypair, error) {
	var seed [SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	return NewKeypairFromSeed(scheme, seed[:])
}

// NewKeypairFromSeed derives a keypair from a 32-byte seed.
func NewKeypairFromSeed(scheme Scheme, seed []byte) (*Keypair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}

	switch scheme {
	case SchemeEd25519:
		priv := ed25519.NewKeyFromSeed(seed)
		pub := priv.Public().(ed25519.PublicKey)
		return &Keypair{Scheme: scheme, Public: pub, Private: priv}, nil

	case SchemeSr25519:
		var raw [SeedSize]byte
		copy(raw[:], seed)
		mini, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("derive sr25519 key: %w", err)
		}
		pub := mini.Public().Encode()
		private := make([]byte, SeedSize)
		copy(private, seed)
		return &Keypair{Scheme: scheme, Public: pub[:], Private: private}, nil

	case SchemeEcdsa:
		priv, err := ethcrypto.ToECDSA(seed)
		if err != nil {
			return nil, fmt.Errorf("derive ecdsa key: %w", err)
		}
		pub := ethcrypto.CompressPubkey(&priv.PublicKey)
		return &Keypair{Scheme: scheme, Public: pub, Private: ethcrypto.FromECDSA(priv)}, nil

	default:
		return nil, fmt.Errorf("unknown signature scheme %d", scheme)
	}
}

// Sign produces a signature over msg that SchemeVerifier.Verify accepts for
// the keypair's scheme and public key.
func (kp *Keypair) Sign(msg []byte) ([]byte, error) {
	switch kp.Scheme {
	case SchemeEd25519:
		return ed25519.Sign(ed25519.PrivateKey(kp.Private), msg), nil

	case SchemeSr25519:
		var raw [SeedSize]byte
		copy(raw[:], kp.Private)
		mini, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("load sr25519 key: %w", err)
		}
		transcript := schnorrkel.NewSigningContext(signingContext, msg)
		sig, err := mini.ExpandEd25519().Sign(transcript)
		if err != nil {
			return nil, fmt.Errorf("sr25519 sign: %w", err)
		}
		enc := sig.Encode()
		return enc[:], nil

	case SchemeEcdsa:
		priv, err := ethcrypto.ToECDSA(kp.Private)
		if err != nil {
			return nil, fmt.Errorf("load ecdsa key: %w", err)
		}
		digest := blake2b.Sum256(msg)
		return ethcrypto.Sign(digest[:], priv)

	default:
		return nil, fmt.Errorf("unknown signature scheme %d", kp.Scheme)
	}
}
