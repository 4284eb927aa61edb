package pqc

import (
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// Sizes per spec §4.4. circl's scheme reports the same constants; we pin
// them here too so a misconfigured build fails loudly rather than silently
// producing differently-shaped envelopes.
const (
	PublicKeySize    = mlkem768.PublicKeySize
	SecretKeySize    = mlkem768.PrivateKeySize
	CiphertextSize   = mlkem768.CiphertextSize
	SharedSecretSize = mlkem768.SharedKeySize
)

// scheme is the ML-KEM-768 KEM scheme from circl, used for every keypair
// derivation, encapsulation, and decapsulation in this package.
var scheme = mlkem768.Scheme()

// Keypair is a derived (or generated) ML-KEM-768 keypair.
type Keypair struct {
	Public kem.PublicKey
	Secret kem.PrivateKey
}

// deriveKeypair turns a 64-byte seed into a deterministic ML-KEM-768
// keypair. Using DeriveKeyPair instead of GenerateKeyPair is what lets
// PrivateScoped/PublicMarkdown callers (and, per our derivation scheme,
// PrivateMax/GroupScoped too — see DESIGN.md) reconstruct the same keypair
// locally without ever persisting a secret key at rest.
func deriveKeypair(seed []byte) (Keypair, error) {
	if len(seed) != scheme.SeedSize() {
		seed = stretchSeed(seed, scheme.SeedSize())
	}
	pk, sk, err := scheme.DeriveKeyPair(seed)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Public: pk, Secret: sk}, nil
}

// encapsulate wraps a fresh shared secret against pk, returning the KEM
// ciphertext to embed in EncryptedContent and the shared secret to mix into
// final key derivation. Randomized: two calls against the same pk produce
// different ciphertexts.
func encapsulate(pk kem.PublicKey) (ciphertext, sharedSecret []byte, err error) {
	return scheme.Encapsulate(pk)
}

// encapsulateDeterministic wraps a shared secret against pk using seed to
// drive the KEM's internal randomness, so the same (pk, seed) pair always
// yields the same ciphertext and shared secret. Used only for
// PublicMarkdown, where convergent encryption requires byte-identical
// ciphertexts for byte-identical cleartext (spec §8 testable property 7).
func encapsulateDeterministic(pk kem.PublicKey, seed []byte) (ciphertext, sharedSecret []byte, err error) {
	if len(seed) != scheme.EncapsulationSeedSize() {
		seed = stretchSeed(seed, scheme.EncapsulationSeedSize())
	}
	return scheme.EncapsulateDeterministically(pk, seed)
}

// decapsulate recovers the shared secret from ciphertext using sk. Any
// structural failure here must surface as AuthFailure, never a partial
// result.
func decapsulate(sk kem.PrivateKey, ciphertext []byte) ([]byte, error) {
	return scheme.Decapsulate(sk, ciphertext)
}

func marshalPublic(pk kem.PublicKey) ([]byte, error) { return pk.MarshalBinary() }
func marshalSecret(sk kem.PrivateKey) ([]byte, error) { return sk.MarshalBinary() }

func unmarshalCiphertext(ct []byte) error {
	if len(ct) != scheme.CiphertextSize() {
		return kemSizeError{"ciphertext", scheme.CiphertextSize(), len(ct)}
	}
	return nil
}

type kemSizeError struct {
	field string
	want  int
	got   int
}

func (e kemSizeError) Error() string {
	return fmt.Sprintf("pqc: %s has wrong size: want %d, got %d", e.field, e.want, e.got)
}
