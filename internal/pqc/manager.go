package pqc

import (
	"crypto/rand"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/saorsa-labs/communitas-core/internal/cache"
	"github.com/saorsa-labs/communitas-core/internal/types"
)

// keypairCacheTTL is how long a derived keypair stays in the Manager's cache
// (spec §4.4: "keys cached per (mode, user, namespace, group), 5 minute TTL").
const keypairCacheTTL = 5 * time.Minute

// keypairCacheSize is generous: a node talks to a bounded number of
// namespaces/groups/users at once, and a miss only costs a KEM derive.
const keypairCacheSize = 4096

// Manager is the node's PQC crypto module (spec §4.4). One Manager is shared
// across the storage engine; it holds the node's master key material and a
// short-lived cache of derived keypairs, never plaintext secret keys beyond
// the TTL window.
type Manager struct {
	masterKey []byte
	keypairs  *cache.Cache
}

// NewManager builds a Manager seeded from masterKey, the node's long-lived
// root secret (loaded once at startup, never logged, never persisted by this
// package).
func NewManager(masterKey []byte) *Manager {
	return &Manager{
		masterKey: append([]byte(nil), masterKey...),
		keypairs:  cache.New(keypairCacheSize, keypairCacheTTL),
	}
}

// Encrypt implements spec §4.4's five-step encrypt pipeline: derive the
// policy's keypair, encapsulate a fresh shared secret against its public
// half, stretch the shared secret (mixed with the content id) into an AEAD
// key, and seal cleartext under XChaCha20-Poly1305.
func (m *Manager) Encrypt(cleartext []byte, policy types.Policy, userID string) (types.EncryptedContent, error) {
	cid := contentIDFor(cleartext)
	mode := ModeFromPolicy(policy)
	convergent := mode == ModePublicMarkdown

	kp, err := m.keypairFor(policy, userID, cid)
	if err != nil {
		return types.EncryptedContent{}, types.NewError(types.KindConfigError, "derive keypair", err)
	}

	var ciphertextKEM, sharedSecret []byte
	if convergent {
		seed, err := encapsulationSeedFor(cid)
		if err != nil {
			return types.EncryptedContent{}, types.NewError(types.KindConfigError, "derive encapsulation seed", err)
		}
		ciphertextKEM, sharedSecret, err = encapsulateDeterministic(kp.Public, seed)
		if err != nil {
			return types.EncryptedContent{}, types.NewError(types.KindConfigError, "kem encapsulate", err)
		}
	} else {
		ciphertextKEM, sharedSecret, err = encapsulate(kp.Public)
		if err != nil {
			return types.EncryptedContent{}, types.NewError(types.KindConfigError, "kem encapsulate", err)
		}
	}

	key, err := finalKey(sharedSecret, cid)
	if err != nil {
		return types.EncryptedContent{}, types.NewError(types.KindConfigError, "derive final key", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return types.EncryptedContent{}, types.NewError(types.KindConfigError, "init aead", err)
	}

	// PublicMarkdown derives its nonce from content id instead of drawing
	// fresh randomness, so two encrypts of identical cleartext produce
	// byte-identical ciphertexts (spec §8 testable property 7).
	var nonce []byte
	if convergent {
		nonce, err = convergentNonceFor(cid, aead.NonceSize())
		if err != nil {
			return types.EncryptedContent{}, types.NewError(types.KindConfigError, "derive nonce", err)
		}
	} else {
		nonce = make([]byte, aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return types.EncryptedContent{}, types.NewError(types.KindConfigError, "read nonce", err)
		}
	}

	sealed := aead.Seal(nil, nonce, cleartext, cid[:])

	return types.EncryptedContent{
		MLKemCiphertext: ciphertextKEM,
		AEADNonce:       nonce,
		AEADCiphertext:  sealed,
		ContentAddress:  types.StorageAddress{ContentID: cid, Policy: policy},
		KeyDerivation:   keyDerivationInfo(policy),
	}, nil
}

// Decrypt reverses Encrypt. Any failure along the way — wrong keypair,
// corrupted ciphertext, tampered AEAD tag — surfaces as a single
// AuthFailure, never a partial plaintext (spec §7, §8 invariant 6). A
// plaintext that opens but does not hash to the address's content id
// surfaces as IntegrityViolation.
func (m *Manager) Decrypt(ec types.EncryptedContent, policy types.Policy, userID string) ([]byte, error) {
	if err := unmarshalCiphertext(ec.MLKemCiphertext); err != nil {
		return nil, types.NewError(types.KindAuthFailure, "malformed kem ciphertext", err)
	}

	kp, err := m.keypairFor(policy, userID, ec.ContentAddress.ContentID)
	if err != nil {
		return nil, types.NewError(types.KindAuthFailure, "derive keypair", err)
	}

	sharedSecret, err := decapsulate(kp.Secret, ec.MLKemCiphertext)
	if err != nil {
		return nil, types.NewError(types.KindAuthFailure, "kem decapsulate", err)
	}

	key, err := finalKey(sharedSecret, ec.ContentAddress.ContentID)
	if err != nil {
		return nil, types.NewError(types.KindAuthFailure, "derive final key", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, types.NewError(types.KindAuthFailure, "init aead", err)
	}

	cleartext, err := aead.Open(nil, ec.AEADNonce, ec.AEADCiphertext, ec.ContentAddress.ContentID[:])
	if err != nil {
		return nil, types.NewError(types.KindAuthFailure, "aead open", err)
	}

	if contentIDFor(cleartext) != ec.ContentAddress.ContentID {
		return nil, types.NewError(types.KindIntegrityViolation, "decrypted content hash mismatch", nil)
	}

	return cleartext, nil
}

// keypairFor derives, or returns from cache, the keypair for policy as seen
// by userID over content cid. Cached by the (mode, user, namespace, group)
// tuple the spec names, not by content id — content id only ever changes the
// seed within PrivateMax's per-content branch, which we deliberately do not
// cache (see DESIGN.md) since caching per-content would grow unboundedly.
func (m *Manager) keypairFor(policy types.Policy, userID string, cid types.ContentID) (Keypair, error) {
	mode := ModeFromPolicy(policy)
	cacheKey := fmt.Sprintf("%s|%s|%s|%s", mode, userID, policy.Namespace, policy.GroupID)
	if mode == ModePrivateMax {
		// PrivateMax keys are per-content; caching would leak every key
		// touched by a user forever. Always derive fresh.
		seed, err := keypairSeed(m.masterKey, policy, userID, cid)
		if err != nil {
			return Keypair{}, err
		}
		return deriveKeypair(seed)
	}

	if raw, ok := m.keypairs.Get(cacheKey); ok {
		return decodeKeypair(raw)
	}

	seed, err := keypairSeed(m.masterKey, policy, userID, cid)
	if err != nil {
		return Keypair{}, err
	}
	kp, err := deriveKeypair(seed)
	if err != nil {
		return Keypair{}, err
	}
	if raw, err := encodeKeypair(kp); err == nil {
		m.keypairs.Put(cacheKey, raw)
	}
	return kp, nil
}

// encodeKeypair/decodeKeypair let Keypair (which holds circl interface
// values) live inside the byte-oriented internal/cache.Cache.
func encodeKeypair(kp Keypair) ([]byte, error) {
	pub, err := marshalPublic(kp.Public)
	if err != nil {
		return nil, err
	}
	sec, err := marshalSecret(kp.Secret)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(pub)+len(sec))
	out = append(out, pub...)
	out = append(out, sec...)
	return out, nil
}

func decodeKeypair(raw []byte) (Keypair, error) {
	if len(raw) != PublicKeySize+SecretKeySize {
		return Keypair{}, kemSizeError{"cached keypair", PublicKeySize + SecretKeySize, len(raw)}
	}
	pub, err := scheme.UnmarshalBinaryPublicKey(raw[:PublicKeySize])
	if err != nil {
		return Keypair{}, err
	}
	sec, err := scheme.UnmarshalBinaryPrivateKey(raw[PublicKeySize:])
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Public: pub, Secret: sec}, nil
}
