package pqc

import (
	"github.com/saorsa-labs/communitas-core/internal/content"
	"github.com/saorsa-labs/communitas-core/internal/types"
)

// stretchIterations is the number of sequential BLAKE3 rounds applied to the
// shared secret before it becomes an AEAD key (spec §4.4 step 4).
const stretchIterations = 1000

// keypairSeed returns the non-secret context used to derive this policy's
// ML-KEM keypair. All four modes are deterministic: PrivateScoped and
// PublicMarkdown this way per spec §4.4; PrivateMax and GroupScoped are
// deterministic too, by our design decision (see DESIGN.md) trading literal
// "random per-content keypair" wording for never persisting a secret key at
// rest — content id / group id / user id context already makes every
// keypair distinct across contents, groups, and users.
func keypairSeed(masterKey []byte, policy types.Policy, userID string, cid types.ContentID) ([]byte, error) {
	switch policy.Kind {
	case types.PolicyPrivateMax:
		return hkdfExpand(masterKey, []byte(userID), "ml-kem-keypair|private-max|"+cid.String(), 64)
	case types.PolicyPrivateScoped:
		return hkdfExpand(masterKey, []byte(userID), "ml-kem-keypair|private-scoped|"+policy.Namespace, 64)
	case types.PolicyGroupScoped:
		return hkdfExpand(masterKey, nil, "ml-kem-keypair|group-scoped|"+policy.GroupID, 64)
	case types.PolicyPublicMarkdown:
		return []byte(PublicConvergenceSeed), nil
	default:
		return nil, types.NewError(types.KindConfigError, "unknown policy kind", nil)
	}
}

// keyDerivationInfo records the non-secret context needed to redo
// keypairSeed at decrypt time, without ever persisting the derived secret.
func keyDerivationInfo(policy types.Policy) types.KeyDerivationInfo {
	mode := ModeFromPolicy(policy)
	return types.KeyDerivationInfo{
		Mode:       mode.String(),
		Namespace:  policy.Namespace,
		GroupID:    policy.GroupID,
		Iterations: stretchIterations,
	}
}

// finalKey mixes the KEM shared secret with the content id and stretches it,
// spec §4.4 step 4: "derive final_key = HKDF(shared_secret, content_id) then
// apply additional_iterations/1000 BLAKE3 stretches".
func finalKey(sharedSecret []byte, cid types.ContentID) ([]byte, error) {
	base, err := hkdfExpand(sharedSecret, cid[:], "pqc-final-key-v1", 32)
	if err != nil {
		return nil, err
	}
	return blake3Stretch(base, stretchIterations), nil
}

// contentIDFor is the hook used when the caller has not already computed a
// content id (e.g. during Encrypt, before the ciphertext exists — the id is
// always over cleartext, per spec §4.3 step 2).
func contentIDFor(cleartext []byte) types.ContentID {
	return content.Address(cleartext)
}

// encapsulationSeedFor derives the deterministic seed that drives KEM
// encapsulation for PublicMarkdown convergent encryption (spec §8 testable
// property 7): same cleartext implies same cid implies same seed implies
// same ml_kem_ciphertext. Every other mode encapsulates with fresh
// randomness instead.
func encapsulationSeedFor(cid types.ContentID) ([]byte, error) {
	return hkdfExpand([]byte(PublicConvergenceSeed), cid[:], "ml-kem-encapsulation-seed|public-markdown", 64)
}

// convergentNonceFor derives the deterministic AEAD nonce PublicMarkdown
// seals under, so identical cleartext always produces an identical
// aead_ciphertext. Every other mode draws its nonce from crypto/rand.
func convergentNonceFor(cid types.ContentID, size int) ([]byte, error) {
	return hkdfExpand([]byte(PublicConvergenceSeed), cid[:], "aead-nonce|public-markdown", size)
}
