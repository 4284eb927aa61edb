package pqc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager([]byte("test-master-key-not-for-production-use"))
}

func TestManagerEncryptDecryptRoundTrip(t *testing.T) {
	policies := []types.Policy{
		types.PrivateMax(),
		types.PrivateScoped("alice-notes"),
		types.GroupScoped("group-42"),
		types.PublicMarkdown(),
	}

	for _, policy := range policies {
		policy := policy
		t.Run(policy.Kind.String(), func(t *testing.T) {
			m := testManager(t)
			cleartext := []byte("hello, " + policy.Kind.String())

			ec, err := m.Encrypt(cleartext, policy, "user-1")
			require.NoError(t, err)
			assert.NotEmpty(t, ec.MLKemCiphertext)
			assert.NotEmpty(t, ec.AEADCiphertext)

			got, err := m.Decrypt(ec, policy, "user-1")
			require.NoError(t, err)
			assert.Equal(t, cleartext, got)
		})
	}
}

func TestManagerDecryptWithWrongUserFails(t *testing.T) {
	m := testManager(t)
	policy := types.PrivateScoped("ns")

	ec, err := m.Encrypt([]byte("secret"), policy, "user-a")
	require.NoError(t, err)

	_, err = m.Decrypt(ec, policy, "user-b")
	require.Error(t, err)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.KindAuthFailure, kind)
}

func TestManagerDecryptTamperedCiphertextFails(t *testing.T) {
	m := testManager(t)
	policy := types.GroupScoped("g1")

	ec, err := m.Encrypt([]byte("group secret"), policy, "user-1")
	require.NoError(t, err)

	ec.AEADCiphertext[0] ^= 0xFF

	_, err = m.Decrypt(ec, policy, "user-1")
	require.Error(t, err)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.KindAuthFailure, kind)
}

func TestManagerPublicMarkdownConverges(t *testing.T) {
	m1 := NewManager([]byte("master-key-one"))
	m2 := NewManager([]byte("master-key-two"))

	cleartext := []byte("# shared public note")
	policy := types.PublicMarkdown()

	ec1, err := m1.Encrypt(cleartext, policy, "user-a")
	require.NoError(t, err)
	ec2, err := m2.Encrypt(cleartext, policy, "user-b")
	require.NoError(t, err)

	assert.Equal(t, ec1.ContentAddress, ec2.ContentAddress,
		"PublicMarkdown addresses must converge across users/nodes for the same bytes")
	assert.Equal(t, ec1.MLKemCiphertext, ec2.MLKemCiphertext,
		"PublicMarkdown ml_kem_ciphertext must be byte-identical for identical cleartext")
	assert.Equal(t, ec1.AEADNonce, ec2.AEADNonce,
		"PublicMarkdown aead_nonce must be byte-identical for identical cleartext")
	assert.Equal(t, ec1.AEADCiphertext, ec2.AEADCiphertext,
		"PublicMarkdown aead_ciphertext must be byte-identical for identical cleartext")

	got, err := m2.Decrypt(ec1, policy, "anyone")
	require.NoError(t, err)
	assert.Equal(t, cleartext, got)
}

func TestManagerPrivateScopedDoesNotConverge(t *testing.T) {
	m := testManager(t)
	cleartext := []byte("same bytes, different namespaces")

	ec1, err := m.Encrypt(cleartext, types.PrivateScoped("ns-a"), "user-1")
	require.NoError(t, err)
	ec2, err := m.Encrypt(cleartext, types.PrivateScoped("ns-b"), "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, ec1.AEADCiphertext, ec2.AEADCiphertext)
}

func TestKeypairSeedDeterministic(t *testing.T) {
	master := []byte("m")
	cid := contentIDFor([]byte("x"))

	s1, err := keypairSeed(master, types.PrivateScoped("ns"), "u", cid)
	require.NoError(t, err)
	s2, err := keypairSeed(master, types.PrivateScoped("ns"), "u", cid)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}
