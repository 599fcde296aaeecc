package pgp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKeyPair_IsDeterministicPerMasterKeyAndIndex(t *testing.T) {
	masterKey := []byte("a-32-byte-ish-master-key-value!")

	pub1, priv1, err := DeriveKeyPair(masterKey, 1, "alice@example.test")
	require.NoError(t, err)
	pub2, priv2, err := DeriveKeyPair(masterKey, 1, "alice@example.test")
	require.NoError(t, err)

	require.Equal(t, pub1, pub2)
	require.Equal(t, priv1, priv2)
}

func TestDeriveKeyPair_DiffersByIndex(t *testing.T) {
	masterKey := []byte("a-32-byte-ish-master-key-value!")

	pub1, _, err := DeriveKeyPair(masterKey, 1, "alice@example.test")
	require.NoError(t, err)
	pub2, _, err := DeriveKeyPair(masterKey, 2, "alice@example.test")
	require.NoError(t, err)

	require.NotEqual(t, pub1, pub2)
}

func TestDeriveKeyPair_DiffersByMasterKey(t *testing.T) {
	pub1, _, err := DeriveKeyPair([]byte("a-32-byte-ish-master-key-value!"), 1, "alice@example.test")
	require.NoError(t, err)
	pub2, _, err := DeriveKeyPair([]byte("a-different-32-byte-master-key!"), 1, "alice@example.test")
	require.NoError(t, err)

	require.NotEqual(t, pub1, pub2)
}

func TestDeriveKeyPair_RejectsEmptyMasterKey(t *testing.T) {
	_, _, err := DeriveKeyPair(nil, 1, "alice@example.test")
	require.Error(t, err)
}

func TestGenerateKeyPair_ProducesDistinctKeysEachCall(t *testing.T) {
	pub1, _, err := GenerateKeyPair("alice@example.test")
	require.NoError(t, err)
	pub2, _, err := GenerateKeyPair("alice@example.test")
	require.NoError(t, err)

	require.NotEqual(t, pub1, pub2)
}
