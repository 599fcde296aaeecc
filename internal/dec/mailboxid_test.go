package dec

import (
	"encoding/base32"
	"testing"

	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestDeriveMailboxID_Deterministic(t *testing.T) {
	pub := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte("a fake 32 byte public key......"))

	id1, err := DeriveMailboxID(pub)
	require.NoError(t, err)
	id2, err := DeriveMailboxID(pub)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	lower, err := DeriveMailboxID(lowercase(pub))
	require.NoError(t, err)
	require.Equal(t, id1, lower, "mailbox id derivation uppercases the key before hashing")
}

func TestDeriveMailboxID_RejectsMalformedKey(t *testing.T) {
	_, err := DeriveMailboxID("")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InvalidArgument))

	_, err = DeriveMailboxID("not valid base32!!!")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestExtractPublicKey(t *testing.T) {
	pub := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte("another fake public key bytes.."))

	key, err := ExtractPublicKey(pub + "@network-one")
	require.NoError(t, err)
	require.Equal(t, pub, key)

	_, err = ExtractPublicKey("missing-at-sign")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InvalidArgument))
}

func lowercase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}
