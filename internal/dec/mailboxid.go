// Package dec implements the decentralized mailbox (§4.3): mailbox-id
// derivation, the storage-client fan-out, and the name-claim flow for
// peer-to-peer accounts whose addresses are public keys. The folder-delta
// reconciliation lives in internal/foldersync.
package dec

import (
	"bytes"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"strings"

	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/pgp"
)

// mailboxIDPrefix namespaces the routing hash so it can never collide with a
// hash computed for an unrelated purpose over the same public key bytes.
const mailboxIDPrefix = "tuvi.dec.route.v1|"

// base32E is the case-insensitive Base32 alphabet decentralized public keys
// are encoded with. No padding: a public key's encoded length is fixed by
// its byte length, so a trailing "=" would only be noise.
var base32E = base32.StdEncoding.WithPadding(base32.NoPadding)

// ValidateBase32E reports whether s is syntactically valid Base32E, case
// insensitively (§6: "case-insensitive Base32E in the local part").
func ValidateBase32E(s string) bool {
	if s == "" {
		return false
	}
	_, err := base32E.DecodeString(strings.ToUpper(s))
	return err == nil
}

// DeriveMailboxID computes the routing identifier for a Base32E-encoded
// public key (§4.3): hex(sha256("tuvi.dec.route.v1|" + uppercase(pubKey))).
// Empty or malformed keys fail with an invalid-argument error.
func DeriveMailboxID(pubKeyBase32E string) (string, error) {
	if !ValidateBase32E(pubKeyBase32E) {
		return "", errs.New(errs.InvalidArgument, "public key is not valid Base32E")
	}
	upper := strings.ToUpper(pubKeyBase32E)
	sum := sha256.Sum256([]byte(mailboxIDPrefix + upper))
	return hex.EncodeToString(sum[:]), nil
}

// ExtractPublicKey pulls the Base32E public key out of a decentralized
// address of the form "base32e@network-tag" (§6).
func ExtractPublicKey(address string) (string, error) {
	at := strings.IndexByte(address, '@')
	if at < 0 {
		return "", errs.New(errs.InvalidArgument, "decentralized address missing network tag")
	}
	pubKey := address[:at]
	if !ValidateBase32E(pubKey) {
		return "", errs.New(errs.InvalidArgument, "decentralized address local part is not valid Base32E")
	}
	return pubKey, nil
}

// DecodePublicKey decodes a Base32E public key string to its raw bytes, the
// form the OpenPGP key-derivation step consumes.
func DecodePublicKey(pubKeyBase32E string) ([]byte, error) {
	if !ValidateBase32E(pubKeyBase32E) {
		return nil, errs.New(errs.InvalidArgument, "public key is not valid Base32E")
	}
	return base32E.DecodeString(strings.ToUpper(pubKeyBase32E))
}

// EncodePublicKey re-serializes an armored public key (primary key,
// identities and subkeys, without the armor) and Base32E-encodes it, the
// inverse of the decode half of recipientKey: it is how a freshly derived
// identity's own address is produced.
func EncodePublicKey(publicArmored string) (string, error) {
	entities, err := pgp.ParseArmoredKey(publicArmored)
	if err != nil {
		return "", errs.Wrap(errs.InvalidArgument, err, "parse derived public key")
	}
	var buf bytes.Buffer
	if err := entities[0].Serialize(&buf); err != nil {
		return "", errs.Wrap(errs.InvalidArgument, err, "serialize derived public key")
	}
	return base32E.EncodeToString(buf.Bytes()), nil
}
