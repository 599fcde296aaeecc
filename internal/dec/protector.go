package dec

import (
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/pgp"
)

// recipientKey converts a recipient's Base32E-encoded public key into an
// armored OpenPGP public key pgp.Encrypt can consume. The decentralized
// address carries the binary (non-armored) serialized OpenPGP public key,
// Base32E-encoded rather
// than the conventional ASCII-armor, so the routing id and the encryption
// key are derived from the same bytes.
func recipientKey(pubKeyBase32E string) (string, error) {
	raw, err := DecodePublicKey(pubKeyBase32E)
	if err != nil {
		return "", err
	}
	entities, err := pgp.ParseBinaryKey(raw)
	if err != nil {
		return "", errs.Wrap(errs.InvalidArgument, err, "decode recipient public key")
	}
	return pgp.ArmorPublicKey(entities[0])
}

// EncryptForRecipients protects plaintext (the JSON-serialized wire blob,
// §6) for every recipient public key in the batch (§4.3: "encrypt ...
// with the per-recipient OpenPGP public key derived from that Base32E
// value").
func EncryptForRecipients(recipientPubKeys []string, plaintext []byte) ([]byte, error) {
	if len(recipientPubKeys) == 0 {
		return nil, errs.New(errs.InvalidArgument, "no recipients for decentralized send")
	}
	armored := make([]string, 0, len(recipientPubKeys))
	for _, pk := range recipientPubKeys {
		a, err := recipientKey(pk)
		if err != nil {
			return nil, err
		}
		armored = append(armored, a)
	}
	sealed, err := pgp.Encrypt(armored, plaintext)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "encrypt for decentralized recipients")
	}
	return sealed, nil
}

// DecryptOwn opens a wire blob with the account's own armored private key
// (§4.3: "decrypt with the account's derived secret key").
func DecryptOwn(ownPrivateArmored string, sealed []byte) ([]byte, error) {
	plaintext, err := pgp.Decrypt(ownPrivateArmored, sealed)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "decrypt decentralized message")
	}
	return plaintext, nil
}
