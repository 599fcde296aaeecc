// Package pgp provides the OpenPGP primitives shared by the message
// protection block (§3) and the DEC protector (§4.3): key parsing/export,
// whole-blob encrypt/decrypt, and detached sign/verify. There is no MIME
// envelope here — every caller works with a flat byte slice.
package pgp

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// ParseArmoredKey parses an ASCII-armored PGP key (public or private).
func ParseArmoredKey(armored string) (openpgp.EntityList, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armored))
	if err != nil {
		return nil, fmt.Errorf("parse armored key: %w", err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys found in armored data")
	}
	return entities, nil
}

// ParseBinaryKey parses a binary (non-armored) PGP key.
func ParseBinaryKey(data []byte) (openpgp.EntityList, error) {
	entities, err := openpgp.ReadKeyRing(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse binary key: %w", err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys found in binary data")
	}
	return entities, nil
}

// KeyFingerprint returns the hex fingerprint of a PGP entity.
func KeyFingerprint(entity *openpgp.Entity) string {
	return fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint)
}

// ArmorPublicKey exports a PGP entity's public key as ASCII-armored text.
func ArmorPublicKey(entity *openpgp.Entity) (string, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, "PGP PUBLIC KEY BLOCK", nil)
	if err != nil {
		return "", fmt.Errorf("create armor writer: %w", err)
	}
	if err := entity.Serialize(w); err != nil {
		return "", fmt.Errorf("serialize public key: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close armor writer: %w", err)
	}
	return buf.String(), nil
}

// ArmorPrivateKey exports a PGP entity's private key as ASCII-armored text.
func ArmorPrivateKey(entity *openpgp.Entity) (string, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, "PGP PRIVATE KEY BLOCK", nil)
	if err != nil {
		return "", fmt.Errorf("create armor writer: %w", err)
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		return "", fmt.Errorf("serialize private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close armor writer: %w", err)
	}
	return buf.String(), nil
}
