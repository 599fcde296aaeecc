package pgp

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"golang.org/x/crypto/hkdf"
)

// derivationEpoch is the fixed creation time stamped on every deterministically
// derived entity, so the same (master key, index) always produces the same
// key material and fingerprint, never one that drifts with time.Now().
var derivationEpoch = time.Unix(0, 0)

// GenerateKeyPair creates a fresh OpenPGP entity for identity (typically a
// mailbox-style "Name <email>" string, or just an address) and returns its
// armored public and private halves, using the system's own randomness. Used
// for message-protection keypairs that have no derivation requirement.
func GenerateKeyPair(identity string) (publicArmored, privateArmored string, err error) {
	return deriveKeyPair(identity, nil)
}

// DeriveKeyPair deterministically derives a DEC identity keypair from
// masterKey and index: the account's place in its network's derivation
// sequence (§4.3 "key derivation from master + account index"). The same
// masterKey and index always reproduce the same keypair, so re-deriving a
// decentralized identity never loses access to an existing mailbox.
func DeriveKeyPair(masterKey []byte, index int, identity string) (publicArmored, privateArmored string, err error) {
	if len(masterKey) == 0 {
		return "", "", fmt.Errorf("derive key pair: empty master key")
	}
	info := make([]byte, 8)
	binary.BigEndian.PutUint64(info, uint64(index))
	seed := hkdf.New(sha256.New, masterKey, []byte("tuvicore-dec-identity"), info)
	return deriveKeyPair(identity, seed)
}

// deriveKeyPair generates an entity, using rand for its key material and a
// fixed creation time when rand is non-nil so the result is reproducible;
// a nil rand falls back to the library's own crypto/rand source and the
// entity's real creation time.
func deriveKeyPair(identity string, rand io.Reader) (publicArmored, privateArmored string, err error) {
	var cfg *packet.Config
	if rand != nil {
		cfg = &packet.Config{Rand: rand, Time: func() time.Time { return derivationEpoch }}
	}
	entity, err := openpgp.NewEntity(identity, "", "", cfg)
	if err != nil {
		return "", "", fmt.Errorf("generate key pair: %w", err)
	}
	for _, id := range entity.Identities {
		if err := id.SelfSignature.Sign(entity.PrimaryKey, entity.PrivateKey, cfg); err != nil {
			return "", "", fmt.Errorf("self-sign identity: %w", err)
		}
	}

	publicArmored, err = ArmorPublicKey(entity)
	if err != nil {
		return "", "", err
	}
	privateArmored, err = ArmorPrivateKey(entity)
	if err != nil {
		return "", "", err
	}
	return publicArmored, privateArmored, nil
}

// Encrypt seals plaintext for every recipient key in recipientsArmored,
// returning an ASCII-armored PGP message. Used both for the DEC protector
// (§4.3: encrypt the JSON-serialized message body per recipient) and for
// protecting a Message's body in place before it is stored.
func Encrypt(recipientsArmored []string, plaintext []byte) ([]byte, error) {
	var recipients openpgp.EntityList
	for _, armored := range recipientsArmored {
		entities, err := ParseArmoredKey(armored)
		if err != nil {
			return nil, fmt.Errorf("parse recipient key: %w", err)
		}
		recipients = append(recipients, entities...)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipient keys provided")
	}

	var armored bytes.Buffer
	armorWriter, err := armor.Encode(&armored, "PGP MESSAGE", nil)
	if err != nil {
		return nil, fmt.Errorf("create armor writer: %w", err)
	}

	w, err := openpgp.Encrypt(armorWriter, recipients, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create encryption writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("write plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close encryption writer: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("close armor writer: %w", err)
	}
	return armored.Bytes(), nil
}

// Decrypt opens an ASCII-armored or binary PGP message using privateArmored,
// the account's own secret key.
func Decrypt(privateArmored string, sealed []byte) ([]byte, error) {
	keyring, err := ParseArmoredKey(privateArmored)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	var reader io.Reader
	if block, armErr := armor.Decode(bytes.NewReader(sealed)); armErr == nil {
		reader = block.Body
	} else {
		reader = bytes.NewReader(sealed)
	}

	md, err := openpgp.ReadMessage(reader, keyring, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt message: %w", err)
	}
	plaintext, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return nil, fmt.Errorf("read decrypted body: %w", err)
	}
	return plaintext, nil
}

// Sign produces a detached, binary (non-armored) PGP signature over data
// using privateArmored, suitable for storing as a raw blob in the
// message_signatures table.
func Sign(privateArmored string, data []byte) ([]byte, error) {
	entities, err := ParseArmoredKey(privateArmored)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	if len(entities) == 0 || entities[0].PrivateKey == nil {
		return nil, fmt.Errorf("signing key has no private half")
	}

	var sig bytes.Buffer
	if err := openpgp.DetachSign(&sig, entities[0], bytes.NewReader(data), &packet.Config{}); err != nil {
		return nil, fmt.Errorf("create detached signature: %w", err)
	}
	return sig.Bytes(), nil
}

// Verify checks a detached binary signature over data against publicArmored.
// It returns nil if the signature verifies.
func Verify(publicArmored string, data, signature []byte) error {
	entities, err := ParseArmoredKey(publicArmored)
	if err != nil {
		return fmt.Errorf("parse verification key: %w", err)
	}
	_, err = openpgp.CheckDetachedSignature(entities, bytes.NewReader(data), bytes.NewReader(signature), nil)
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}
