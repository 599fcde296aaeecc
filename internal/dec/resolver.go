package dec

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/pgp"
)

// CanonicalizeName normalizes a claimed name to the form submitted to the
// resolver (§4.4): lowercase, whitespace and "+" stripped, the ".test"
// suffix appended.
func CanonicalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "+", "")
	return name + ".test"
}

// ClaimName canonicalizes name, signs it with the account's private key,
// and submits the claim to client. It returns the canonical name on a
// successful claim (the resolver's bound public key matches the account's
// own, compared case-insensitively) or an empty string on mismatch.
//
// Per §4.4 this only applies to decentralized networks, and only for the
// first network variant; callers are responsible for not invoking it for
// any other network.
func ClaimName(ctx context.Context, client StorageClient, privateArmored, pubKeyBase32E, name string) (string, error) {
	canonical := CanonicalizeName(name)

	signature, err := pgp.Sign(privateArmored, []byte(canonical))
	if err != nil {
		return "", errs.Wrap(errs.InvalidArgument, err, "sign name claim")
	}

	bound, err := client.ClaimName(ctx, canonical, pubKeyBase32E, base64.StdEncoding.EncodeToString(signature))
	if err != nil {
		return "", errs.Wrap(errs.Connection, err, "submit name claim")
	}

	if !strings.EqualFold(bound, pubKeyBase32E) {
		return "", nil
	}
	return canonical, nil
}
