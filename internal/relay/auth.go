package relay

import (
	"crypto/subtle"
	"fmt"
	"regexp"
	"strings"

	"chatcore/internal/crypto"
	"chatcore/internal/domain"
)

// AuthScheme prefixes the Authorization header.
const AuthScheme = "CHATCORE_V1"

var authParamRe = regexp.MustCompile(`(\w+)= ?"([^"]+)"`)

// Credentials authenticate a device to the relay.
type Credentials struct {
	LoginKey  domain.SymmetricKey
	Signature domain.SignatureBundle
}

// NewCredentials signs loginKey with dev.
func NewCredentials(loginKey domain.SymmetricKey, dev domain.LocalDevice) Credentials {
	return Credentials{
		LoginKey: loginKey,
		Signature: domain.SignatureBundle{
			DeviceID:  dev.ID,
			Signature: crypto.SignEd25519(dev.Privkey, loginKey[:]),
		},
	}
}

// Header renders c as an Authorization header value.
func (c Credentials) Header() string {
	return fmt.Sprintf(`%s loginKey="%s", signature="%s"`, AuthScheme, crypto.B64(c.LoginKey[:]), c.Signature)
}

// ParseAuthorization parses a header produced by Credentials.Header.
func ParseAuthorization(h string) (Credentials, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(h), AuthScheme)
	if !ok {
		return Credentials{}, domain.Malformed("authorization: missing %s scheme", AuthScheme)
	}
	params := make(map[string]string, 2)
	for _, m := range authParamRe.FindAllStringSubmatch(rest, -1) {
		params[m[1]] = m[2]
	}

	var c Credentials
	if err := c.LoginKey.UnmarshalText([]byte(params["loginKey"])); err != nil {
		return Credentials{}, err
	}
	sig, err := domain.ParseSignatureBundle(params["signature"])
	if err != nil {
		return Credentials{}, err
	}
	c.Signature = sig
	return c, nil
}

// Verify checks that c was produced by dev and carries storedLoginKey.
func (c Credentials) Verify(dev domain.ServerDevice, storedLoginKey domain.SymmetricKey) error {
	if c.Signature.DeviceID != dev.ID {
		return domain.VerificationFailed("authorization: signed by %s, not %s", c.Signature.DeviceID, dev.ID)
	}
	if !crypto.VerifyEd25519(dev.Pubkey, c.LoginKey[:], c.Signature.Signature) {
		return domain.VerificationFailed("authorization: bad signature from %s", dev.ID)
	}
	if subtle.ConstantTimeCompare(c.LoginKey[:], storedLoginKey[:]) != 1 {
		return domain.VerificationFailed("authorization: wrong login key for user %d", dev.OwnerID)
	}
	return nil
}
