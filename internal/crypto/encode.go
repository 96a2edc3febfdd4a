package crypto

import (
	"encoding/base64"
	"encoding/hex"

	"chatcore/internal/domain"
)

// B64 returns standard base64 encoding without newlines.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// DecodeB64 strictly decodes standard padded base64.
func DecodeB64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, domain.Malformed("base64: %v", err)
	}
	return b, nil
}

// Hex returns lowercase hex.
func Hex(b []byte) string { return hex.EncodeToString(b) }

// DecodeHex decodes hex, rejecting odd lengths and non-hex characters.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, domain.Malformed("hex: %v", err)
	}
	return b, nil
}
