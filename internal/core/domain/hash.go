package domain

import (
	"encoding/hex"
	"strings"

	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	"github.com/cometbft/cometbft/crypto/tmhash"
)

// NormalizeHash returns the upper-case hex form used by the ledger for tx hashes.
func NormalizeHash(hash string) (string, error) {
	h := strings.TrimSpace(hash)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if h == "" {
		return "", ErrInvalidHash
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return "", ErrInvalidHash
	}
	return cmtbytes.HexBytes(raw).String(), nil
}

// IsCanonicalHash reports whether hash is a full SHA-256 transaction hash.
func IsCanonicalHash(hash string) bool {
	h, err := NormalizeHash(hash)
	if err != nil {
		return false
	}
	return len(h) == tmhash.Size*2
}
