package candles

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidMint marks a symbol that is not a valid mint address.
var ErrInvalidMint = errors.New("invalid mint address")

// mintLen is the byte length of a decoded mint public key.
const mintLen = 32

// LooksLikeMint reports whether a symbol is shaped like a mint address
// rather than a ticker pair. Base58-encoded 32-byte keys are 32 to 44
// characters and never contain a separator.
func LooksLikeMint(symbol string) bool {
	if len(symbol) < 32 || len(symbol) > 44 {
		return false
	}
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '-' || symbol[i] == '/' {
			return false
		}
	}
	return true
}

// ValidateMint checks that a mint address is well-formed base58 and
// decodes to a 32-byte ed25519 point. Token mints are program-derived
// addresses, so off-curve points are accepted; this only rejects
// strings that cannot be a public key at all.
func ValidateMint(mint string) error {
	if mint == "" {
		return fmt.Errorf("%w: empty", ErrInvalidMint)
	}

	decoded, err := base58.Decode(mint)
	if err != nil {
		return fmt.Errorf("%w: not base58: %v", ErrInvalidMint, err)
	}
	if len(decoded) != mintLen {
		return fmt.Errorf("%w: decoded to %d bytes, want %d", ErrInvalidMint, len(decoded), mintLen)
	}
	return nil
}

// OnCurve reports whether a mint address decodes to a point on the
// ed25519 curve. Wallet addresses are on-curve; program-derived
// addresses are not.
func OnCurve(mint string) (bool, error) {
	decoded, err := base58.Decode(mint)
	if err != nil {
		return false, fmt.Errorf("%w: not base58: %v", ErrInvalidMint, err)
	}
	if len(decoded) != mintLen {
		return false, fmt.Errorf("%w: decoded to %d bytes, want %d", ErrInvalidMint, len(decoded), mintLen)
	}

	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil, nil
}
