package fossilmmr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Hash is a 32-byte MMR node value: a leaf's raw block hash, or the
// keccak256 of a parent's two children.
type Hash [32]byte

// String renders a Hash as a "0x"-prefixed lowercase hex string.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// ParseHash decodes a "0x"-prefixed (or bare) 32-byte hex string, the
// shape block hashes arrive in from the RPC client / block store.
func ParseHash(s string) (Hash, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return Hash{}, fmt.Errorf("fossilmmr: invalid hash %q: %w", s, err)
	}
	if len(b) != 32 {
		return Hash{}, fmt.Errorf("fossilmmr: hash %q is %d bytes, want 32", s, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// hashParent combines two child node hashes into their parent's hash.
func hashParent(left, right Hash) Hash {
	return Hash(crypto.Keccak256Hash(left[:], right[:]))
}
