package crypto

import (
	"sync"

	"github.com/voxsafe/voxsafe/internal/util"
)

// nonceGuard tracks every nonce sealed under each key for the lifetime of
// the process, making nonce reuse a structural impossibility rather than a
// probabilistic one. Entries are keyed by key fingerprint, not by name, so
// a key reached through several identifiers shares one nonce set. It does
// not persist across restarts; callers whose volumes approach the birthday
// bound for 96-bit nonces must rotate keys.
type nonceGuard struct {
	mu   sync.Mutex
	seen map[string]map[[util.NonceSize]byte]struct{}
}

func newNonceGuard() *nonceGuard {
	return &nonceGuard{seen: make(map[string]map[[util.NonceSize]byte]struct{})}
}

// register records nonce for keyID. It reports false when the nonce was
// already used under that key.
func (g *nonceGuard) register(keyID string, nonce []byte) bool {
	if len(nonce) != util.NonceSize {
		return false
	}
	var n [util.NonceSize]byte
	copy(n[:], nonce)

	g.mu.Lock()
	defer g.mu.Unlock()
	used, ok := g.seen[keyID]
	if !ok {
		used = make(map[[util.NonceSize]byte]struct{})
		g.seen[keyID] = used
	}
	if _, dup := used[n]; dup {
		return false
	}
	used[n] = struct{}{}
	return true
}
