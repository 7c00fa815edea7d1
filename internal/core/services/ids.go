package services

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const installationIDPrefix = "inst_"

// idGenerator produces lexicographically sortable, timestamp-derived IDs
// from a monotonic entropy source. Safe for concurrent use.
type idGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var (
	idOnce sync.Once
	ids    *idGenerator
)

// generateInstallationIDAt generates a unique installation ID stamped with t.
func generateInstallationIDAt(t time.Time) string {
	idOnce.Do(func() {
		ids = &idGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
	})

	ids.mu.Lock()
	defer ids.mu.Unlock()
	return installationIDPrefix + ulid.MustNew(ulid.Timestamp(t), ids.entropy).String()
}

// generateRandomString generates a cryptographically secure random string.
func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}
