// Package auth authenticates back-office callers by API key.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
)

// ErrUnknownKey is returned when no key matches the presented hash.
var ErrUnknownKey = errors.New("unknown api key")

// APIKeyInfo identifies an accepted key.
type APIKeyInfo struct {
	Name    string
	KeyHash string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// Hash returns the hex HMAC-SHA256 of key under pepper, the form in which
// keys are configured.
func Hash(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// StaticKeys is a Repository over configured "name:hash" pairs. A bare hash
// is named "admin".
type StaticKeys map[string]APIKeyInfo

// ParseStaticKeys parses configured key entries.
func ParseStaticKeys(entries []string) (StaticKeys, error) {
	keys := make(StaticKeys, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		name, hash, ok := strings.Cut(e, ":")
		if !ok {
			name, hash = "admin", e
		}
		hash = strings.ToLower(hash)
		if _, err := hex.DecodeString(hash); err != nil || len(hash) != sha256.Size*2 {
			return nil, errors.Errorf("api key %q: hash must be %d hex characters", name, sha256.Size*2)
		}
		keys[hash] = APIKeyInfo{Name: name, KeyHash: hash}
	}
	return keys, nil
}

func (k StaticKeys) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	info, ok := k[hash]
	if !ok {
		return nil, ErrUnknownKey
	}
	return &info, nil
}
