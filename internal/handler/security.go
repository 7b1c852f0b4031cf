package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/eubiosis/checkout/internal/domain/auth"
)

// APIKeyHeader carries the back-office API key.
const APIKeyHeader = "api_key"

// SecurityHandler authenticates back-office requests via HMAC-SHA256 hashed
// API keys.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate hashes key, looks it up and compares in constant time.
func (s *SecurityHandler) Authenticate(r *http.Request, key string) (*auth.APIKeyInfo, bool) {
	if s.apikeys == nil || key == "" {
		return nil, false
	}
	hexHash := auth.Hash(key, s.pepper)

	info, err := s.apikeys.FindByHash(r.Context(), hexHash)
	if err != nil {
		return nil, false
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, false
	}
	computed, _ := hex.DecodeString(hexHash)
	if subtle.ConstantTimeCompare(computed, stored) != 1 {
		return nil, false
	}
	return info, true
}

// Middleware rejects requests without a valid API key.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := s.Authenticate(r, r.Header.Get(APIKeyHeader))
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		ctx := zctx.Base(r.Context(), zctx.From(r.Context()).With(zap.String("api_key", info.Name)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
