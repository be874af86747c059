// internal/httpapi/jwks.go
package httpapi

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/campushq/ltibridge/internal/keys"
)

// handleJWKS publishes the platform's public signing keys. Tools poll
// this endpoint, so the payload carries cache headers and honors
// conditional GETs.
func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	set, err := s.Keys.PublicJWKS(r.Context())
	if err != nil {
		s.logger().WithError(err).Error("jwks build failed")
		http.Error(w, "jwks unavailable", http.StatusInternalServerError)
		return
	}
	if set.Keys == nil {
		set.Keys = []keys.RSAPublicJWK{}
	}
	payload, err := json.Marshal(set)
	if err != nil {
		http.Error(w, "jwks marshal error", http.StatusInternalServerError)
		return
	}

	etag := computeETag(payload)
	w.Header().Set("Content-Type", "application/jwk-set+json")
	w.Header().Set("Cache-Control", "public, max-age=600")
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	_, _ = w.Write(payload)
}

func computeETag(b []byte) string {
	sum := sha256.Sum256(b)
	return `W/"` + base64.RawURLEncoding.EncodeToString(sum[:]) + `"`
}
