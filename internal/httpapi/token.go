// internal/httpapi/token.go
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/campushq/ltibridge/internal/idtoken"
	"github.com/campushq/ltibridge/internal/obs"
	"github.com/campushq/ltibridge/internal/token"
)

const assertionTypeJWT = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// handleToken is the OAuth2 client-credentials endpoint where 1.3 tools
// trade their client credentials for a scoped bearer token. Tools
// authenticate with client_secret_post or private_key_jwt; the granted
// scope is the intersection of the request and the registration.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if !s.limits.allow(r.RemoteAddr) {
		writeTokenError(w, http.StatusTooManyRequests, "slow_down", "rate limit exceeded")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "unparseable form body")
		return
	}
	if g := r.PostFormValue("grant_type"); g != "client_credentials" {
		writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}

	clientID := r.PostFormValue("client_id")
	assertion := r.PostFormValue("client_assertion")
	if clientID == "" && assertion != "" {
		// private_key_jwt assertions carry the client id as their issuer.
		if iss, err := idtoken.PeekIssuer(assertion); err == nil {
			clientID = iss
		}
	}
	if clientID == "" {
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "missing client_id")
		return
	}

	tt, err := s.Tools.GetToolTypeByClientID(r.Context(), clientID)
	if err != nil {
		writeTokenError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	}

	switch {
	case assertion != "":
		if r.PostFormValue("client_assertion_type") != assertionTypeJWT {
			writeTokenError(w, http.StatusBadRequest, "invalid_request", "unsupported assertion type")
			return
		}
		if _, err := s.Verifier.VerifySignature(r.Context(), &tt, clientID, assertion); err != nil {
			s.logger().WithError(err).WithField("client_id", clientID).Warn("client assertion rejected")
			writeTokenError(w, http.StatusUnauthorized, "invalid_client", "assertion verification failed")
			return
		}
	default:
		if err := verifySecret(tt.SecretHash, r.PostFormValue("client_secret")); err != nil {
			writeTokenError(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
			return
		}
	}

	requested := strings.Fields(r.PostFormValue("scope"))
	granted := token.Intersect(requested, tt.Capabilities())
	if len(granted) == 0 {
		writeTokenError(w, http.StatusBadRequest, "invalid_scope", "no requested scope is enabled for this tool")
		return
	}

	at, err := s.Tokens.Issue(r.Context(), tt.ID, granted)
	if err != nil {
		s.logger().WithError(err).Error("token issue failed")
		writeTokenError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	obs.CountTokenIssued()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(at.ValidUntil).Seconds()),
		Scope:       strings.Join(granted, " "),
	})
}

func writeTokenError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(tokenError{Error: code, Description: desc})
}

// verifySecret accepts either a bcrypt hash (prefix "$2") or, for dev
// installs, the raw secret compared in constant time.
func verifySecret(stored, provided string) error {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return errors.New("no client_secret configured")
	}
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(provided))
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) != 1 {
		return errors.New("secret mismatch")
	}
	return nil
}
