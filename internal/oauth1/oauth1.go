// internal/oauth1/oauth1.go
//
// OAuth 1.0a HMAC-SHA1 signing and verification for form-post launches.
// Only the pieces LTI uses are implemented: two-legged requests, a single
// consumer key/secret pair, no token secret.
package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidConsumerKey means the request names a consumer key the
	// verifier does not hold a secret for.
	ErrInvalidConsumerKey = errors.New("oauth1: unknown consumer key")
	// ErrSignatureInvalid means the recomputed signature does not match
	// the one presented.
	ErrSignatureInvalid = errors.New("oauth1: signature mismatch")
	// ErrMissingSignature means the request carries no oauth_signature.
	ErrMissingSignature = errors.New("oauth1: missing signature")
)

const signatureMethod = "HMAC-SHA1"

// percentEncode applies the strict RFC 3986 encoding OAuth requires.
// url.QueryEscape is not usable here: it turns spaces into '+' and leaves
// characters like '~' alone only by accident of version.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
	}
	return b.String()
}

// baseString builds the OAuth signature base string from the HTTP method,
// the launch URL and every request parameter except oauth_signature.
func baseString(method, rawURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "oauth_signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(params[k]))
	}
	return strings.ToUpper(method) + "&" +
		percentEncode(rawURL) + "&" +
		percentEncode(strings.Join(pairs, "&"))
}

// computeSignature signs the base string with the consumer secret. LTI
// launches are two-legged, so the token secret half of the key is empty.
func computeSignature(base, consumerSecret string) string {
	mac := hmac.New(sha1.New, []byte(percentEncode(consumerSecret)+"&"))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Sign adds the oauth_* protocol parameters to params and signs the
// request. The input map is mutated and returned for convenience.
func Sign(method, rawURL, consumerKey, consumerSecret string, params map[string]string) map[string]string {
	params["oauth_version"] = "1.0"
	params["oauth_consumer_key"] = consumerKey
	params["oauth_signature_method"] = signatureMethod
	params["oauth_timestamp"] = strconv.FormatInt(time.Now().Unix(), 10)
	params["oauth_nonce"] = nonce()
	params["oauth_callback"] = "about:blank"
	params["oauth_signature"] = computeSignature(baseString(method, rawURL, params), consumerSecret)
	return params
}

// Verify checks a signed request against the expected consumer key and
// secret. The consumer key is checked first so callers can distinguish
// "who is this" failures from tampering.
func Verify(method, rawURL, consumerKey, consumerSecret string, params map[string]string) error {
	if params["oauth_consumer_key"] != consumerKey {
		return ErrInvalidConsumerKey
	}
	presented := params["oauth_signature"]
	if presented == "" {
		return ErrMissingSignature
	}
	expected := computeSignature(baseString(method, rawURL, params), consumerSecret)
	if !hmac.Equal([]byte(expected), []byte(presented)) {
		return ErrSignatureInvalid
	}
	return nil
}

func nonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on the platforms we run on.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
