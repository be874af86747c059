package oauth1

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"
)

const (
	testKey    = "consumer-key-1"
	testSecret = "sekrit"
	launchURL  = "https://tool.example.com/launch"
)

func TestPercentEncode(t *testing.T) {
	cases := []struct{ in, want string }{
		{"abcXYZ019-._~", "abcXYZ019-._~"},
		{"a b", "a%20b"},
		{"a+b", "a%2Bb"},
		{"https://x/y?z=1", "https%3A%2F%2Fx%2Fy%3Fz%3D1"},
		{"é", "%C3%A9"},
	}
	for _, c := range cases {
		if got := percentEncode(c.in); got != c.want {
			t.Errorf("percentEncode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	params := Sign("POST", launchURL, testKey, testSecret, map[string]string{
		"lti_message_type": "basic-lti-launch-request",
		"lti_version":      "LTI-1p0",
		"resource_link_id": "rl-1",
	})
	for _, p := range []string{"oauth_consumer_key", "oauth_nonce", "oauth_timestamp", "oauth_signature"} {
		if params[p] == "" {
			t.Fatalf("Sign left %s empty", p)
		}
	}
	if err := Verify("POST", launchURL, testKey, testSecret, params); err != nil {
		t.Fatalf("Verify of our own signature: %v", err)
	}
}

func TestVerifyTamperedParameter(t *testing.T) {
	params := Sign("POST", launchURL, testKey, testSecret, map[string]string{
		"resource_link_id": "rl-1",
	})
	params["resource_link_id"] = "rl-2"
	if err := Verify("POST", launchURL, testKey, testSecret, params); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("err = %v, want ErrSignatureInvalid", err)
	}
}

func TestVerifyWrongConsumerKey(t *testing.T) {
	params := Sign("POST", launchURL, "other-key", testSecret, map[string]string{})
	if err := Verify("POST", launchURL, testKey, testSecret, params); !errors.Is(err, ErrInvalidConsumerKey) {
		t.Fatalf("err = %v, want ErrInvalidConsumerKey", err)
	}
}

func TestVerifyMissingSignature(t *testing.T) {
	params := map[string]string{"oauth_consumer_key": testKey}
	if err := Verify("POST", launchURL, testKey, testSecret, params); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("err = %v, want ErrMissingSignature", err)
	}
}

func TestVerifySignedBody(t *testing.T) {
	body := []byte(`<result score="0.8"/>`)
	serviceURL := "https://lms.example.edu/outcomes"

	hdr := SignedBodyHeader("POST", serviceURL, testKey, testSecret, body)
	req := httptest.NewRequest("POST", serviceURL, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Authorization", hdr)

	if err := VerifySignedBody(req, body, testKey, testSecret, serviceURL); err != nil {
		t.Fatalf("VerifySignedBody: %v", err)
	}

	// A swapped body keeps the signature valid but breaks the hash.
	altered := []byte(`<result score="1.0"/>`)
	if err := VerifySignedBody(req, altered, testKey, testSecret, serviceURL); !errors.Is(err, ErrBodyHashMismatch) {
		t.Fatalf("err = %v, want ErrBodyHashMismatch", err)
	}
}

func TestVerifySignedBodyRejectsFormEncoding(t *testing.T) {
	req := httptest.NewRequest("POST", launchURL, nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := VerifySignedBody(req, nil, testKey, testSecret, launchURL); !errors.Is(err, ErrFormEncodedBody) {
		t.Fatalf("err = %v, want ErrFormEncodedBody", err)
	}
}

func TestParseAuthorizationHeader(t *testing.T) {
	hdr := `OAuth realm="", oauth_consumer_key="abc%2Fd", oauth_signature="sig%3D"`
	got := ParseAuthorizationHeader(hdr)
	if got["oauth_consumer_key"] != "abc/d" {
		t.Fatalf("consumer key = %q", got["oauth_consumer_key"])
	}
	if got["oauth_signature"] != "sig=" {
		t.Fatalf("signature = %q", got["oauth_signature"])
	}
	if ParseAuthorizationHeader("Bearer tok") != nil {
		t.Fatal("non-OAuth scheme must return nil")
	}
}
