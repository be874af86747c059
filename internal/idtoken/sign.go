// internal/idtoken/sign.go
//
// Minting of LTI 1.3 launch id_tokens from flat launch parameters. The
// claim tree comes from the parameter mapper; this file adds the OIDC
// envelope (iss/aud/iat/exp/nonce) and the message-type translation
// between the 1.x and 1.3 vocabularies.
package idtoken

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campushq/ltibridge/internal/claims"
	"github.com/campushq/ltibridge/internal/keys"
	"github.com/campushq/ltibridge/internal/tool"
)

// Claim URIs set directly by the signer, on top of the mapped tree.
const (
	claimMessageType   = "https://purl.imsglobal.org/spec/lti/claim/message_type"
	claimVersion       = "https://purl.imsglobal.org/spec/lti/claim/version"
	claimDeploymentID  = "https://purl.imsglobal.org/spec/lti/claim/deployment_id"
	claimTargetLinkURI = "https://purl.imsglobal.org/spec/lti/claim/target_link_uri"
	claimRoles         = "https://purl.imsglobal.org/spec/lti/claim/roles"
)

// 1.x message type <-> 1.3 message type.
var messageTypeTo13 = map[string]string{
	"basic-lti-launch-request":    "LtiResourceLinkRequest",
	"ContentItemSelectionRequest": "LtiDeepLinkingRequest",
	"ContentItemSelection":        "LtiDeepLinkingResponse",
}

var messageTypeFrom13 = map[string]string{
	"LtiResourceLinkRequest": "basic-lti-launch-request",
	"LtiDeepLinkingRequest":  "ContentItemSelectionRequest",
	"LtiDeepLinkingResponse": "ContentItemSelection",
}

// TokenLifetime is how long a minted id_token stays acceptable.
const TokenLifetime = 60 * time.Second

// Signer mints launch id_tokens for registered 1.3 tools.
type Signer struct {
	Keys   *keys.Manager
	Issuer string
	Now    func() time.Time
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sign converts flat launch parameters into a signed id_token for the
// given tool. The lti_message_type and lti_version parameters are
// rewritten to their 1.3 forms and legacy role names are upgraded to
// LIS v2 URIs before mapping. An empty nonce gets a random value.
func (s *Signer) Sign(ctx context.Context, tt *tool.ToolType, deploymentID, targetLinkURI, nonce string, params map[string]string) (string, error) {
	if tt.ClientID == "" {
		return "", errors.New("idtoken: tool has no client_id")
	}

	copied := make(map[string]string, len(params))
	for k, v := range params {
		copied[k] = v
	}
	if roles, ok := copied["roles"]; ok {
		copied["roles"] = strings.Join(claims.NormalizeRoleList(roles), ",")
	}

	payload := claims.ToClaims(copied)

	msgType := messageTypeTo13[copied["lti_message_type"]]
	if msgType == "" {
		msgType = "LtiResourceLinkRequest"
	}
	payload[claimMessageType] = msgType
	payload[claimVersion] = tool.VersionLTI13
	if deploymentID != "" {
		payload[claimDeploymentID] = deploymentID
	}
	if targetLinkURI != "" {
		payload[claimTargetLinkURI] = targetLinkURI
	}
	if nonce == "" {
		nonce = randomNonce()
	}

	now := s.now()
	payload["iss"] = s.Issuer
	payload["aud"] = tt.ClientID
	payload["nonce"] = nonce
	payload["iat"] = now.Unix()
	payload["exp"] = now.Add(TokenLifetime).Unix()

	signed, err := s.Keys.Sign(ctx, jwt.MapClaims(payload))
	if err != nil {
		return "", fmt.Errorf("idtoken: %w", err)
	}
	return signed, nil
}

func randomNonce() string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
