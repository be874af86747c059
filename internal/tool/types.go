// internal/tool/types.go
package tool

import (
	"context"
	"errors"
	"strings"
	"time"
)

/*
Package tool holds the registrations that the launch trust engine operates
on: tool types (one per registered external tool), tool proxies (LTI 2.0
tool producers), and the scoped access tokens minted for service calls.

The package also owns key/secret resolution: given a tool type id, decide
which signature scheme applies (OAuth 1.0a, stored RSA key, or a remote
JWKS document) and return the matching key material. A proxy-backed tool
signs with the proxy's GUID/secret pair, never with its own consumer key.
*/

// LTI version tags as stored on a tool type.
const (
	VersionLTI1  = "1.0"
	VersionLTI2  = "2.0"
	VersionLTI13 = "1.3.0"
)

// Tool type / proxy lifecycle states.
const (
	StatePending    = "pending"
	StateConfigured = "configured"
	StateAccepted   = "accepted"
	StateRejected   = "rejected"
)

// Public key modes for an LTI 1.3 tool. An empty KeyType means KeyTypeRSA;
// legacy rows predate the column and were all RSA-key tools.
const (
	KeyTypeRSA  = "RSA_KEY"
	KeyTypeJWKS = "JWK_KEYSET"
)

// SiteCourseID marks a tool as global (not owned by any one course).
const SiteCourseID int64 = 0

// A ToolType is a platform-side registration of an external tool.
type ToolType struct {
	ID         int64
	Name       string
	BaseURL    string
	ToolDomain string
	LTIVersion string
	State      string

	// LTI 1.1 / 2.0 credentials.
	ConsumerKey  string
	SharedSecret string
	// SecretHash authenticates the tool at the OAuth2 token endpoint
	// (bcrypt hash, or plain text for dev installs).
	SecretHash string

	// LTI 1.3 credentials. Exactly one of PublicKey / KeysetURL is
	// authoritative, selected by KeyType.
	ClientID     string
	PublicKey    string // PEM-encoded RSA public key
	KeysetURL    string
	KeyType      string
	LoginURL     string // tool's OIDC initiate-login endpoint
	DeploymentID string

	// Newline-delimited capability names enabled for this tool.
	EnabledCapabilities string
	// Raw "key=value" lines configured by the admin.
	CustomParameters string

	CourseVisible bool
	CourseID      int64 // SiteCourseID when registered site-wide
	ProxyID       int64 // 0 when the tool is not proxy-backed

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Capabilities returns the enabled-capabilities list split into names.
func (t ToolType) Capabilities() []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(t.EnabledCapabilities, "\r", "\n"), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// A ToolProxy is an LTI 2.0 registration of a tool producer. The GUID acts
// as the OAuth consumer key for every tool type the proxy offers.
type ToolProxy struct {
	ID              int64
	Name            string
	RegistrationURL string
	State           string
	GUID            string
	Secret          string
	// Newline-delimited capability / service offers from registration.
	Capabilities string
	Services     string
	CreatedAt    time.Time
}

// An AccessToken is an opaque scoped bearer credential. Immutable once
// issued except for last-access bookkeeping.
type AccessToken struct {
	ID         int64
	ToolTypeID int64
	Token      string
	Scope      []string
	CreatedAt  time.Time
	ValidUntil time.Time
	LastAccess *time.Time
}

var (
	// ErrNotFound is returned when a tool type, proxy or token does not
	// exist. Fatal to verification: without a record there is no key
	// material to check a signature against.
	ErrNotFound = errors.New("tool: record not found")
)

// Store manages tool type and tool proxy records.
type Store interface {
	GetToolType(ctx context.Context, id int64) (ToolType, error)
	// GetToolTypeByClientID finds the 1.3 tool registered under clientID.
	GetToolTypeByClientID(ctx context.Context, clientID string) (ToolType, error)
	// GetToolTypeByConsumerKey finds the 1.1/2.0 tool whose consumer key
	// matches. Proxy-backed tools are found via GetProxyByGUID instead.
	GetToolTypeByConsumerKey(ctx context.Context, consumerKey string) (ToolType, error)
	// ListToolTypes returns tools visible to courseID plus global tools.
	// A courseID of SiteCourseID lists everything.
	ListToolTypes(ctx context.Context, courseID int64) ([]ToolType, error)
	SaveToolType(ctx context.Context, t *ToolType) error
	// DeleteToolType cascades to the tool's settings and, when it removes
	// the last tool on a proxy, to the proxy itself.
	DeleteToolType(ctx context.Context, id int64) error

	GetProxy(ctx context.Context, id int64) (ToolProxy, error)
	GetProxyByGUID(ctx context.Context, guid string) (ToolProxy, error)
	SaveProxy(ctx context.Context, p *ToolProxy) error
}

// TokenStore manages issued access tokens. The token column must carry a
// store-level uniqueness constraint; issuance relies on it rather than on
// in-process locking.
type TokenStore interface {
	TokenExists(ctx context.Context, token string) (bool, error)
	SaveToken(ctx context.Context, t *AccessToken) error
	// FindToken fetches a token by its opaque value, optionally scoped to
	// one tool type (0 means any tool). Returns ErrNotFound when absent.
	FindToken(ctx context.Context, token string, toolTypeID int64) (AccessToken, error)
	TouchToken(ctx context.Context, id int64, at time.Time) error
}
