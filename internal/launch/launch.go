// internal/launch/launch.go
//
// Launch orchestration: given a placed activity and the user who clicked
// it, find the tool registration, assemble the launch parameters and
// produce the form post the browser submits. 1.0/2.0 tools get an OAuth
// 1.0a signed parameter set; 1.3 tools get an OIDC login initiation and,
// once the tool comes back through the authorization endpoint, a signed
// id_token.
package launch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/campushq/ltibridge/internal/custom"
	"github.com/campushq/ltibridge/internal/idtoken"
	"github.com/campushq/ltibridge/internal/oauth1"
	"github.com/campushq/ltibridge/internal/tool"
)

var (
	// ErrNoMatchingTool means no registration matched the activity URL.
	ErrNoMatchingTool = errors.New("launch: no tool matches the activity URL")
	// ErrNoCredentials means the matched registration carries no key
	// material for its declared security scheme.
	ErrNoCredentials = errors.New("launch: tool registration has no usable credentials")
)

// Activity is one placed tool link.
type Activity struct {
	ID               string // resource link id
	CourseID         int64
	Title            string
	Description      string
	LaunchURL        string
	SourcedID        string // basic outcomes result cell, empty when ungraded
	CustomParameters string // raw key=value blob from the placement
	MessageType      string // defaults to basic-lti-launch-request
}

// Platform describes the LMS the launch originates from.
type Platform struct {
	URL               string // issuer
	Name              string
	Version           string
	FamilyCode        string
	ContactEmail      string
	GUID              string
	OutcomeServiceURL string
	LoginReturnURL    string
}

// FormPost is a launch rendered as an auto-submitting form.
type FormPost struct {
	URL    string
	Params map[string]string
}

// Orchestrator wires the stores and signers a launch needs.
type Orchestrator struct {
	Tools    tool.Store
	Signer   *idtoken.Signer
	Platform Platform
	Log      *logrus.Logger
}

// FindTool picks the registration for an activity. Explicitly pinned
// tools bypass matching; otherwise every visible registration competes
// on URL proximity.
func (o *Orchestrator) FindTool(ctx context.Context, act Activity, pinnedToolID int64) (tool.ToolType, error) {
	if pinnedToolID != 0 {
		return o.Tools.GetToolType(ctx, pinnedToolID)
	}
	candidates, err := o.Tools.ListToolTypes(ctx, act.CourseID)
	if err != nil {
		return tool.ToolType{}, err
	}
	tt, ok := tool.BestMatchByURL(act.LaunchURL, candidates, act.CourseID)
	if !ok {
		return tool.ToolType{}, ErrNoMatchingTool
	}
	return tt, nil
}

// BuildParameters assembles the flat launch parameter set for an
// activity: protocol fields, user and course descriptors, outcome
// service wiring and the expanded custom parameters.
func (o *Orchestrator) BuildParameters(tt *tool.ToolType, act Activity, lctx custom.Context) map[string]string {
	msgType := act.MessageType
	if msgType == "" {
		msgType = "basic-lti-launch-request"
	}
	params := map[string]string{
		"lti_message_type": msgType,
		"lti_version":      wireVersion(tt.LTIVersion),
		"resource_link_id": act.ID,
	}
	setIfPresent(params, "resource_link_title", act.Title)
	setIfPresent(params, "resource_link_description", act.Description)

	setIfPresent(params, "user_id", lctx.User.ID)
	setIfPresent(params, "lis_person_name_given", lctx.User.GivenName)
	setIfPresent(params, "lis_person_name_family", lctx.User.FamilyName)
	setIfPresent(params, "lis_person_name_full", lctx.User.FullName)
	setIfPresent(params, "lis_person_contact_email_primary", lctx.User.Email)

	setIfPresent(params, "context_id", lctx.Course.ID)
	setIfPresent(params, "context_label", lctx.Course.ShortName)
	setIfPresent(params, "context_title", lctx.Course.FullName)
	if lctx.Course.ID != "" {
		params["context_type"] = "CourseSection"
	}

	setIfPresent(params, "tool_consumer_info_product_family_code", o.Platform.FamilyCode)
	setIfPresent(params, "tool_consumer_info_version", o.Platform.Version)
	setIfPresent(params, "tool_consumer_instance_guid", o.Platform.GUID)
	setIfPresent(params, "tool_consumer_instance_name", o.Platform.Name)
	setIfPresent(params, "tool_consumer_instance_url", o.Platform.URL)
	setIfPresent(params, "tool_consumer_instance_contact_email", o.Platform.ContactEmail)
	setIfPresent(params, "launch_presentation_return_url", o.Platform.LoginReturnURL)

	if act.SourcedID != "" && o.Platform.OutcomeServiceURL != "" {
		params["lis_result_sourcedid"] = act.SourcedID
		params["lis_outcome_service_url"] = o.Platform.OutcomeServiceURL
	}

	exp := &custom.Expander{
		LTI2:         tt.LTIVersion == tool.VersionLTI2,
		Capabilities: capabilitySet(tt),
		Params:       params,
	}
	originalKeys := tt.LTIVersion == tool.VersionLTI2 || tt.LTIVersion == tool.VersionLTI13
	blob := strings.TrimSpace(tt.CustomParameters + "\n" + act.CustomParameters)
	for k, v := range exp.ExpandAll(blob, lctx, originalKeys) {
		params[k] = v
	}
	return params
}

// Launch produces the browser form for an activity. 1.3 registrations
// get a login initiation post; everything else gets the signed
// parameter set posted straight at the launch URL.
func (o *Orchestrator) Launch(ctx context.Context, tt *tool.ToolType, act Activity, lctx custom.Context) (FormPost, error) {
	if tt.LTIVersion == tool.VersionLTI13 {
		return o.loginInitiation(tt, act, lctx)
	}
	return o.launchSigned(ctx, tt, act, lctx)
}

func (o *Orchestrator) launchSigned(ctx context.Context, tt *tool.ToolType, act Activity, lctx custom.Context) (FormPost, error) {
	km, err := tool.ResolveKey(ctx, o.Tools, tt.ID)
	if err != nil {
		return FormPost{}, err
	}
	if km.Scheme != tool.SchemeOAuth1 {
		return FormPost{}, ErrNoCredentials
	}

	endpoint := act.LaunchURL
	if endpoint == "" {
		endpoint = tt.BaseURL
	}
	params := o.BuildParameters(tt, act, lctx)
	oauth1.Sign("POST", endpoint, km.ConsumerKey, km.SharedSecret, params)

	if o.Log != nil {
		o.Log.WithFields(logrus.Fields{
			"tool":     tt.ID,
			"activity": act.ID,
			"version":  tt.LTIVersion,
		}).Info("signed launch")
	}
	return FormPost{URL: endpoint, Params: params}, nil
}

// loginInitiation starts the 1.3 OIDC third-party login flow. The
// message hint carries a fresh launch id the authorization endpoint uses
// to recover the pending launch.
func (o *Orchestrator) loginInitiation(tt *tool.ToolType, act Activity, lctx custom.Context) (FormPost, error) {
	if tt.ClientID == "" {
		return FormPost{}, ErrNoCredentials
	}
	target := act.LaunchURL
	if target == "" {
		target = tt.BaseURL
	}
	params := map[string]string{
		"iss":              o.Platform.URL,
		"target_link_uri":  target,
		"login_hint":       lctx.User.ID,
		"lti_message_hint": ulid.Make().String(),
		"client_id":        tt.ClientID,
	}
	if tt.DeploymentID != "" {
		params["lti_deployment_id"] = tt.DeploymentID
	}
	endpoint := tt.LoginURL
	if endpoint == "" {
		endpoint = target
	}
	return FormPost{URL: endpoint, Params: params}, nil
}

// LaunchJWT answers a 1.3 authorization request with the signed
// id_token form post back to the tool's redirect URI.
func (o *Orchestrator) LaunchJWT(ctx context.Context, tt *tool.ToolType, act Activity, lctx custom.Context, redirectURI, state, nonce string) (FormPost, error) {
	target := act.LaunchURL
	if target == "" {
		target = tt.BaseURL
	}
	params := o.BuildParameters(tt, act, lctx)
	raw, err := o.Signer.Sign(ctx, tt, tt.DeploymentID, target, nonce, params)
	if err != nil {
		return FormPost{}, fmt.Errorf("launch: %w", err)
	}
	out := map[string]string{"id_token": raw}
	if state != "" {
		out["state"] = state
	}
	if redirectURI == "" {
		redirectURI = target
	}
	if o.Log != nil {
		o.Log.WithFields(logrus.Fields{"tool": tt.ID, "activity": act.ID}).Info("jwt launch")
	}
	return FormPost{URL: redirectURI, Params: out}, nil
}

func wireVersion(v string) string {
	switch v {
	case tool.VersionLTI2:
		return "LTI-2p0"
	case tool.VersionLTI13:
		return "1.3.0"
	default:
		return "LTI-1p0"
	}
}

func setIfPresent(params map[string]string, key, value string) {
	if value != "" {
		params[key] = value
	}
}

func capabilitySet(tt *tool.ToolType) map[string]bool {
	caps := tt.Capabilities()
	if len(caps) == 0 {
		return nil
	}
	out := make(map[string]bool, len(caps))
	for _, c := range caps {
		out[c] = true
	}
	return out
}
