// internal/httpapi/launch.go
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campushq/ltibridge/internal/custom"
	"github.com/campushq/ltibridge/internal/launch"
	"github.com/campushq/ltibridge/internal/oauth1"
	"github.com/campushq/ltibridge/internal/obs"
	"github.com/campushq/ltibridge/internal/outcomes"
	"github.com/campushq/ltibridge/internal/tool"
)

const maxOutcomeBody = 1 << 20

// handleLaunch turns a placement described by the posted form into a
// browser launch. 1.1 and 2.0 tools get the signed form directly; 1.3
// tools get the OIDC login initiation, with the launch parked under its
// message hint until the tool comes back to /lti/auth.
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "unparseable form body")
		return
	}

	act := activityFromForm(r)
	lctx := contextFromForm(r)
	pinned, _ := strconv.ParseInt(r.PostFormValue("tool_id"), 10, 64)

	tt, err := s.Orchestrator.FindTool(r.Context(), act, pinned)
	if err != nil {
		writeErr(w, http.StatusNotFound, "no tool registration matches this activity")
		return
	}

	fp, err := s.Orchestrator.Launch(r.Context(), &tt, act, lctx)
	if err != nil {
		obs.CountLaunch(tt.LTIVersion, "error")
		s.logger().WithError(err).WithField("tool", tt.ID).Error("launch failed")
		writeErr(w, http.StatusBadGateway, "launch could not be built")
		return
	}
	obs.CountLaunch(tt.LTIVersion, "ok")

	if hint := fp.Params["lti_message_hint"]; hint != "" {
		s.pending.put(hint, pendingLaunch{ToolID: tt.ID, Activity: act, Context: lctx})
	}
	writeFormPost(w, fp.URL, fp.Params)
}

// handleAuthorize answers the tool's OIDC authorization request for a
// previously initiated 1.3 launch.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "unparseable request")
		return
	}

	hint := r.FormValue("lti_message_hint")
	pl, ok := s.pending.take(hint)
	if !ok {
		writeErr(w, http.StatusBadRequest, "unknown or expired lti_message_hint")
		return
	}

	clientID := r.FormValue("client_id")
	tt, err := s.Tools.GetToolTypeByClientID(r.Context(), clientID)
	if err != nil || tt.ID != pl.ToolID {
		writeErr(w, http.StatusBadRequest, "client_id does not match the initiated launch")
		return
	}
	if rt := r.FormValue("response_type"); rt != "" && rt != "id_token" {
		writeErr(w, http.StatusBadRequest, "unsupported response_type")
		return
	}

	fp, err := s.Orchestrator.LaunchJWT(r.Context(), &tt, pl.Activity, pl.Context,
		r.FormValue("redirect_uri"), r.FormValue("state"), r.FormValue("nonce"))
	if err != nil {
		s.logger().WithError(err).WithField("tool", tt.ID).Error("authorization response failed")
		writeErr(w, http.StatusInternalServerError, "could not sign launch")
		return
	}
	writeFormPost(w, fp.URL, fp.Params)
}

// handleDeepLinkReturn receives the tool's content selection. 1.3 tools
// post a deep linking response JWT; 1.1 tools post a signed
// ContentItemSelection form. Either way the response is the flattened
// launch parameter map the caller can persist as new placements.
func (s *Server) handleDeepLinkReturn(w http.ResponseWriter, r *http.Request) {
	toolID, err := strconv.ParseInt(chi.URLParam(r, "toolID"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad tool id")
		return
	}
	tt, err := s.Tools.GetToolType(r.Context(), toolID)
	if err != nil {
		writeErr(w, http.StatusNotFound, "unknown tool")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "unparseable form body")
		return
	}

	var params map[string]string
	raw := r.PostFormValue("JWT")
	if raw == "" {
		raw = r.PostFormValue("id_token")
	}
	if raw != "" {
		params, err = s.Verifier.ConvertFromJWT(r.Context(), &tt, raw)
		if err != nil {
			s.logger().WithError(err).WithField("tool", tt.ID).Warn("deep link JWT rejected")
			writeErr(w, http.StatusUnauthorized, "deep linking response rejected")
			return
		}
		if mt := params["lti_message_type"]; mt != "ContentItemSelection" && mt != "LtiDeepLinkingResponse" {
			s.logger().WithField("tool", tt.ID).WithField("message_type", mt).Warn("deep link return with wrong message type")
			writeErr(w, http.StatusBadRequest, "not a deep linking response")
			return
		}
	} else {
		params, err = s.verifySignedReturn(r, &tt)
		if err != nil {
			s.logger().WithError(err).WithField("tool", tt.ID).Warn("deep link form rejected")
			writeErr(w, http.StatusUnauthorized, "deep linking response rejected")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(params)
}

// verifySignedReturn checks the OAuth1 signature on a 1.1 content-item
// return post and hands back its parameters.
func (s *Server) verifySignedReturn(r *http.Request, tt *tool.ToolType) (map[string]string, error) {
	km, err := tool.ResolveKey(r.Context(), s.Tools, tt.ID)
	if err != nil {
		return nil, err
	}
	if km.Scheme != tool.SchemeOAuth1 {
		return nil, launch.ErrNoCredentials
	}
	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostFormValue(k)
	}
	if err := oauth1.Verify(r.Method, s.PublicURL+r.URL.Path, km.ConsumerKey, km.SharedSecret, params); err != nil {
		return nil, err
	}
	return params, nil
}

// handleOutcomes is the basic outcomes POX endpoint. The body is signed
// with OAuth1 body hashing under the tool's consumer key.
func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOutcomeBody))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "unreadable body")
		return
	}

	auth := oauth1.ParseAuthorizationHeader(r.Header.Get("Authorization"))
	consumerKey := auth["oauth_consumer_key"]
	if consumerKey == "" {
		writeErr(w, http.StatusUnauthorized, "missing oauth_consumer_key")
		return
	}
	err = outcomes.VerifyRequest(r.Context(), s.Tools, consumerKey, func(secret string) error {
		return oauth1.VerifySignedBody(r, body, consumerKey, secret, s.PublicURL+r.URL.Path)
	})
	if err != nil {
		s.logger().WithError(err).WithField("consumer_key", consumerKey).Warn("outcomes request rejected")
		writeErr(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	req, err := outcomes.ParseRequest(body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "malformed outcomes request")
		return
	}
	resp := s.Outcomes.Handle(r.Context(), req)
	out, err := outcomes.MarshalResponse(resp)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "response encoding failed")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(out)
}

// handleReadResult exposes a single gradebook cell to bearer-token
// holders with the basicoutcome scope.
func (s *Server) handleReadResult(w http.ResponseWriter, r *http.Request) {
	sourcedID := chi.URLParam(r, "sourcedID")
	score, exists, err := s.Outcomes.Grades.ReadResult(r.Context(), sourcedID)
	if err != nil {
		s.logger().WithError(err).Error("result lookup failed")
		writeErr(w, http.StatusInternalServerError, "result lookup failed")
		return
	}
	if !exists {
		writeErr(w, http.StatusNotFound, "no result for sourcedId")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sourcedId": sourcedID, "score": score})
}

func activityFromForm(r *http.Request) launch.Activity {
	courseID, _ := strconv.ParseInt(r.PostFormValue("course_id"), 10, 64)
	return launch.Activity{
		ID:               r.PostFormValue("activity_id"),
		CourseID:         courseID,
		Title:            r.PostFormValue("title"),
		Description:      r.PostFormValue("description"),
		LaunchURL:        r.PostFormValue("launch_url"),
		SourcedID:        r.PostFormValue("sourcedid"),
		CustomParameters: r.PostFormValue("custom"),
		MessageType:      r.PostFormValue("message_type"),
	}
}

func contextFromForm(r *http.Request) custom.Context {
	return custom.Context{
		User: custom.User{
			ID:         r.PostFormValue("user_id"),
			Username:   r.PostFormValue("user_username"),
			GivenName:  r.PostFormValue("user_given_name"),
			FamilyName: r.PostFormValue("user_family_name"),
			FullName:   r.PostFormValue("user_full_name"),
			Email:      r.PostFormValue("user_email"),
		},
		Course: custom.Course{
			ID:        r.PostFormValue("course_id"),
			ShortName: r.PostFormValue("course_short_name"),
			FullName:  r.PostFormValue("course_full_name"),
			IDNumber:  r.PostFormValue("course_idnumber"),
		},
	}
}
