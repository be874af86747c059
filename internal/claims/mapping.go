// internal/claims/mapping.go
package claims

// ClaimPrefix is the IMS namespace under which LTI claims are nested. A
// mapping entry's Suffix selects the service-specific variant of the
// prefix (e.g. "dl" -> ".../spec/lti-dl").
const ClaimPrefix = "https://purl.imsglobal.org/spec/lti"

// Entry describes how one flat launch parameter maps onto the claim tree.
// The same table drives both directions, so every entry must survive a
// round trip: nest then flatten reproduces the original scalar value
// (arrays come back sorted and comma-joined, which is part of the
// contract).
//
// Placement rules:
//   - TopLevel: the value sits directly under Claim in the payload root
//     (standard OIDC claims such as "sub" or "email").
//   - Group == "": the value sits at {prefix}[-suffix]/claim/{Claim}.
//   - Group != "": the value sits inside the object claim
//     {prefix}[-suffix]/claim/{Group} under the key Claim.
type Entry struct {
	Suffix   string
	Group    string
	Claim    string
	IsArray  bool
	IsBool   bool
	TopLevel bool
}

// claimURI returns the namespaced claim for a non-top-level entry.
func (e Entry) claimURI() string {
	base := ClaimPrefix
	if e.Suffix != "" {
		base += "-" + e.Suffix
	}
	name := e.Claim
	if e.Group != "" {
		name = e.Group
	}
	return base + "/claim/" + name
}

// Mapping is the full parameter <-> claim table. Synthetic custom_*/ext_*
// handling lives in the transforms, not here; entries below win over the
// synthetic rule when a custom_ key is explicitly mapped (the AGS and NRPS
// service URLs travel as custom parameters in the 1.x wire format).
var Mapping = map[string]Entry{
	// Deep linking settings.
	"accept_copy_advice":                   {Suffix: "dl", Group: "deep_linking_settings", Claim: "accept_copy_advice", IsBool: true},
	"accept_media_types":                   {Suffix: "dl", Group: "deep_linking_settings", Claim: "accept_media_types", IsArray: true},
	"accept_multiple":                      {Suffix: "dl", Group: "deep_linking_settings", Claim: "accept_multiple", IsBool: true},
	"accept_presentation_document_targets": {Suffix: "dl", Group: "deep_linking_settings", Claim: "accept_presentation_document_targets", IsArray: true},
	"accept_types":                         {Suffix: "dl", Group: "deep_linking_settings", Claim: "accept_types", IsArray: true},
	"accept_unsigned":                      {Suffix: "dl", Group: "deep_linking_settings", Claim: "accept_unsigned", IsBool: true},
	"auto_create":                          {Suffix: "dl", Group: "deep_linking_settings", Claim: "auto_create", IsBool: true},
	"can_confirm":                          {Suffix: "dl", Group: "deep_linking_settings", Claim: "can_confirm", IsBool: true},
	"content_item_return_url":              {Suffix: "dl", Group: "deep_linking_settings", Claim: "deep_link_return_url"},
	"content_items":                        {Suffix: "dl", Group: "", Claim: "content_items", IsArray: true},
	"data":                                 {Suffix: "dl", Group: "deep_linking_settings", Claim: "data"},
	"text":                                 {Suffix: "dl", Group: "deep_linking_settings", Claim: "text"},
	"title":                                {Suffix: "dl", Group: "deep_linking_settings", Claim: "title"},
	"lti_msg":                              {Suffix: "dl", Group: "deep_linking_settings", Claim: "msg"},
	"lti_log":                              {Suffix: "dl", Group: "deep_linking_settings", Claim: "log"},
	"lti_errormsg":                         {Suffix: "dl", Group: "deep_linking_settings", Claim: "errormsg"},
	"lti_errorlog":                         {Suffix: "dl", Group: "deep_linking_settings", Claim: "errorlog"},

	// Basic outcomes service.
	"lis_result_sourcedid":    {Suffix: "bo", Group: "basicoutcome", Claim: "lis_result_sourcedid"},
	"lis_outcome_service_url": {Suffix: "bo", Group: "basicoutcome", Claim: "lis_outcome_service_url"},

	// Assignment & grade services endpoint.
	"custom_lineitems_url": {Suffix: "ags", Group: "endpoint", Claim: "lineitems"},
	"custom_lineitem_url":  {Suffix: "ags", Group: "endpoint", Claim: "lineitem"},
	"custom_ags_scopes":    {Suffix: "ags", Group: "endpoint", Claim: "scope", IsArray: true},

	// Names & role provisioning service.
	"custom_context_memberships_v2_url": {Suffix: "nrps", Group: "namesroleservice", Claim: "context_memberships_url"},
	"custom_nrps_service_versions":      {Suffix: "nrps", Group: "namesroleservice", Claim: "service_versions", IsArray: true},

	// Core launch claims.
	"context_id":    {Group: "context", Claim: "id"},
	"context_label": {Group: "context", Claim: "label"},
	"context_title": {Group: "context", Claim: "title"},
	"context_type":  {Group: "context", Claim: "type", IsArray: true},

	"launch_presentation_document_target": {Group: "launch_presentation", Claim: "document_target"},
	"launch_presentation_height":          {Group: "launch_presentation", Claim: "height"},
	"launch_presentation_width":           {Group: "launch_presentation", Claim: "width"},
	"launch_presentation_locale":          {Group: "launch_presentation", Claim: "locale"},
	"launch_presentation_return_url":      {Group: "launch_presentation", Claim: "return_url"},

	"lis_course_section_sourcedid": {Group: "lis", Claim: "course_section_sourcedid"},
	"lis_person_sourcedid":         {Group: "lis", Claim: "person_sourcedid"},

	"lti_message_type": {Claim: "message_type"},
	"lti_version":      {Claim: "version"},
	"roles":            {Claim: "roles", IsArray: true},
	"target_link_uri":  {Claim: "target_link_uri"},

	"for_user_id": {Group: "for_user", Claim: "user_id"},

	"resource_link_description": {Group: "resource_link", Claim: "description"},
	"resource_link_id":          {Group: "resource_link", Claim: "id"},
	"resource_link_title":       {Group: "resource_link", Claim: "title"},

	"tool_consumer_info_product_family_code": {Group: "tool_platform", Claim: "product_family_code"},
	"tool_consumer_info_version":             {Group: "tool_platform", Claim: "version"},
	"tool_consumer_instance_contact_email":   {Group: "tool_platform", Claim: "contact_email"},
	"tool_consumer_instance_description":     {Group: "tool_platform", Claim: "description"},
	"tool_consumer_instance_guid":            {Group: "tool_platform", Claim: "guid"},
	"tool_consumer_instance_name":            {Group: "tool_platform", Claim: "name"},
	"tool_consumer_instance_url":             {Group: "tool_platform", Claim: "url"},

	// Standard OIDC claims.
	"user_id":                          {TopLevel: true, Claim: "sub"},
	"lis_person_name_given":            {TopLevel: true, Claim: "given_name"},
	"lis_person_name_family":           {TopLevel: true, Claim: "family_name"},
	"lis_person_name_full":             {TopLevel: true, Claim: "name"},
	"lis_person_contact_email_primary": {TopLevel: true, Claim: "email"},
}
