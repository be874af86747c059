// internal/claims/roles.go
package claims

import "strings"

// LIS v2 role vocabularies used by 1.3 launches.
const (
	roleVocabMembership  = "http://purl.imsglobal.org/vocab/lis/v2/membership#"
	roleVocabInstitution = "http://purl.imsglobal.org/vocab/lis/v2/institution/person#"
	roleVocabSystem      = "http://purl.imsglobal.org/vocab/lis/v2/system/person#"
)

// Legacy LTI 1.x role URN prefixes.
const (
	roleURNContext     = "urn:lti:role:ims/lis/"
	roleURNInstitution = "urn:lti:instrole:ims/lis/"
	roleURNSystem      = "urn:lti:sysrole:ims/lis/"
)

// NormalizeRoleURI upgrades a single 1.x role name to its LIS v2 vocabulary
// URI. Bare names (Instructor, Learner) are treated as context roles. Full
// http(s) URIs and unrecognized URNs pass through untouched, so the
// function is idempotent: already-normalized input comes back unchanged.
func NormalizeRoleURI(role string) string {
	role = strings.TrimSpace(role)
	switch {
	case role == "":
		return ""
	case strings.HasPrefix(role, roleURNContext):
		return roleVocabMembership + strings.TrimPrefix(role, roleURNContext)
	case strings.HasPrefix(role, roleURNInstitution):
		return roleVocabInstitution + strings.TrimPrefix(role, roleURNInstitution)
	case strings.HasPrefix(role, roleURNSystem):
		return roleVocabSystem + strings.TrimPrefix(role, roleURNSystem)
	case strings.Contains(role, "://"), strings.HasPrefix(role, "urn:"):
		return role
	default:
		return roleVocabMembership + role
	}
}

// NormalizeRoleList applies NormalizeRoleURI to each element of a
// comma-separated role string, dropping empty entries.
func NormalizeRoleList(csv string) []string {
	var out []string
	for _, role := range strings.Split(csv, ",") {
		if r := NormalizeRoleURI(role); r != "" {
			out = append(out, r)
		}
	}
	return out
}
