// internal/custom/expand.go
package custom

import (
	"strings"
	"time"
)

// capabilitySources maps a substitution variable to where its value comes
// from. A plain name is a launch parameter already present in the standard
// parameter set; a "$USER->" or "$COURSE->" value is a field accessor on
// the launch context. Variables with neither form are computed (see
// computedSources).
var capabilitySources = map[string]string{
	"User.id":       "user_id",
	"User.username": "$USER->username",

	"Person.name.full":     "lis_person_name_full",
	"Person.name.given":    "lis_person_name_given",
	"Person.name.family":   "lis_person_name_family",
	"Person.name.middle":   "$USER->middlename",
	"Person.email.primary": "lis_person_contact_email_primary",
	"Person.sourcedId":     "lis_person_sourcedid",

	"Context.id":    "context_id",
	"Context.title": "context_title",
	"Context.label": "context_label",
	"Context.type":  "context_type",

	"CourseSection.title":     "context_title",
	"CourseSection.label":     "context_label",
	"CourseSection.sourcedId": "lis_course_section_sourcedid",
	"CourseSection.shortName": "$COURSE->shortname",
	"CourseSection.longName":  "$COURSE->fullname",

	"ResourceLink.id":          "resource_link_id",
	"ResourceLink.title":       "resource_link_title",
	"ResourceLink.description": "resource_link_description",

	"Membership.role": "roles",

	"Result.sourcedId":       "lis_result_sourcedid",
	"Result.url":             "lis_outcome_service_url",
	"BasicOutcome.sourcedId": "lis_result_sourcedid",
	"BasicOutcome.url":       "lis_outcome_service_url",
}

// computedSources are substitution variables with no single launch
// parameter or context field behind them.
var computedSources = map[string]func(Context) (string, bool){
	"Membership.groupIds": func(ctx Context) (string, bool) {
		return strings.Join(ctx.User.GroupIDs, ","), len(ctx.User.GroupIDs) > 0
	},
	"Context.id.history": func(ctx Context) (string, bool) {
		return strings.Join(ctx.Course.AncestorIDs, ","), len(ctx.Course.AncestorIDs) > 0
	},
	"CourseSection.timeFrame.begin": func(ctx Context) (string, bool) {
		return isoTime(ctx.Course.StartDate)
	},
	"CourseSection.timeFrame.end": func(ctx Context) (string, bool) {
		return isoTime(ctx.Course.EndDate)
	},
}

func isoTime(t time.Time) (string, bool) {
	if t.IsZero() {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

// Resolver lets callers plug in additional substitution variables, such
// as service endpoints that only the transport layer knows. A resolver
// reports ok=false to pass the variable to the next stage.
type Resolver func(name string, ctx Context) (value string, ok bool)

// Expander turns raw custom parameter values into launch values.
//
// For LTI 2.0 tools the substitution table is gated on the capabilities
// the tool proxy negotiated; 1.x and 1.3 tools get the full table, since
// their registrations carry no capability contract.
type Expander struct {
	LTI2         bool
	Capabilities map[string]bool
	Params       map[string]string
	Resolvers    []Resolver
	Format       func(string) string
}

// Expand resolves one raw custom parameter value.
//
// Rules, in order: an empty value stays empty; a leading backslash is
// stripped and the rest kept literal; a "$Name" value is looked up in
// the capability table, then offered to each Resolver, then checked
// against the computed table. A variable nothing recognizes is emitted
// verbatim so the tool can see what it asked for.
func (e *Expander) Expand(raw string, ctx Context) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, `\`) {
		// A leading backslash marks the rest as literal text.
		return raw[1:]
	}
	if !strings.HasPrefix(raw, "$") {
		return raw
	}
	name := raw[1:]

	if src, ok := capabilitySources[name]; ok && e.allowed(name) {
		if v, ok := e.fromSource(src, ctx); ok {
			return v
		}
	}
	for _, r := range e.Resolvers {
		if v, ok := r(name, ctx); ok {
			return v
		}
	}
	if fn, ok := computedSources[name]; ok && e.allowed(name) {
		if v, ok := fn(ctx); ok {
			return v
		}
	}
	return raw
}

// ExpandAll splits a stored blob, maps every key and expands every value.
// Each pair is emitted under the mapped key; when the tool speaks 2.0 or
// later and mapping changed the key, the original-case key is emitted as
// well so the tool can find the parameter under the name it registered.
func (e *Expander) ExpandAll(blob string, ctx Context, originalKeys bool) map[string]string {
	out := make(map[string]string)
	for key, raw := range SplitParameters(blob) {
		value := e.Expand(raw, ctx)
		mapped := MapKeyName(key)
		out["custom_"+mapped] = value
		if originalKeys && mapped != key {
			out["custom_"+key] = value
		}
	}
	return out
}

func (e *Expander) allowed(name string) bool {
	if !e.LTI2 {
		return true
	}
	return e.Capabilities[name]
}

// HTML line breaks in source values flatten to spaces.
var lineBreaks = strings.NewReplacer("<br />", " ", "<br>", " ")

func (e *Expander) fromSource(src string, ctx Context) (string, bool) {
	var v string
	switch {
	case strings.HasPrefix(src, "$USER->"):
		v = userField(ctx.User, strings.TrimPrefix(src, "$USER->"))
	case strings.HasPrefix(src, "$COURSE->"):
		v = courseField(ctx.Course, strings.TrimPrefix(src, "$COURSE->"))
	default:
		v = e.Params[src]
	}
	if v == "" {
		return "", false
	}
	v = lineBreaks.Replace(v)
	if e.Format != nil {
		v = e.Format(v)
	}
	return v, true
}

func userField(u User, field string) string {
	switch field {
	case "id":
		return u.ID
	case "username":
		return u.Username
	case "firstname":
		return u.GivenName
	case "lastname":
		return u.FamilyName
	case "middlename":
		return u.MiddleName
	case "fullname":
		return u.FullName
	case "email":
		return u.Email
	}
	return ""
}

func courseField(c Course, field string) string {
	switch field {
	case "id":
		return c.ID
	case "shortname":
		return c.ShortName
	case "fullname":
		return c.FullName
	case "idnumber":
		return c.IDNumber
	}
	return ""
}
