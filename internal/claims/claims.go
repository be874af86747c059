// internal/claims/claims.go
//
// Bidirectional transform between flat LTI 1.x launch parameters and the
// nested claim payload carried by 1.3 id_tokens. The mapping table in
// mapping.go drives both directions; anything the table does not name is
// either synthesized (custom_*/ext_* keys) or dropped.
package claims

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// ErrMissingIssuer is returned by FromClaims when the payload carries no
// usable iss claim. A launch without an issuer cannot be attributed to a
// platform and must be rejected before any parameter is trusted.
var ErrMissingIssuer = errors.New("claims: payload has no iss claim")

const (
	customClaimURI = ClaimPrefix + "/claim/custom"
	extClaimURI    = ClaimPrefix + "/claim/ext"
)

// ToClaims nests a flat parameter map into the claim tree. Mapped keys
// follow their table entry; unmapped custom_/ext_ keys land under the
// custom and ext object claims with the prefix stripped; unmapped keys
// without either prefix are dropped. Array-typed values are split on
// commas and sorted ascending so the output is deterministic regardless
// of the order the caller assembled the string in.
func ToClaims(params map[string]string) map[string]any {
	out := make(map[string]any)
	for key, value := range params {
		entry, ok := Mapping[key]
		if !ok {
			switch {
			case strings.HasPrefix(key, "custom_"):
				groupSet(out, customClaimURI, strings.TrimPrefix(key, "custom_"), value)
			case strings.HasPrefix(key, "ext_"):
				groupSet(out, extClaimURI, strings.TrimPrefix(key, "ext_"), value)
			}
			continue
		}

		var nested any = value
		if entry.IsArray {
			parts := strings.Split(value, ",")
			sort.Strings(parts)
			nested = parts
		} else if entry.IsBool {
			nested = value == "true"
		}

		switch {
		case entry.TopLevel:
			out[entry.Claim] = nested
		case entry.Group == "":
			out[entry.claimURI()] = nested
		default:
			groupSet(out, entry.claimURI(), entry.Claim, nested)
		}
	}
	return out
}

// FromClaims flattens a claim payload back into launch parameters. The
// payload must carry a non-empty iss claim or ErrMissingIssuer is
// returned; a token that cannot name its issuer is not worth mining for
// parameters. Scalar array elements are comma-joined; arrays holding
// objects are JSON-encoded whole since they have no flat representation.
func FromClaims(payload map[string]any) (map[string]string, error) {
	if iss, _ := payload["iss"].(string); iss == "" {
		return nil, ErrMissingIssuer
	}

	out := make(map[string]string)
	for key, entry := range Mapping {
		var raw any
		switch {
		case entry.TopLevel:
			raw = payload[entry.Claim]
		case entry.Group == "":
			raw = payload[entry.claimURI()]
		default:
			group, _ := payload[entry.claimURI()].(map[string]any)
			if group == nil {
				continue
			}
			raw = group[entry.Claim]
		}
		if raw == nil {
			continue
		}
		if s, ok := flattenValue(raw); ok {
			out[key] = s
		}
	}

	for param, uri := range map[string]string{"custom_": customClaimURI, "ext_": extClaimURI} {
		group, _ := payload[uri].(map[string]any)
		for k, v := range group {
			if s, ok := flattenValue(v); ok {
				out[param+k] = s
			}
		}
	}
	return out, nil
}

// groupSet stores key=value inside the object claim at uri, creating the
// object on first use.
func groupSet(payload map[string]any, uri, key string, value any) {
	group, ok := payload[uri].(map[string]any)
	if !ok {
		group = make(map[string]any)
		payload[uri] = group
	}
	group[key] = value
}

// flattenValue renders a claim value as a flat parameter string.
func flattenValue(v any) (string, bool) {
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, elem := range t {
			s, ok := scalarString(elem)
			if !ok {
				// Array of objects; flat form is the JSON text.
				b, err := json.Marshal(t)
				if err != nil {
					return "", false
				}
				return string(b), true
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), true
	case []string:
		return strings.Join(t, ","), true
	default:
		return scalarString(v)
	}
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}
