// internal/custom/custom.go
//
// Custom launch parameter splitting, key mapping and substitution-variable
// expansion. A tool registration stores its custom parameters as one text
// blob ("height=400\nuser=$User.id"); at launch time each line is split,
// the key is normalized to the lowercase launch form, and $-prefixed
// values are resolved against the launch context.
package custom

import (
	"sort"
	"strings"
	"time"
)

// User is the launching user as seen by substitution variables.
type User struct {
	ID         string
	Username   string
	GivenName  string
	FamilyName string
	MiddleName string
	FullName   string
	Email      string
	GroupIDs   []string
}

// Course is the launch context as seen by substitution variables.
type Course struct {
	ID          string
	ShortName   string
	FullName    string
	IDNumber    string
	StartDate   time.Time
	EndDate     time.Time
	AncestorIDs []string
}

// Context carries everything an expansion can draw values from.
type Context struct {
	User   User
	Course Course
}

// SplitParameters breaks a stored custom parameter blob into key=value
// pairs, one per line. Any newline convention is accepted; blank lines
// and lines without '=' are skipped; whitespace around key and value is
// trimmed. Values keep their commas. Later duplicates overwrite earlier
// ones.
func SplitParameters(blob string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.FieldsFunc(blob, func(r rune) bool {
		return r == '\n' || r == '\r'
	}) {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

// MapKeyName normalizes a custom parameter key to its launch wire form:
// trimmed, lowercased, every character outside [a-z0-9] replaced with an
// underscore. Runs of punctuation map to runs of underscores (no
// collapsing), which keeps the function idempotent.
func MapKeyName(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(key)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// SortedKeys returns the map's keys in ascending order, for deterministic
// iteration when assembling launch parameters.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
