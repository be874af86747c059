// internal/tool/match.go
package tool

import (
	"net/url"
	"strings"
)

// Match scores. A prefix match is worth half an exact match; a candidate
// owned by a different course than the one being searched loses ten points
// but is not excluded, so a course-local tool outranks an otherwise equal
// global one.
const (
	matchExactURL      = 100
	matchBaseURL       = 50
	matchCoursePenalty = -10
)

// URLThumbprint normalizes a URL for tool matching: lower-case, scheme and
// leading "www." stripped, host joined to the path with a separator that is
// kept even when the path is empty, query appended when present.
func URLThumbprint(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Host == "" {
		// Scheme-less input parses entirely into the path.
		u, err = url.Parse("http://" + raw)
		if err != nil || u.Host == "" {
			return ""
		}
	}
	host := strings.TrimPrefix(u.Host, "www.")
	path := strings.TrimPrefix(u.Path, "/")
	thumb := host + "/" + path
	if u.RawQuery != "" {
		thumb += "?" + u.RawQuery
	}
	return thumb
}

// BestMatchByURL selects the candidate whose base URL best matches the
// target. courseID narrows the search to one course (SiteCourseID means no
// preference). Ties keep the earliest candidate; a non-positive best score
// means no suitable tool and is not an error.
func BestMatchByURL(target string, candidates []ToolType, courseID int64) (ToolType, bool) {
	thumb := URLThumbprint(target)
	if thumb == "" {
		return ToolType{}, false
	}

	best := ToolType{}
	bestScore := 0
	for _, c := range candidates {
		score := 0
		cthumb := URLThumbprint(c.BaseURL)
		if cthumb == "" {
			continue
		}
		if cthumb == thumb {
			score += matchExactURL
		} else if strings.HasPrefix(thumb, cthumb) {
			score += matchBaseURL
		}
		if courseID != SiteCourseID && c.CourseID != courseID {
			score += matchCoursePenalty
		}
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	if bestScore <= 0 {
		return ToolType{}, false
	}
	return best, true
}
