package custom

import (
	"reflect"
	"testing"
	"time"
)

func TestSplitParameters(t *testing.T) {
	blob := "height=400\nwidth = 600 \n\nbroken line\nuser=$User.id\naccept_media_types=image/*,text/html"
	got := SplitParameters(blob)
	want := map[string]string{
		"height":             "400",
		"width":              "600",
		"user":               "$User.id",
		"accept_media_types": "image/*,text/html",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitParameters = %v, want %v", got, want)
	}
}

func TestSplitParametersLineEndings(t *testing.T) {
	want := map[string]string{"a": "1", "b": "2"}
	for _, blob := range []string{"a=1\nb=2", "a=1\rb=2", "a=1\r\nb=2", "a=1\n\rb=2"} {
		if got := SplitParameters(blob); !reflect.DeepEqual(got, want) {
			t.Errorf("SplitParameters(%q) = %v, want %v", blob, got, want)
		}
	}
	if got := SplitParameters(""); len(got) != 0 {
		t.Errorf("SplitParameters(\"\") = %v, want empty", got)
	}
}

func TestMapKeyName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Review:Chapter", "review_chapter"},
		{" PRACTICE-Mode ", "practice_mode"},
		{"a..b", "a__b"},
		{"already_fine_9", "already_fine_9"},
	}
	for _, c := range cases {
		if got := MapKeyName(c.in); got != c.want {
			t.Errorf("MapKeyName(%q) = %q, want %q", c.in, got, c.want)
		}
		if got := MapKeyName(MapKeyName(c.in)); got != c.want {
			t.Errorf("MapKeyName not idempotent for %q: %q", c.in, got)
		}
	}
}

func TestExpandValueRules(t *testing.T) {
	e := &Expander{Params: map[string]string{"user_id": "u-42"}}
	ctx := Context{User: User{ID: "u-42", MiddleName: "SOMETHING"}}

	cases := []struct{ in, want string }{
		{"", ""},
		{"literal", "literal"},
		{`\$User.id`, "$User.id"},
		{`\literal`, "literal"},
		{"$User.id", "u-42"},
		{"$Person.name.middle", "SOMETHING"},
		{"$No.Such.Variable", "$No.Such.Variable"},
	}
	for _, c := range cases {
		if got := e.Expand(c.in, ctx); got != c.want {
			t.Errorf("Expand(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExpandFlattensLineBreaks(t *testing.T) {
	e := &Expander{Params: map[string]string{"context_title": "Line1<br />Line2<br>Line3"}}
	if got := e.Expand("$Context.title", Context{}); got != "Line1 Line2 Line3" {
		t.Fatalf("Expand($Context.title) = %q", got)
	}
}

func TestExpandAll(t *testing.T) {
	e := &Expander{Params: map[string]string{"user_id": "u-42"}}
	ctx := Context{User: User{ID: "u-42", MiddleName: "SOMETHING"}}

	got := e.ExpandAll("x=1\ny=$Person.name.middle", ctx, false)
	want := map[string]string{
		"custom_x": "1",
		"custom_y": "SOMETHING",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandAll = %v, want %v", got, want)
	}
}

func TestExpandAllOriginalKeys(t *testing.T) {
	e := &Expander{}
	got := e.ExpandAll("Chapter-Id=7", Context{}, true)
	if got["custom_chapter_id"] != "7" || got["custom_Chapter-Id"] != "7" {
		t.Fatalf("original-case key not emitted: %v", got)
	}
}

func TestExpandLTI2CapabilityGate(t *testing.T) {
	ctx := Context{User: User{ID: "u-1"}}
	e := &Expander{
		LTI2:         true,
		Capabilities: map[string]bool{},
		Params:       map[string]string{"user_id": "u-1"},
	}
	if got := e.Expand("$User.id", ctx); got != "$User.id" {
		t.Fatalf("ungated capability expanded: %q", got)
	}
	e.Capabilities["User.id"] = true
	if got := e.Expand("$User.id", ctx); got != "u-1" {
		t.Fatalf("gated capability not expanded: %q", got)
	}
}

func TestExpandComputed(t *testing.T) {
	begin := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	ctx := Context{
		User:   User{GroupIDs: []string{"g1", "g2"}},
		Course: Course{StartDate: begin, AncestorIDs: []string{"c9", "c3"}},
	}
	e := &Expander{}
	if got := e.Expand("$Membership.groupIds", ctx); got != "g1,g2" {
		t.Fatalf("groupIds = %q", got)
	}
	if got := e.Expand("$Context.id.history", ctx); got != "c9,c3" {
		t.Fatalf("id history = %q", got)
	}
	if got := e.Expand("$CourseSection.timeFrame.begin", ctx); got != "2026-01-15T09:00:00Z" {
		t.Fatalf("timeFrame.begin = %q", got)
	}
	// Zero end date leaves the variable unresolved.
	if got := e.Expand("$CourseSection.timeFrame.end", ctx); got != "$CourseSection.timeFrame.end" {
		t.Fatalf("timeFrame.end = %q", got)
	}
}

func TestExpandResolverChain(t *testing.T) {
	e := &Expander{
		Resolvers: []Resolver{
			func(name string, _ Context) (string, bool) {
				if name == "ToolProxyBinding.memberships.url" {
					return "https://lms.example.edu/nrps/7", true
				}
				return "", false
			},
		},
	}
	if got := e.Expand("$ToolProxyBinding.memberships.url", Context{}); got != "https://lms.example.edu/nrps/7" {
		t.Fatalf("resolver value = %q", got)
	}
}
