package contentitem

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const sampleEnvelope = `{
  "@context": "http://purl.imsglobal.org/ctx/lti/v1/ContentItem",
  "@graph": [
    {
      "@type": "LtiLinkItem",
      "url": "https://tool.example.com/quiz/9",
      "title": "Chapter 9 Quiz",
      "mediaType": "application/vnd.ims.lti.v1.ltilink",
      "icon": {"@id": "https://tool.example.com/icon.png"},
      "custom": {"chapter": "9"},
      "lineItem": {
        "label": "Quiz 9",
        "scoreConstraints": {"totalMaximum": 20}
      },
      "placementAdvice": {
        "presentationDocumentTarget": "iframe",
        "displayWidth": 800,
        "displayHeight": 600
      }
    }
  ]
}`

func TestFromEnvelope(t *testing.T) {
	items, err := FromEnvelope([]byte(sampleEnvelope))
	if err != nil {
		t.Fatalf("FromEnvelope: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d", len(items))
	}
	it := items[0]
	if it.Type != "ltiResourceLink" {
		t.Fatalf("type = %q", it.Type)
	}
	if it.URL != "https://tool.example.com/quiz/9" || it.Title != "Chapter 9 Quiz" {
		t.Fatalf("link fields: %+v", it)
	}
	if it.Icon != "https://tool.example.com/icon.png" {
		t.Fatalf("icon = %q", it.Icon)
	}
	if it.Custom["chapter"] != "9" {
		t.Fatalf("custom = %v", it.Custom)
	}
	if it.LineItem == nil || it.LineItem.ScoreMaximum != 20 || it.LineItem.Label != "Quiz 9" {
		t.Fatalf("lineItem = %+v", it.LineItem)
	}
	if it.Placement == nil || it.Placement.DocumentTarget != "iframe" || it.Placement.Width != 800 {
		t.Fatalf("placement = %+v", it.Placement)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	items, err := FromEnvelope([]byte(sampleEnvelope))
	if err != nil {
		t.Fatalf("FromEnvelope: %v", err)
	}
	raw, err := ToEnvelope(items)
	if err != nil {
		t.Fatalf("ToEnvelope: %v", err)
	}
	again, err := FromEnvelope(raw)
	if err != nil {
		t.Fatalf("FromEnvelope(ToEnvelope(...)): %v", err)
	}
	a, _ := json.Marshal(items)
	b, _ := json.Marshal(again)
	if string(a) != string(b) {
		t.Fatalf("round trip drift:\n%s\n%s", a, b)
	}
	if !strings.Contains(string(raw), `"@context":"http://purl.imsglobal.org/ctx/lti/v1/ContentItem"`) {
		t.Fatalf("envelope missing @context: %s", raw)
	}
	if !strings.Contains(string(raw), `"@type":"LtiLinkItem"`) {
		t.Fatalf("envelope missing @type: %s", raw)
	}
}

func TestFlatConversions(t *testing.T) {
	flat, err := EnvelopeToFlatJSON(sampleEnvelope)
	if err != nil {
		t.Fatalf("EnvelopeToFlatJSON: %v", err)
	}
	if !strings.Contains(flat, `"type":"ltiResourceLink"`) {
		t.Fatalf("flat form: %s", flat)
	}
	env, err := FlatToEnvelopeJSON(flat)
	if err != nil {
		t.Fatalf("FlatToEnvelopeJSON: %v", err)
	}
	if !strings.Contains(env, `"@graph"`) {
		t.Fatalf("envelope form: %s", env)
	}
}

func TestMalformedPayloads(t *testing.T) {
	cases := []string{
		"not json",
		"{}",
		`{"@context":"x","@graph":[]}`,
	}
	for _, raw := range cases {
		if _, err := FromEnvelope([]byte(raw)); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("FromEnvelope(%q) err = %v, want ErrMalformedPayload", raw, err)
		}
	}
	if _, err := ParseItems([]byte("[]")); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("ParseItems empty array err = %v", err)
	}
	if _, err := ParseItems([]byte("{broken")); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("ParseItems junk err = %v", err)
	}
}
