// internal/contentitem/contentitem.go
//
// Conversion between the two wire shapes of a deep-linking pick: the
// LTI 1.x JSON-LD envelope ("@context"/"@graph" of LtiLinkItem objects)
// and the flat content_items array carried in a 1.3 deep-linking
// response JWT. The flat form is the in-memory canonical one.
package contentitem

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload means the incoming document was not valid JSON or
// carried no items.
var ErrMalformedPayload = errors.New("contentitem: malformed content item payload")

const (
	// EnvelopeContext is the JSON-LD context of the 1.x envelope.
	EnvelopeContext = "http://purl.imsglobal.org/ctx/lti/v1/ContentItem"

	typeLTILink      = "LtiLinkItem"
	typeResourceLink = "ltiResourceLink"
)

// LineItem describes the gradebook column a picked link asks for.
type LineItem struct {
	Label        string  `json:"label,omitempty"`
	ScoreMaximum float64 `json:"scoreMaximum,omitempty"`
	ResourceID   string  `json:"resourceId,omitempty"`
	Tag          string  `json:"tag,omitempty"`
}

// Placement carries presentation hints for a picked link.
type Placement struct {
	DocumentTarget string `json:"presentationDocumentTarget,omitempty"`
	WindowTarget   string `json:"windowTarget,omitempty"`
	Width          int    `json:"displayWidth,omitempty"`
	Height         int    `json:"displayHeight,omitempty"`
}

// Item is one picked content item in the flat 1.3 shape.
type Item struct {
	Type      string            `json:"type"`
	URL       string            `json:"url,omitempty"`
	Title     string            `json:"title,omitempty"`
	Text      string            `json:"text,omitempty"`
	MediaType string            `json:"mediaType,omitempty"`
	Icon      string            `json:"icon,omitempty"`
	Custom    map[string]string `json:"custom,omitempty"`
	LineItem  *LineItem         `json:"lineItem,omitempty"`
	Placement *Placement        `json:"placement,omitempty"`
}

// envelope is the JSON-LD wrapper of the 1.x format.
type envelope struct {
	Context string         `json:"@context"`
	Graph   []envelopeItem `json:"@graph"`
}

type envelopeItem struct {
	Type      string            `json:"@type"`
	URL       string            `json:"url,omitempty"`
	Title     string            `json:"title,omitempty"`
	Text      string            `json:"text,omitempty"`
	MediaType string            `json:"mediaType,omitempty"`
	Icon      *envelopeIcon     `json:"icon,omitempty"`
	Custom    map[string]string `json:"custom,omitempty"`
	LineItem  *envelopeLineItem `json:"lineItem,omitempty"`
	Placement *envelopeAdvice   `json:"placementAdvice,omitempty"`
}

type envelopeIcon struct {
	ID string `json:"@id,omitempty"`
}

type envelopeLineItem struct {
	Label            string                    `json:"label,omitempty"`
	ResourceID       string                    `json:"assignedActivity.activityId,omitempty"`
	Tag              string                    `json:"tag,omitempty"`
	ScoreConstraints *envelopeScoreConstraints `json:"scoreConstraints,omitempty"`
}

type envelopeScoreConstraints struct {
	TotalMaximum float64 `json:"totalMaximum,omitempty"`
}

type envelopeAdvice struct {
	DocumentTarget string `json:"presentationDocumentTarget,omitempty"`
	WindowTarget   string `json:"windowTarget,omitempty"`
	Width          int    `json:"displayWidth,omitempty"`
	Height         int    `json:"displayHeight,omitempty"`
}

// FromEnvelope parses a 1.x JSON-LD envelope into flat items.
func FromEnvelope(raw []byte) ([]Item, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(env.Graph) == 0 {
		return nil, ErrMalformedPayload
	}
	items := make([]Item, 0, len(env.Graph))
	for _, e := range env.Graph {
		it := Item{
			Type:      typeResourceLink,
			URL:       e.URL,
			Title:     e.Title,
			Text:      e.Text,
			MediaType: e.MediaType,
			Custom:    e.Custom,
		}
		if e.Type != typeLTILink {
			it.Type = e.Type
		}
		if e.Icon != nil {
			it.Icon = e.Icon.ID
		}
		if li := e.LineItem; li != nil {
			item := LineItem{Label: li.Label, ResourceID: li.ResourceID, Tag: li.Tag}
			if li.ScoreConstraints != nil {
				item.ScoreMaximum = li.ScoreConstraints.TotalMaximum
			}
			it.LineItem = &item
		}
		if p := e.Placement; p != nil {
			it.Placement = &Placement{
				DocumentTarget: p.DocumentTarget,
				WindowTarget:   p.WindowTarget,
				Width:          p.Width,
				Height:         p.Height,
			}
		}
		items = append(items, it)
	}
	return items, nil
}

// ToEnvelope renders flat items back into the 1.x JSON-LD envelope.
func ToEnvelope(items []Item) ([]byte, error) {
	env := envelope{Context: EnvelopeContext}
	for _, it := range items {
		e := envelopeItem{
			Type:      typeLTILink,
			URL:       it.URL,
			Title:     it.Title,
			Text:      it.Text,
			MediaType: it.MediaType,
			Custom:    it.Custom,
		}
		if it.Type != "" && it.Type != typeResourceLink {
			e.Type = it.Type
		}
		if it.Icon != "" {
			e.Icon = &envelopeIcon{ID: it.Icon}
		}
		if li := it.LineItem; li != nil {
			e.LineItem = &envelopeLineItem{
				Label:      li.Label,
				ResourceID: li.ResourceID,
				Tag:        li.Tag,
			}
			if li.ScoreMaximum != 0 {
				e.LineItem.ScoreConstraints = &envelopeScoreConstraints{TotalMaximum: li.ScoreMaximum}
			}
		}
		if p := it.Placement; p != nil {
			e.Placement = &envelopeAdvice{
				DocumentTarget: p.DocumentTarget,
				WindowTarget:   p.WindowTarget,
				Width:          p.Width,
				Height:         p.Height,
			}
		}
		env.Graph = append(env.Graph, e)
	}
	return json.Marshal(env)
}

// ParseItems parses the flat content_items JSON array from a 1.3 claim.
func ParseItems(raw []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(items) == 0 {
		return nil, ErrMalformedPayload
	}
	return items, nil
}

// ItemsJSON renders items as the flat claim array.
func ItemsJSON(items []Item) ([]byte, error) {
	return json.Marshal(items)
}

// EnvelopeToFlatJSON converts a 1.x envelope string straight to the 1.3
// flat array string, for callers that only shuttle wire formats.
func EnvelopeToFlatJSON(envelopeJSON string) (string, error) {
	items, err := FromEnvelope([]byte(envelopeJSON))
	if err != nil {
		return "", err
	}
	out, err := ItemsJSON(items)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// FlatToEnvelopeJSON converts the 1.3 flat array string to the 1.x
// envelope string.
func FlatToEnvelopeJSON(flatJSON string) (string, error) {
	items, err := ParseItems([]byte(flatJSON))
	if err != nil {
		return "", err
	}
	out, err := ToEnvelope(items)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
