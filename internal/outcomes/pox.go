// internal/outcomes/pox.go
//
// Plain Old XML envelope for the LTI 1.1 basic outcomes service. Tools
// POST replaceResult/readResult/deleteResult requests signed with OAuth
// body hashes; the platform answers with the matching response envelope.
package outcomes

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedEnvelope means the request body was not a usable POX
// envelope.
var ErrMalformedEnvelope = errors.New("outcomes: malformed POX envelope")

// Operations a tool can request.
const (
	OpReplaceResult = "replaceResult"
	OpReadResult    = "readResult"
	OpDeleteResult  = "deleteResult"
)

// imsx_codeMajor values.
const (
	CodeSuccess     = "success"
	CodeFailure     = "failure"
	CodeUnsupported = "unsupported"
)

const poxVersion = "V1.0"

// Request is a decoded outcomes request.
type Request struct {
	MessageID string
	Operation string
	SourcedID string
	Score     *float64 // replaceResult only
}

type poxRequestEnvelope struct {
	XMLName xml.Name       `xml:"imsx_POXEnvelopeRequest"`
	Header  poxHeader      `xml:"imsx_POXHeader"`
	Body    poxRequestBody `xml:"imsx_POXBody"`
}

type poxHeader struct {
	Info poxHeaderInfo `xml:"imsx_POXRequestHeaderInfo"`
}

type poxHeaderInfo struct {
	Version   string `xml:"imsx_version"`
	MessageID string `xml:"imsx_messageIdentifier"`
}

type poxRequestBody struct {
	Replace *poxResultRequest `xml:"replaceResultRequest"`
	Read    *poxResultRequest `xml:"readResultRequest"`
	Delete  *poxResultRequest `xml:"deleteResultRequest"`
}

type poxResultRequest struct {
	Record poxResultRecord `xml:"resultRecord"`
}

type poxResultRecord struct {
	SourcedGUID poxSourcedGUID `xml:"sourcedGUID"`
	Result      *poxResult     `xml:"result"`
}

type poxSourcedGUID struct {
	SourcedID string `xml:"sourcedId"`
}

type poxResult struct {
	Score poxScore `xml:"resultScore"`
}

type poxScore struct {
	Language string `xml:"language"`
	Value    string `xml:"textString"`
}

// ParseRequest decodes and validates an outcomes request body.
func ParseRequest(body []byte) (Request, error) {
	var env poxRequestEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	req := Request{MessageID: env.Header.Info.MessageID}
	var rec *poxResultRecord
	switch {
	case env.Body.Replace != nil:
		req.Operation = OpReplaceResult
		rec = &env.Body.Replace.Record
	case env.Body.Read != nil:
		req.Operation = OpReadResult
		rec = &env.Body.Read.Record
	case env.Body.Delete != nil:
		req.Operation = OpDeleteResult
		rec = &env.Body.Delete.Record
	default:
		return Request{}, fmt.Errorf("%w: no recognized operation", ErrMalformedEnvelope)
	}

	req.SourcedID = strings.TrimSpace(rec.SourcedGUID.SourcedID)
	if req.SourcedID == "" {
		return Request{}, fmt.Errorf("%w: empty sourcedId", ErrMalformedEnvelope)
	}

	if req.Operation == OpReplaceResult {
		if rec.Result == nil {
			return Request{}, fmt.Errorf("%w: replaceResult without a result", ErrMalformedEnvelope)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(rec.Result.Score.Value), 64)
		if err != nil || score < 0 || score > 1 {
			return Request{}, fmt.Errorf("%w: score %q outside [0,1]", ErrMalformedEnvelope, rec.Result.Score.Value)
		}
		req.Score = &score
	}
	return req, nil
}

// Response is the platform's answer to an outcomes request.
type Response struct {
	MessageID   string
	RefID       string // message id of the request being answered
	Operation   string
	CodeMajor   string
	Description string
	Score       *float64 // readResult only
}

type poxResponseEnvelope struct {
	XMLName xml.Name          `xml:"imsx_POXEnvelopeResponse"`
	Header  poxResponseHeader `xml:"imsx_POXHeader"`
	Body    poxResponseBody   `xml:"imsx_POXBody"`
}

type poxResponseHeader struct {
	Info poxResponseInfo `xml:"imsx_POXResponseHeaderInfo"`
}

type poxResponseInfo struct {
	Version   string        `xml:"imsx_version"`
	MessageID string        `xml:"imsx_messageIdentifier"`
	Status    poxStatusInfo `xml:"imsx_statusInfo"`
}

type poxStatusInfo struct {
	CodeMajor   string `xml:"imsx_codeMajor"`
	Severity    string `xml:"imsx_severity"`
	Description string `xml:"imsx_description,omitempty"`
	RefID       string `xml:"imsx_messageRefIdentifier"`
	Operation   string `xml:"imsx_operationRefIdentifier,omitempty"`
}

type poxResponseBody struct {
	Replace *struct{}        `xml:"replaceResultResponse,omitempty"`
	Read    *poxReadResponse `xml:"readResultResponse,omitempty"`
	Delete  *struct{}        `xml:"deleteResultResponse,omitempty"`
}

type poxReadResponse struct {
	Result poxResult `xml:"result"`
}

// MarshalResponse renders a response envelope.
func MarshalResponse(resp Response) ([]byte, error) {
	env := poxResponseEnvelope{
		Header: poxResponseHeader{Info: poxResponseInfo{
			Version:   poxVersion,
			MessageID: resp.MessageID,
			Status: poxStatusInfo{
				CodeMajor:   resp.CodeMajor,
				Severity:    "status",
				Description: resp.Description,
				RefID:       resp.RefID,
				Operation:   resp.Operation,
			},
		}},
	}
	switch resp.Operation {
	case OpReplaceResult:
		env.Body.Replace = &struct{}{}
	case OpDeleteResult:
		env.Body.Delete = &struct{}{}
	case OpReadResult:
		read := &poxReadResponse{}
		if resp.Score != nil {
			read.Result = poxResult{Score: poxScore{
				Language: "en",
				Value:    strconv.FormatFloat(*resp.Score, 'f', -1, 64),
			}}
		}
		env.Body.Read = read
	}
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
