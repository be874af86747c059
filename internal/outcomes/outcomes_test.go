package outcomes

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const replaceRequest = `<?xml version="1.0" encoding="UTF-8"?>
<imsx_POXEnvelopeRequest xmlns="http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0">
  <imsx_POXHeader>
    <imsx_POXRequestHeaderInfo>
      <imsx_version>V1.0</imsx_version>
      <imsx_messageIdentifier>msg-123</imsx_messageIdentifier>
    </imsx_POXRequestHeaderInfo>
  </imsx_POXHeader>
  <imsx_POXBody>
    <replaceResultRequest>
      <resultRecord>
        <sourcedGUID><sourcedId>cell-7</sourcedId></sourcedGUID>
        <result>
          <resultScore>
            <language>en</language>
            <textString>0.85</textString>
          </resultScore>
        </result>
      </resultRecord>
    </replaceResultRequest>
  </imsx_POXBody>
</imsx_POXEnvelopeRequest>`

func TestParseReplaceRequest(t *testing.T) {
	req, err := ParseRequest([]byte(replaceRequest))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.Operation != OpReplaceResult || req.MessageID != "msg-123" || req.SourcedID != "cell-7" {
		t.Fatalf("req = %+v", req)
	}
	if req.Score == nil || *req.Score != 0.85 {
		t.Fatalf("score = %v", req.Score)
	}
}

func TestParseRequestRejections(t *testing.T) {
	outOfRange := strings.Replace(replaceRequest, "0.85", "1.5", 1)
	empty := strings.Replace(replaceRequest, "cell-7", " ", 1)
	cases := []string{"not xml", outOfRange, empty,
		`<imsx_POXEnvelopeRequest><imsx_POXBody/></imsx_POXEnvelopeRequest>`}
	for i, body := range cases {
		if _, err := ParseRequest([]byte(body)); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("case %d: err = %v, want ErrMalformedEnvelope", i, err)
		}
	}
}

func TestParseReadAndDelete(t *testing.T) {
	read := strings.NewReplacer(
		"replaceResultRequest", "readResultRequest",
	).Replace(replaceRequest)
	req, err := ParseRequest([]byte(read))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if req.Operation != OpReadResult || req.Score != nil {
		t.Fatalf("read req = %+v", req)
	}

	del := strings.NewReplacer(
		"replaceResultRequest", "deleteResultRequest",
	).Replace(replaceRequest)
	req, err = ParseRequest([]byte(del))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if req.Operation != OpDeleteResult {
		t.Fatalf("delete req = %+v", req)
	}
}

// fakeGradebook records calls and serves canned scores.
type fakeGradebook struct {
	scores  map[string]float64
	failAll bool
}

func (f *fakeGradebook) ReplaceResult(_ context.Context, id string, score float64) error {
	if f.failAll {
		return errors.New("store down")
	}
	f.scores[id] = score
	return nil
}

func (f *fakeGradebook) ReadResult(_ context.Context, id string) (float64, bool, error) {
	if f.failAll {
		return 0, false, errors.New("store down")
	}
	s, ok := f.scores[id]
	return s, ok, nil
}

func (f *fakeGradebook) DeleteResult(_ context.Context, id string) error {
	if f.failAll {
		return errors.New("store down")
	}
	delete(f.scores, id)
	return nil
}

func TestHandleReplaceThenReadThenDelete(t *testing.T) {
	gb := &fakeGradebook{scores: map[string]float64{}}
	svc := &Service{Grades: gb}
	ctx := context.Background()

	score := 0.85
	resp := svc.Handle(ctx, Request{MessageID: "m1", Operation: OpReplaceResult, SourcedID: "cell-7", Score: &score})
	if resp.CodeMajor != CodeSuccess || resp.RefID != "m1" {
		t.Fatalf("replace resp = %+v", resp)
	}
	if gb.scores["cell-7"] != 0.85 {
		t.Fatalf("gradebook = %v", gb.scores)
	}

	resp = svc.Handle(ctx, Request{MessageID: "m2", Operation: OpReadResult, SourcedID: "cell-7"})
	if resp.CodeMajor != CodeSuccess || resp.Score == nil || *resp.Score != 0.85 {
		t.Fatalf("read resp = %+v", resp)
	}

	resp = svc.Handle(ctx, Request{MessageID: "m3", Operation: OpDeleteResult, SourcedID: "cell-7"})
	if resp.CodeMajor != CodeSuccess {
		t.Fatalf("delete resp = %+v", resp)
	}
	if _, ok := gb.scores["cell-7"]; ok {
		t.Fatal("score survived delete")
	}
}

func TestHandleFailureBecomesCodeMajor(t *testing.T) {
	svc := &Service{Grades: &fakeGradebook{failAll: true}}
	score := 0.5
	resp := svc.Handle(context.Background(), Request{Operation: OpReplaceResult, SourcedID: "x", Score: &score})
	if resp.CodeMajor != CodeFailure {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHandleUnsupportedOperation(t *testing.T) {
	svc := &Service{Grades: &fakeGradebook{scores: map[string]float64{}}}
	resp := svc.Handle(context.Background(), Request{Operation: "totalResult"})
	if resp.CodeMajor != CodeUnsupported {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestMarshalResponseShape(t *testing.T) {
	score := 0.4
	out, err := MarshalResponse(Response{
		MessageID: "r1",
		RefID:     "m1",
		Operation: OpReadResult,
		CodeMajor: CodeSuccess,
		Score:     &score,
	})
	if err != nil {
		t.Fatalf("MarshalResponse: %v", err)
	}
	s := string(out)
	for _, want := range []string{
		"imsx_POXEnvelopeResponse",
		"<imsx_codeMajor>success</imsx_codeMajor>",
		"<imsx_messageRefIdentifier>m1</imsx_messageRefIdentifier>",
		"<textString>0.4</textString>",
		"readResultResponse",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("response missing %q:\n%s", want, s)
		}
	}
}
