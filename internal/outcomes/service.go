// internal/outcomes/service.go
package outcomes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/campushq/ltibridge/internal/tool"
)

// ErrUnknownResult means the sourcedId names no known gradebook cell.
var ErrUnknownResult = errors.New("outcomes: unknown result sourcedId")

// Gradebook is where outcome scores land. Scores are normalized to
// [0,1]; the implementation owns scaling to the activity's maximum.
type Gradebook interface {
	ReplaceResult(ctx context.Context, sourcedID string, score float64) error
	ReadResult(ctx context.Context, sourcedID string) (score float64, exists bool, err error)
	DeleteResult(ctx context.Context, sourcedID string) error
}

// Service executes parsed outcomes requests against a Gradebook.
type Service struct {
	Grades Gradebook
	Log    *logrus.Logger
}

// Handle runs one request and always produces a well-formed response
// envelope; gradebook failures surface as imsx_codeMajor=failure rather
// than transport errors, which is what consumers retry on.
func (s *Service) Handle(ctx context.Context, req Request) Response {
	resp := Response{
		MessageID: uuid.NewString(),
		RefID:     req.MessageID,
		Operation: req.Operation,
		CodeMajor: CodeSuccess,
	}

	var err error
	switch req.Operation {
	case OpReplaceResult:
		err = s.Grades.ReplaceResult(ctx, req.SourcedID, *req.Score)
		if err == nil {
			resp.Description = fmt.Sprintf("Score for %s is now %v", req.SourcedID, *req.Score)
		}
	case OpReadResult:
		var score float64
		var exists bool
		score, exists, err = s.Grades.ReadResult(ctx, req.SourcedID)
		if err == nil && exists {
			resp.Score = &score
		}
	case OpDeleteResult:
		err = s.Grades.DeleteResult(ctx, req.SourcedID)
	default:
		resp.CodeMajor = CodeUnsupported
		resp.Description = fmt.Sprintf("Operation %q is not supported", req.Operation)
		return resp
	}

	if err != nil {
		if s.Log != nil {
			s.Log.WithError(err).WithFields(logrus.Fields{
				"operation": req.Operation,
				"sourcedid": req.SourcedID,
			}).Warn("outcomes operation failed")
		}
		resp.CodeMajor = CodeFailure
		resp.Description = err.Error()
		resp.Score = nil
	}
	return resp
}

// VerifyRequest resolves the shared secret behind an inbound consumer
// key and runs the caller's signature check against it.
func VerifyRequest(ctx context.Context, store tool.Store, consumerKey string, verify func(secret string) error) error {
	secret, err := tool.ResolveConsumerSecret(ctx, store, consumerKey)
	if err != nil {
		return err
	}
	return verify(secret)
}
