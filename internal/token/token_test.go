package token

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/campushq/ltibridge/internal/tool"
)

func newService(t *testing.T) (*Service, *tool.MemoryStore, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := tool.NewMemoryStore()
	svc := &Service{Store: store, Now: func() time.Time { return now }}
	return svc, store, &now
}

func TestIssueAndResolve(t *testing.T) {
	svc, _, now := newService(t)
	ctx := context.Background()

	at, err := svc.Issue(ctx, 7, []string{"basicoutcome"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(at.Token) != 32 {
		t.Fatalf("token length = %d, want 32 hex chars", len(at.Token))
	}
	if !at.ValidUntil.Equal(now.Add(Lifetime)) {
		t.Fatalf("ValidUntil = %v", at.ValidUntil)
	}

	id := svc.FromHeader(ctx, "Bearer "+at.Token, 7, []string{"basicoutcome"})
	if id.Result != Authorized || id.ToolTypeID != 7 {
		t.Fatalf("identity = %+v", id)
	}
}

func TestFromHeaderAnonymous(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	if id := svc.FromHeader(ctx, "", 0, nil); id.Result != Anonymous {
		t.Fatalf("no header, no scopes: %+v", id)
	}
	if id := svc.FromHeader(ctx, "", 0, []string{"basicoutcome"}); id.Result != Denied {
		t.Fatalf("no header with required scope: %+v", id)
	}
}

func TestFromHeaderOAuthScheme(t *testing.T) {
	svc, _, _ := newService(t)
	id := svc.FromHeader(context.Background(), `OAuth oauth_consumer_key="key-9", oauth_signature="x"`, 0, nil)
	if id.Result != OAuthConsumer || id.ConsumerKey != "key-9" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestFromHeaderExpiryBoundary(t *testing.T) {
	svc, _, now := newService(t)
	ctx := context.Background()

	at, err := svc.Issue(ctx, 1, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// One second before expiry the token still works.
	*now = at.ValidUntil.Add(-time.Second)
	if id := svc.FromHeader(ctx, "Bearer "+at.Token, 1, nil); id.Result != Authorized {
		t.Fatalf("just before expiry: %+v", id)
	}

	// At exactly ValidUntil the token is already dead.
	*now = at.ValidUntil
	if id := svc.FromHeader(ctx, "Bearer "+at.Token, 1, nil); id.Result != Denied {
		t.Fatalf("at expiry instant: %+v", id)
	}
}

func TestFromHeaderScopeMismatch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	at, err := svc.Issue(ctx, 1, []string{"toolsettings"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if id := svc.FromHeader(ctx, "Bearer "+at.Token, 1, []string{"basicoutcome"}); id.Result != Denied {
		t.Fatalf("wrong scope accepted: %+v", id)
	}
	// Any one overlapping scope is enough.
	if id := svc.FromHeader(ctx, "Bearer "+at.Token, 1, []string{"basicoutcome", "toolsettings"}); id.Result != Authorized {
		t.Fatalf("overlapping scope denied: %+v", id)
	}
}

func TestFromHeaderWrongTool(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	at, err := svc.Issue(ctx, 1, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if id := svc.FromHeader(ctx, "Bearer "+at.Token, 2, nil); id.Result != Denied {
		t.Fatalf("token for tool 1 accepted for tool 2: %+v", id)
	}
	// Zero tool id means any tool.
	if id := svc.FromHeader(ctx, "Bearer "+at.Token, 0, nil); id.Result != Authorized {
		t.Fatalf("unscoped lookup denied: %+v", id)
	}
}

// collidingStore reports every candidate token as already taken.
type collidingStore struct{ tool.MemoryStore }

func (c *collidingStore) TokenExists(context.Context, string) (bool, error) { return true, nil }

func TestIssueCollisionExhaustion(t *testing.T) {
	svc := &Service{Store: &collidingStore{}}
	if _, err := svc.Issue(context.Background(), 1, nil); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
}

func TestIntersect(t *testing.T) {
	got := Intersect(
		[]string{"basicoutcome", "nrps", "toolsettings"},
		[]string{"toolsettings", "basicoutcome"},
	)
	want := []string{"basicoutcome", "toolsettings"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Intersect = %v, want %v", got, want)
	}
	if Intersect([]string{"x"}, nil) != nil {
		t.Fatal("empty allowed set must yield nil")
	}
}
