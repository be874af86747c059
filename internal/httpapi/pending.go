// internal/httpapi/pending.go
package httpapi

import (
	"sync"
	"time"

	"github.com/campushq/ltibridge/internal/custom"
	"github.com/campushq/ltibridge/internal/launch"
)

// pendingTTL bounds how long a login initiation may sit between the
// redirect to the tool and the tool's authorization request back.
const pendingTTL = 5 * time.Minute

type pendingLaunch struct {
	ToolID   int64
	Activity launch.Activity
	Context  custom.Context
	created  time.Time
}

// pendingLaunches holds 1.3 launches between the login initiation post
// and the authorization request, keyed by lti_message_hint. Single use;
// take removes the entry.
type pendingLaunches struct {
	mu sync.Mutex
	m  map[string]pendingLaunch
}

func (p *pendingLaunches) put(hint string, pl pendingLaunch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]pendingLaunch)
	}
	now := time.Now()
	for k, v := range p.m {
		if now.Sub(v.created) > pendingTTL {
			delete(p.m, k)
		}
	}
	pl.created = now
	p.m[hint] = pl
}

func (p *pendingLaunches) take(hint string) (pendingLaunch, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.m[hint]
	if !ok {
		return pendingLaunch{}, false
	}
	delete(p.m, hint)
	if time.Since(pl.created) > pendingTTL {
		return pendingLaunch{}, false
	}
	return pl, true
}
