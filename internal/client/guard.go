// internal/client/guard.go
package client

import (
	"context"

	"medboard-service/internal/pkg/rbac"
)

// DecisionKind classifies a guard verdict.
type DecisionKind int

const (
	// Allow lets the navigation proceed.
	Allow DecisionKind = iota
	// RedirectToLogin sends the user to the login screen; Target carries the
	// route they were trying to reach so login can resume there.
	RedirectToLogin
	// Forbidden keeps an authenticated user out of a route they may not use.
	Forbidden
)

// Decision is the guard's answer for one navigation attempt.
type Decision struct {
	Kind   DecisionKind
	Target string
}

// Guard gates console routes on session state and capability. Evaluation
// blocks on the session check, so a route never renders on stale state.
type Guard struct {
	store *Store
}

func NewGuard(store *Store) *Guard {
	return &Guard{store: store}
}

// Evaluate decides whether the navigation to target may proceed. An empty
// capability gates on authentication only. A store that is already
// authenticated is trusted without a round trip; otherwise CheckAuth runs
// and the guard blocks on its verdict. Unauthenticated callers are
// redirected, authorized-but-ungranted callers are forbidden; the two
// verdicts stay distinct so the console can show the right screen.
func (g *Guard) Evaluate(ctx context.Context, target, capability string) Decision {
	if !g.store.IsLoggedIn() {
		if ok, _ := g.store.CheckAuth(ctx); !ok {
			return Decision{Kind: RedirectToLogin, Target: target}
		}
	}

	if capability != "" {
		if !rbac.HasPermission(g.store.Identity(), capability) {
			return Decision{Kind: Forbidden, Target: target}
		}
	}

	return Decision{Kind: Allow, Target: target}
}
