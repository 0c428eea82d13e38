// Package auth turns identity-provider tokens into caller UIDs. The chat
// core trusts the UID as-is; only the token is checked here.
package auth

import (
	"context"
	"errors"

	"github.com/Vasu1712/chatcore/internal/chaterr"
)

var ErrInvalidToken = errors.New("invalid identity token")

// Verifier checks a raw token and returns the UID it was issued to.
type Verifier interface {
	Verify(ctx context.Context, token string) (uid string, err error)
}

type uidKey struct{}

func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, uidKey{}, uid)
}

// UIDFromContext returns the authenticated caller set by WithUID.
func UIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(uidKey{}).(string)
	return uid, ok && uid != ""
}

// Authorize fails unless the authenticated caller is uid.
func Authorize(ctx context.Context, op, uid string) error {
	caller, ok := UIDFromContext(ctx)
	if !ok {
		return chaterr.Errorf(chaterr.Unauthenticated, op, "no caller identity")
	}
	if caller != uid {
		return chaterr.Errorf(chaterr.PermissionDenied, op, "%s may not act as %s", caller, uid)
	}
	return nil
}
