package middleware

import (
	"net/http"

	"github.com/Vasu1712/chatcore/internal/api/respond"
	"github.com/Vasu1712/chatcore/internal/auth"
	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/logger"
)

// Authenticate rejects requests without a valid identity token and puts
// the caller's UID in the request context. When failures is set, each
// rejected request is charged to the client address, and an address whose
// bucket is empty gets 429 before its token is checked.
func Authenticate(v auth.Verifier, failures *LimiterPool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			addr := addrKey(r)
			if failures != nil && failures.exhausted(addr) {
				tooManyRequests(w)
				return
			}
			reject := func(err error) {
				if failures != nil {
					failures.Allow(addr)
				}
				respond.Error(w, r, chaterr.E(chaterr.Unauthenticated, "middleware.Authenticate", err))
			}

			token, err := auth.TokenFromRequest(r)
			if err != nil {
				reject(err)
				return
			}
			uid, err := v.Verify(r.Context(), token)
			if err != nil {
				reject(err)
				return
			}
			ctx := auth.WithUID(r.Context(), uid)
			ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("uid", uid))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
