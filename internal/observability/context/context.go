package context

import (
	stdcontext "context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	clubIDKey    ctxKey = "club_id"
	actorTypeKey ctxKey = "actor_type"
	actorIDKey   ctxKey = "actor_id"
	sessionKey   ctxKey = "session_key"
)

func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	return stdcontext.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	return stringValue(ctx, requestIDKey)
}

func WithClubID(ctx stdcontext.Context, clubID string) stdcontext.Context {
	return stdcontext.WithValue(ctx, clubIDKey, strings.TrimSpace(clubID))
}

func ClubIDFromContext(ctx stdcontext.Context) string {
	return stringValue(ctx, clubIDKey)
}

// WithActor records who is acting, e.g. ("member", "123") or ("manager", "9").
func WithActor(ctx stdcontext.Context, actorType, actorID string) stdcontext.Context {
	ctx = stdcontext.WithValue(ctx, actorTypeKey, strings.TrimSpace(actorType))
	return stdcontext.WithValue(ctx, actorIDKey, strings.TrimSpace(actorID))
}

func ActorFromContext(ctx stdcontext.Context) (string, string) {
	return stringValue(ctx, actorTypeKey), stringValue(ctx, actorIDKey)
}

// WithSessionKey tags work done on behalf of one class session.
func WithSessionKey(ctx stdcontext.Context, key string) stdcontext.Context {
	return stdcontext.WithValue(ctx, sessionKey, strings.TrimSpace(key))
}

func SessionKeyFromContext(ctx stdcontext.Context) string {
	return stringValue(ctx, sessionKey)
}

func stringValue(ctx stdcontext.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
