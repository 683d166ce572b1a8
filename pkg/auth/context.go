package auth

import "context"

type contextKey string

const contextKeySubject contextKey = "auth_subject"

// WithSubject stores the authenticated token subject on the context
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, contextKeySubject, subject)
}

// SubjectFromContext returns the authenticated token subject, if any
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(contextKeySubject).(string)
	return subject, ok
}
