package services

import "context"

// RequestMeta describes the caller of the current request. The HTTP layer
// attaches it to the context for audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type requestMetaKey struct{}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}
