package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/tabular/internal/core"
)

// WithRequestMetadata adds client IP and User-Agent to ctx for ingestion logs.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
